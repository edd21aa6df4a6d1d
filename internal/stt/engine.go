package stt

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/agalue/swictation/internal/platform"
	"github.com/agalue/swictation/internal/swicterr"
)

// Engine owns the three ONNX graphs a TDT transducer needs — encoder,
// decoder, joiner — plus the vocabulary used to detokenize hypotheses.
// Transcribe (search.go) drives Engine through the greedy search; Engine
// itself knows nothing about segmentation or sessions.
type Engine struct {
	encoder *ort.DynamicAdvancedSession
	decoder *ort.DynamicAdvancedSession
	joiner  *ort.DynamicAdvancedSession

	vocab *Vocabulary

	melBins       int
	encoderHidden int
	numDurations  int

	sharedLibPath string
}

// EngineConfig selects the model directory and execution provider.
type EngineConfig struct {
	ModelDir          string
	ExecutionProvider string // "cuda" or "cpu"
	SharedLibPath     string // path to libonnxruntime.so/.dylib/.dll, empty uses the system default
}

var onnxInitialized bool

// NewEngine locates encoder.*.onnx, decoder.*.onnx, joiner.*.onnx and
// tokens.txt under cfg.ModelDir and loads all three graphs (spec §4.6.4).
// Missing files or vocabulary corruption are ModelLoadError, non-recoverable.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	const op = "stt.NewEngine"

	encoderPath, err := findModelFile(cfg.ModelDir, "encoder")
	if err != nil {
		return nil, swicterr.ModelLoad(op, err)
	}
	decoderPath, err := findModelFile(cfg.ModelDir, "decoder")
	if err != nil {
		return nil, swicterr.ModelLoad(op, err)
	}
	joinerPath, err := findModelFile(cfg.ModelDir, "joiner")
	if err != nil {
		return nil, swicterr.ModelLoad(op, err)
	}

	vocab, err := LoadVocabulary(filepath.Join(cfg.ModelDir, "tokens.txt"))
	if err != nil {
		return nil, err // already a *swicterr.Error from LoadVocabulary
	}

	if cfg.SharedLibPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibPath)
	}
	if !onnxInitialized {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, swicterr.ModelLoad(op, fmt.Errorf("initialize ONNX runtime: %w", err))
		}
		onnxInitialized = true
	}

	wantCUDA := strings.EqualFold(cfg.ExecutionProvider, "cuda")
	if wantCUDA && !platform.HasNvidiaGPU() {
		log.Printf("⚠️  cuda execution provider requested but no NVIDIA GPU detected, falling back to cpu")
		wantCUDA = false
	}

	encoder, usedCUDA, err := newSession(encoderPath, []string{"mel_features"}, []string{"encoder_out"}, wantCUDA)
	if err != nil {
		return nil, swicterr.ModelLoad(op, fmt.Errorf("load encoder: %w", err))
	}
	decoder, _, err := newSession(decoderPath, []string{"token", "state"}, []string{"decoder_out", "new_state"}, usedCUDA)
	if err != nil {
		encoder.Destroy()
		return nil, swicterr.ModelLoad(op, fmt.Errorf("load decoder: %w", err))
	}
	joiner, _, err := newSession(joinerPath, []string{"encoder_frame", "decoder_out"}, []string{"logits"}, usedCUDA)
	if err != nil {
		encoder.Destroy()
		decoder.Destroy()
		return nil, swicterr.ModelLoad(op, fmt.Errorf("load joiner: %w", err))
	}

	e := &Engine{
		encoder: encoder,
		decoder: decoder,
		joiner:  joiner,
		vocab:   vocab,
		// Defaults. encoderHidden is refined from each encoder output and
		// numDurations from the joiner's logits width; melBins stays at 80,
		// it is not read from the encoder graph.
		melBins:       80,
		encoderHidden: 512,
		numDurations:  5,
	}

	log.Printf("🔤 stt engine loaded: model_dir=%s execution_provider=%s blank_id=%d vocab_size=%d",
		cfg.ModelDir, providerName(usedCUDA), vocab.BlankID, len(vocab.Tokens))

	return e, nil
}

func providerName(cuda bool) string {
	if cuda {
		return "cuda"
	}
	return "cpu"
}

// newSession creates a DynamicAdvancedSession, trying CUDA first when
// requested and falling back to CPU if CUDA execution-provider registration
// fails (spec §4.6.4: explicit error logged, not fatal).
func newSession(path string, inputs, outputs []string, wantCUDA bool) (*ort.DynamicAdvancedSession, bool, error) {
	if wantCUDA {
		opts, err := ort.NewSessionOptions()
		if err == nil {
			cudaErr := opts.AppendExecutionProviderCUDA(0)
			if cudaErr == nil {
				session, err := ort.NewDynamicAdvancedSession(path, inputs, outputs, opts)
				if err == nil {
					return session, true, nil
				}
				log.Printf("⚠️  cuda session creation failed for %s: %v, falling back to cpu", path, err)
			} else {
				log.Printf("⚠️  cuda execution provider init failed: %v, falling back to cpu", cudaErr)
			}
			opts.Destroy()
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path, inputs, outputs, nil)
	if err != nil {
		return nil, false, err
	}
	return session, false, nil
}

// findModelFile globs for "<prefix>.*.onnx" or the literal "<prefix>.onnx"
// under dir and returns the first match (spec §4.6.4: "picks files present").
func findModelFile(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read model dir %s: %w", dir, err)
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".onnx") {
			continue
		}
		if name == prefix+".onnx" || strings.HasPrefix(name, prefix+".") {
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("no %s.*.onnx found under %s", prefix, dir)
}

// Vocabulary exposes the loaded token table for callers that need blank_id
// without going through the search loop (e.g. metrics labeling).
func (e *Engine) Vocabulary() *Vocabulary { return e.vocab }

// MelBins reports the mel-bin count fed to the encoder (fixed at 80).
func (e *Engine) MelBins() int { return e.melBins }

// EncoderForward runs the encoder over a (1, T, melBins) feature matrix laid
// out frame-major and returns the subsampled acoustic sequence (1, T', D)
// as a flat row-major slice, plus T' and D.
func (e *Engine) EncoderForward(melFrames []float32, numFrames int) (out []float32, subsampledFrames, hidden int, err error) {
	input, tensorErr := ort.NewTensor(ort.NewShape(1, int64(numFrames), int64(e.melBins)), melFrames)
	if tensorErr != nil {
		return nil, 0, 0, swicterr.Inference("stt.EncoderForward", fmt.Errorf("create input tensor: %w", tensorErr))
	}
	defer input.Destroy()

	outShape := ort.NewShape(1, int64(numFrames), int64(e.encoderHidden))
	outputData := make([]float32, numFrames*e.encoderHidden)
	output, tensorErr := ort.NewTensor(outShape, outputData)
	if tensorErr != nil {
		return nil, 0, 0, swicterr.Inference("stt.EncoderForward", fmt.Errorf("create output tensor: %w", tensorErr))
	}
	defer output.Destroy()

	if runErr := e.encoder.Run([]ort.Value{input}, []ort.Value{output}); runErr != nil {
		return nil, 0, 0, swicterr.Inference("stt.EncoderForward", runErr)
	}

	shape := output.GetShape()
	subsampled := numFrames
	hiddenDim := e.encoderHidden
	if len(shape) == 3 {
		subsampled = int(shape[1])
		hiddenDim = int(shape[2])
	}
	return output.GetData(), subsampled, hiddenDim, nil
}

// DecoderStep runs the decoder for one autoregressive step: given the last
// non-blank token (or blank_id at t=0) and the carried state, it returns the
// decoder output vector and the new state.
func (e *Engine) DecoderStep(token int64, state []float32) (decoderOut, newState []float32, err error) {
	tokenTensor, tErr := ort.NewTensor(ort.NewShape(1, 1), []int64{token})
	if tErr != nil {
		return nil, nil, swicterr.Inference("stt.DecoderStep", fmt.Errorf("create token tensor: %w", tErr))
	}
	defer tokenTensor.Destroy()

	stateTensor, tErr := ort.NewTensor(ort.NewShape(1, int64(len(state))), state)
	if tErr != nil {
		return nil, nil, swicterr.Inference("stt.DecoderStep", fmt.Errorf("create state tensor: %w", tErr))
	}
	defer stateTensor.Destroy()

	outData := make([]float32, e.encoderHidden)
	outTensor, tErr := ort.NewTensor(ort.NewShape(1, int64(e.encoderHidden)), outData)
	if tErr != nil {
		return nil, nil, swicterr.Inference("stt.DecoderStep", fmt.Errorf("create decoder-out tensor: %w", tErr))
	}
	defer outTensor.Destroy()

	newStateData := make([]float32, len(state))
	newStateTensor, tErr := ort.NewTensor(ort.NewShape(1, int64(len(state))), newStateData)
	if tErr != nil {
		return nil, nil, swicterr.Inference("stt.DecoderStep", fmt.Errorf("create new-state tensor: %w", tErr))
	}
	defer newStateTensor.Destroy()

	inputs := []ort.Value{tokenTensor, stateTensor}
	outputs := []ort.Value{outTensor, newStateTensor}
	if err := e.decoder.Run(inputs, outputs); err != nil {
		return nil, nil, swicterr.Inference("stt.DecoderStep", err)
	}

	return outTensor.GetData(), newStateTensor.GetData(), nil
}

// JoinerStep combines one encoder frame and the decoder output into logits
// over (vocab_size + num_durations); the caller (search.go) splits them.
func (e *Engine) JoinerStep(encoderFrame, decoderOut []float32) ([]float32, error) {
	frameTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(encoderFrame))), encoderFrame)
	if err != nil {
		return nil, swicterr.Inference("stt.JoinerStep", fmt.Errorf("create encoder-frame tensor: %w", err))
	}
	defer frameTensor.Destroy()

	decoderTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(decoderOut))), decoderOut)
	if err != nil {
		return nil, swicterr.Inference("stt.JoinerStep", fmt.Errorf("create decoder-out tensor: %w", err))
	}
	defer decoderTensor.Destroy()

	logitsWidth := len(e.vocab.Tokens) + e.numDurations
	outData := make([]float32, logitsWidth)
	outTensor, err := ort.NewTensor(ort.NewShape(1, int64(logitsWidth)), outData)
	if err != nil {
		return nil, swicterr.Inference("stt.JoinerStep", fmt.Errorf("create logits tensor: %w", err))
	}
	defer outTensor.Destroy()

	inputs := []ort.Value{frameTensor, decoderTensor}
	outputs := []ort.Value{outTensor}
	if err := e.joiner.Run(inputs, outputs); err != nil {
		return nil, swicterr.Inference("stt.JoinerStep", err)
	}

	shape := outTensor.GetShape()
	if len(shape) > 0 {
		width := int(shape[len(shape)-1])
		if width != e.numDurations+len(e.vocab.Tokens) {
			e.numDurations = width - len(e.vocab.Tokens)
		}
	}
	return outTensor.GetData(), nil
}

// DecoderStateSize reports the carried recurrent-state length, used by
// search.go to size the initial zero state.
func (e *Engine) DecoderStateSize() int { return e.encoderHidden }

// NumDurations reports the duration-head width discovered from the joiner's
// output shape (spec §9 Open Question: not knowable statically).
func (e *Engine) NumDurations() int { return e.numDurations }

// Close releases the three ONNX sessions.
func (e *Engine) Close() {
	if e.encoder != nil {
		e.encoder.Destroy()
	}
	if e.decoder != nil {
		e.decoder.Destroy()
	}
	if e.joiner != nil {
		e.joiner.Destroy()
	}
}

// Package vad wraps Silero VAD v6 (ONNX) behind a small state machine that
// turns a stream of raw samples into discrete speech segments (spec §4.5).
package vad

import (
	"fmt"
	"log"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/agalue/swictation/internal/swicterr"
)

const (
	// WindowSamples is the number of samples fed to the ONNX model per
	// inference (32ms at 16kHz) — not configurable, the model is trained on it.
	WindowSamples = 512
	sampleRate    = 16000
	stateSize     = 2 * 1 * 128
)

// state identifies which half of the NotSpeaking/Speaking machine we're in.
type state int

const (
	stateNotSpeaking state = iota
	stateSpeaking
)

// Result is the outcome of feeding audio to the detector: either silence
// (nothing emitted) or a complete utterance.
type Result struct {
	Speech  bool
	Samples []float32
}

// Config holds the four tunables spec §4.5 calls out explicitly. Threshold
// defaults to Silero's own ONNX-model scale (0.25), NOT PyTorch's 0.5
// convention — substituting 0.5 here is the textbook mistake this field
// guards against.
type Config struct {
	ModelPath             string
	Threshold             float32
	MinSilenceDurationS   float64
	MinSpeechDurationS    float64
	PreRollMs             int
	SharedLibPath         string
}

// DefaultConfig returns spec §4.5's defaults with everything except
// ModelPath/SharedLibPath left to the caller to override.
func DefaultConfig() Config {
	return Config{
		Threshold:           0.25,
		MinSilenceDurationS: 0.8,
		MinSpeechDurationS:  0.25,
		PreRollMs:           200,
	}
}

// Detector runs Silero VAD v6 over arbitrary-length audio, slicing it into
// WindowSamples windows internally and buffering any remainder (spec §4.5
// "Chunk buffering").
type Detector struct {
	session *ort.DynamicAdvancedSession
	cfg     Config

	recurrentState []float32

	st               state
	pending          []float32 // samples not yet forming a full window
	preRoll          []float32 // ring of the last PreRollMs of audio, pre-speech
	preRollCap       int
	segment          []float32 // accumulated current utterance
	silentWindows    int
	windowsToClose   int
	minSpeechSamples int
}

var onnxInitialized bool

// New loads the Silero VAD v6 ONNX graph.
func New(cfg Config) (*Detector, error) {
	const op = "vad.New"

	if cfg.SharedLibPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibPath)
	}
	if !onnxInitialized {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, swicterr.ModelLoad(op, fmt.Errorf("initialize ONNX runtime: %w", err))
		}
		onnxInitialized = true
	}

	inputNames := []string{"input", "state", "sr"}
	outputNames := []string{"output", "stateN"}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, swicterr.ModelLoad(op, fmt.Errorf("load silero vad model %s: %w", cfg.ModelPath, err))
	}

	windowsToClose := int(cfg.MinSilenceDurationS * sampleRate / WindowSamples)
	if windowsToClose < 1 {
		windowsToClose = 1
	}

	d := &Detector{
		session:          session,
		cfg:              cfg,
		recurrentState:   make([]float32, stateSize),
		preRollCap:       cfg.PreRollMs * sampleRate / 1000,
		windowsToClose:   windowsToClose,
		minSpeechSamples: int(cfg.MinSpeechDurationS * sampleRate),
	}

	log.Printf("🎤 vad loaded: model=%s threshold=%.2f min_silence=%.2fs min_speech=%.2fs pre_roll=%dms",
		cfg.ModelPath, cfg.Threshold, cfg.MinSilenceDurationS, cfg.MinSpeechDurationS, cfg.PreRollMs)

	return d, nil
}

// ProcessAudio accepts arbitrary-length input and returns a Result; Speech
// is true only when a full utterance closes in this call.
func (d *Detector) ProcessAudio(samples []float32) (Result, error) {
	d.pending = append(d.pending, samples...)

	for len(d.pending) >= WindowSamples {
		window := d.pending[:WindowSamples]
		d.pending = d.pending[WindowSamples:]

		isSpeech, err := d.runWindow(window)
		if err != nil {
			return Result{}, err
		}

		if res, emitted := d.step(window, isSpeech); emitted {
			return res, nil
		}
	}

	return Result{}, nil
}

// Flush forces emission of the current utterance if one is in progress and
// long enough (spec §4.5 flush semantics).
func (d *Detector) Flush() Result {
	if d.st != stateSpeaking || len(d.segment) < d.minSpeechSamples {
		d.reset()
		return Result{}
	}
	out := d.segment
	d.reset()
	return Result{Speech: true, Samples: out}
}

// step advances the NotSpeaking/Speaking state machine by one window.
func (d *Detector) step(window []float32, isSpeech bool) (Result, bool) {
	switch d.st {
	case stateNotSpeaking:
		if !isSpeech {
			d.pushPreRoll(window)
			return Result{}, false
		}
		d.st = stateSpeaking
		d.segment = append(d.segment, d.preRoll...)
		d.segment = append(d.segment, window...)
		d.silentWindows = 0
		return Result{}, false

	case stateSpeaking:
		d.segment = append(d.segment, window...)
		if isSpeech {
			d.silentWindows = 0
			return Result{}, false
		}
		d.silentWindows++
		if d.silentWindows < d.windowsToClose {
			return Result{}, false
		}
		if len(d.segment) < d.minSpeechSamples {
			d.reset()
			return Result{}, false
		}
		out := d.segment
		d.reset()
		return Result{Speech: true, Samples: out}, true
	}
	return Result{}, false
}

func (d *Detector) pushPreRoll(window []float32) {
	d.preRoll = append(d.preRoll, window...)
	if excess := len(d.preRoll) - d.preRollCap; excess > 0 {
		d.preRoll = d.preRoll[excess:]
	}
}

func (d *Detector) reset() {
	d.st = stateNotSpeaking
	d.segment = nil
	d.silentWindows = 0
	d.preRoll = nil
}

// runWindow runs one 512-sample inference and returns whether probability
// exceeds the configured threshold.
func (d *Detector) runWindow(window []float32) (bool, error) {
	const op = "vad.ProcessAudio"

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(window))), append([]float32(nil), window...))
	if err != nil {
		return false, swicterr.Inference(op, fmt.Errorf("create input tensor: %w", err))
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), append([]float32(nil), d.recurrentState...))
	if err != nil {
		return false, swicterr.Inference(op, fmt.Errorf("create state tensor: %w", err))
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{sampleRate})
	if err != nil {
		return false, swicterr.Inference(op, fmt.Errorf("create sr tensor: %w", err))
	}
	defer srTensor.Destroy()

	outputData := make([]float32, 1)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, 1), outputData)
	if err != nil {
		return false, swicterr.Inference(op, fmt.Errorf("create output tensor: %w", err))
	}
	defer outputTensor.Destroy()

	newStateData := make([]float32, stateSize)
	newStateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), newStateData)
	if err != nil {
		return false, swicterr.Inference(op, fmt.Errorf("create new-state tensor: %w", err))
	}
	defer newStateTensor.Destroy()

	inputs := []ort.Value{inputTensor, stateTensor, srTensor}
	outputs := []ort.Value{outputTensor, newStateTensor}
	if err := d.session.Run(inputs, outputs); err != nil {
		return false, swicterr.Inference(op, err)
	}

	d.recurrentState = newStateTensor.GetData()
	prob := outputTensor.GetData()[0]
	return prob >= d.cfg.Threshold, nil
}

// Close releases the ONNX session.
func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
}

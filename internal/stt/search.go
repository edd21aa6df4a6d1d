package stt

import (
	"fmt"
	"log"
	"strings"

	"github.com/agalue/swictation/internal/features"
	"github.com/agalue/swictation/internal/swicterr"
)

// maxConsecutiveNonBlank caps non-blank emissions at a single encoder frame
// to prevent a runaway loop (spec §4.6.3 step 5) — defensive, should rarely trigger.
const maxConsecutiveNonBlank = 10

// decoderStepFunc and joinerStepFunc match Engine's DecoderStep/JoinerStep
// signatures; greedySearch takes them as parameters so the search loop can
// be exercised in tests without a loaded ONNX session.
type decoderStepFunc func(token int64, state []float32) (decoderOut, newState []float32, err error)
type joinerStepFunc func(encoderFrame, decoderOut []float32) ([]float32, error)

// searchStats carries the blank/non-blank telemetry spec §8 property 3
// requires: blankCount + nonBlankCount must equal joinerCalls, since every
// joiner call resolves to exactly one or the other.
type searchStats struct {
	blankCount    int
	nonBlankCount int
	joinerCalls   int
}

// Transcribe runs feature extraction, encoder forward pass, and the greedy
// TDT search over a single utterance segment, returning detokenized text.
// Empty input returns the empty string without error (spec §4.6.5).
func (e *Engine) Transcribe(samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	extractor := features.New(e.melBins)
	feats := extractor.Extract(samples)
	if feats.Frames == 0 {
		return "", nil
	}

	encoderOut, subsampledFrames, hidden, err := e.EncoderForward(feats.Data, feats.Frames)
	if err != nil {
		return "", err
	}
	e.encoderHidden = hidden

	hypothesis, stats, err := greedySearch(
		encoderOut, subsampledFrames, hidden,
		int64(e.vocab.BlankID), len(e.vocab.Tokens),
		make([]float32, e.DecoderStateSize()),
		e.DecoderStep, e.JoinerStep,
	)
	if err != nil {
		return "", err
	}
	log.Printf("🔎 greedy search: joiner_calls=%d blank=%d nonblank=%d",
		stats.joinerCalls, stats.blankCount, stats.nonBlankCount)

	text := e.vocab.Detokenize(hypothesis)
	return strings.TrimSpace(text), nil
}

// greedySearch implements the normative algorithm in spec §4.6.3: an
// autoregressive loop over encoder frames, advancing time by the duration
// head's argmax (floored at 1), emitting non-blank tokens into the
// hypothesis and recomputing decoder state only on non-blank emission.
func greedySearch(
	encoderOut []float32, numFrames, hidden int,
	blankID int64, vocabSize int,
	initialState []float32,
	decoderStep decoderStepFunc, joinerStep joinerStepFunc,
) ([]int64, searchStats, error) {
	decoderOut, state, err := decoderStep(blankID, initialState)
	if err != nil {
		return nil, searchStats{}, err
	}

	var hypothesis []int64
	var stats searchStats
	consecutiveNonBlank := 0
	lastT := -1

	for t := 0; t < numFrames; {
		if t == lastT {
			consecutiveNonBlank++
		} else {
			consecutiveNonBlank = 0
		}
		lastT = t
		if consecutiveNonBlank >= maxConsecutiveNonBlank {
			t++
			continue
		}

		frame := encoderOut[t*hidden : (t+1)*hidden]
		logits, err := joinerStep(frame, decoderOut)
		if err != nil {
			return nil, searchStats{}, err
		}
		stats.joinerCalls++
		if len(logits) < vocabSize {
			return nil, searchStats{}, swicterr.Inference("stt.greedySearch", fmt.Errorf("joiner returned %d logits, want at least vocab_size %d", len(logits), vocabSize))
		}

		tokenLogits := logits[:vocabSize]
		durationLogits := logits[vocabSize:]

		y := argmax(tokenLogits)
		d := 0
		if len(durationLogits) > 0 {
			d = argmax(durationLogits)
		}
		advance := d
		if advance < 1 {
			advance = 1
		}

		if int64(y) == blankID {
			stats.blankCount++
			t += advance
			continue
		}

		stats.nonBlankCount++
		hypothesis = append(hypothesis, int64(y))
		decoderOut, state, err = decoderStep(int64(y), state)
		if err != nil {
			return nil, searchStats{}, err
		}
		t += advance
	}

	return hypothesis, stats, nil
}

func argmax(v []float32) int {
	best := 0
	bestVal := v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > bestVal {
			bestVal = v[i]
			best = i
		}
	}
	return best
}

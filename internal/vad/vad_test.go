package vad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDetector builds a Detector with the state-machine fields set up but
// no ONNX session, so step()/pushPreRoll()/reset()/Flush() — none of which
// touch d.session — can be exercised directly.
func newTestDetector(minSilenceWindows int, minSpeechSamples, preRollCap int) *Detector {
	return &Detector{
		windowsToClose:   minSilenceWindows,
		minSpeechSamples: minSpeechSamples,
		preRollCap:       preRollCap,
	}
}

func window(fill float32) []float32 {
	w := make([]float32, WindowSamples)
	for i := range w {
		w[i] = fill
	}
	return w
}

func TestStepStaysSilentUntilSpeechDetected(t *testing.T) {
	d := newTestDetector(2, WindowSamples, 1024)
	res, emitted := d.step(window(0), false)
	require.False(t, emitted)
	require.False(t, res.Speech)
	require.Equal(t, stateNotSpeaking, d.st)
}

func TestStepTransitionsToSpeakingAndIncludesPreRoll(t *testing.T) {
	d := newTestDetector(2, WindowSamples, WindowSamples)
	d.step(window(0), false) // builds pre-roll
	res, emitted := d.step(window(1), true)
	require.False(t, emitted)
	require.False(t, res.Speech)
	require.Equal(t, stateSpeaking, d.st)
	require.Equal(t, 2*WindowSamples, len(d.segment)) // pre-roll + speech window
}

func TestStepEmitsAfterMinSilenceWindows(t *testing.T) {
	d := newTestDetector(2, WindowSamples, 1024)
	d.step(window(1), true) // enters Speaking

	res, emitted := d.step(window(0), false)
	require.False(t, emitted)

	res, emitted = d.step(window(0), false)
	require.True(t, emitted)
	require.True(t, res.Speech)
	require.Equal(t, stateNotSpeaking, d.st)
}

func TestStepDiscardsSegmentShorterThanMinSpeech(t *testing.T) {
	d := newTestDetector(1, WindowSamples*10, 1024)
	d.step(window(1), true)
	res, emitted := d.step(window(0), false)
	require.False(t, emitted) // discarded silently, not emitted as speech
	require.False(t, res.Speech)
	require.Equal(t, stateNotSpeaking, d.st)
}

func TestFlushEmitsInProgressUtteranceWhenLongEnough(t *testing.T) {
	d := newTestDetector(100, WindowSamples, 1024)
	d.step(window(1), true)
	res := d.Flush()
	require.True(t, res.Speech)
	require.Equal(t, WindowSamples, len(res.Samples))
}

func TestFlushDiscardsWhenTooShortOrIdle(t *testing.T) {
	d := newTestDetector(100, WindowSamples*10, 1024)
	res := d.Flush() // never entered Speaking
	require.False(t, res.Speech)

	d.step(window(1), true)
	res = d.Flush() // Speaking but under min_speech_duration
	require.False(t, res.Speech)
}

func TestPreRollCappedAtConfiguredSize(t *testing.T) {
	d := newTestDetector(2, WindowSamples, WindowSamples)
	d.step(window(0), false)
	d.step(window(0), false)
	require.LessOrEqual(t, len(d.preRoll), WindowSamples)
}

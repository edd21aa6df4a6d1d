package stt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTransducer simulates a 3-frame encoder output where the model emits
// "hello" at frame 0 (duration 2, skipping frame 1) and blank at frame 2.
// vocabSize=3: {0: "a", 1: "hello", 2: "<blk>"}, blankID=2, 3 duration bins
// (durations 0, 1, 2 encoder frames).
func TestGreedySearchEmitsNonBlankAndAdvancesByDuration(t *testing.T) {
	const vocabSize = 3
	const blankID = int64(2)
	hidden := 1
	numFrames := 3
	encoderOut := []float32{0, 0, 0} // one scalar "frame" per t, values unused by the fake

	callCount := 0
	joiner := func(frame, decoderOut []float32) ([]float32, error) {
		callCount++
		switch callCount {
		case 1:
			// token=1 ("hello"), duration=2 -> advance to t=2
			return []float32{0, 1, 0, 0, 0, 1}, nil
		case 2:
			// token=blank, duration=1
			return []float32{0, 0, 1, 0, 1, 0}, nil
		default:
			t.Fatalf("unexpected joiner call %d", callCount)
			return nil, nil
		}
	}

	decoder := func(token int64, state []float32) ([]float32, []float32, error) {
		return []float32{float32(token)}, state, nil
	}

	hyp, stats, err := greedySearch(encoderOut, numFrames, hidden, blankID, vocabSize, []float32{0}, decoder, joiner)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, hyp)
	require.Equal(t, 2, callCount)
	require.Equal(t, 2, stats.joinerCalls)
	require.Equal(t, 1, stats.blankCount)
	require.Equal(t, 1, stats.nonBlankCount)
	require.Equal(t, stats.joinerCalls, stats.blankCount+stats.nonBlankCount)
}

func TestGreedySearchDurationFlooredAtOne(t *testing.T) {
	const vocabSize = 2
	const blankID = int64(1)
	hidden := 1
	numFrames := 2
	encoderOut := []float32{0, 0}

	calls := 0
	joiner := func(frame, decoderOut []float32) ([]float32, error) {
		calls++
		// blank with duration argmax at index 0 (duration=0) every call —
		// must still advance by 1, not loop forever.
		return []float32{0, 1, 1}, nil
	}
	decoder := func(token int64, state []float32) ([]float32, []float32, error) {
		return []float32{0}, state, nil
	}

	hyp, stats, err := greedySearch(encoderOut, numFrames, hidden, blankID, vocabSize, []float32{0}, decoder, joiner)
	require.NoError(t, err)
	require.Empty(t, hyp)
	require.Equal(t, 2, calls)
	require.Equal(t, 2, stats.joinerCalls)
	require.Equal(t, 2, stats.blankCount)
	require.Equal(t, 0, stats.nonBlankCount)
	require.Equal(t, stats.joinerCalls, stats.blankCount+stats.nonBlankCount)
}

func TestGreedySearchPropagatesJoinerError(t *testing.T) {
	boom := errors.New("boom")
	joiner := func(frame, decoderOut []float32) ([]float32, error) { return nil, boom }
	decoder := func(token int64, state []float32) ([]float32, []float32, error) { return []float32{0}, state, nil }

	_, _, err := greedySearch([]float32{0}, 1, 1, 0, 2, []float32{0}, decoder, joiner)
	require.Error(t, err)
}

func TestArgmaxPicksHighest(t *testing.T) {
	require.Equal(t, 2, argmax([]float32{0.1, 0.2, 0.9, 0.05}))
	require.Equal(t, 0, argmax([]float32{5}))
}

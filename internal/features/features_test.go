package features

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractProducesNormalizedFeatures(t *testing.T) {
	samples := make([]float32, 16000) // 1s of audio
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 16000))
	}

	ext := New(80)
	feats := ext.Extract(samples)

	require.Greater(t, feats.Frames, 0)
	require.Equal(t, 80, feats.MelBins)

	for bin := 0; bin < feats.MelBins; bin++ {
		var sum float64
		for f := 0; f < feats.Frames; f++ {
			sum += float64(feats.At(f, bin))
		}
		mean := sum / float64(feats.Frames)
		require.InDelta(t, 0.0, mean, 1e-4)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	ext := New(80)
	feats := ext.Extract(nil)
	require.Equal(t, 0, feats.Frames)
}

func TestMelBinCountConfigurable(t *testing.T) {
	ext := New(128)
	feats := ext.Extract(make([]float32, 16000))
	require.Equal(t, 128, feats.MelBins)
}

func TestWriteCSVEmitsOneRowPerFrameAndBin(t *testing.T) {
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 16000))
	}
	feats := New(80).Extract(samples)

	var lines []string
	err := WriteCSV(feats, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, "frame,feature_idx,value", lines[0])
	require.Equal(t, 1+feats.Frames*feats.MelBins, len(lines))
	require.True(t, strings.HasPrefix(lines[1], "0,0,"))
}

func TestWriteCSVPropagatesWriterError(t *testing.T) {
	samples := make([]float32, 16000)
	feats := New(80).Extract(samples)

	writeErr := errors.New("disk full")
	err := WriteCSV(feats, func(line string) error {
		return writeErr
	})
	require.ErrorIs(t, err, writeErr)
}

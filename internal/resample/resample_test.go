package resample

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegerRatioExactLength(t *testing.T) {
	input := make([]float32, 4800*3) // divisible by 3
	out := Once(input, 48000, 16000, 1)
	require.Equal(t, len(input)/3, len(out))
}

func TestSameRateIsIdentityLength(t *testing.T) {
	input := make([]float32, 1600)
	out := Once(input, 16000, 16000, 1)
	require.Equal(t, len(input), len(out))
}

func TestDownmixStereoToMono(t *testing.T) {
	input := []float32{1, 3, 2, 4} // two frames, L/R
	out := New(16000, 16000, 2).Resample(input)
	require.Equal(t, []float32{2, 3}, out)
}

func TestEmptyInput(t *testing.T) {
	out := Once(nil, 48000, 16000, 1)
	require.Empty(t, out)
}

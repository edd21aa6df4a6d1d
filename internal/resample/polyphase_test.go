package resample

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolyphaseResamplerProducesExpectedOutputLength(t *testing.T) {
	r := NewPolyphaseResampler(48000, 16000)
	input := make([]float32, 4800)
	out := r.Resample(input)
	require.Equal(t, len(input)/3, len(out))
}

func TestPolyphaseResamplerPassesThroughWhenNotDownsampling(t *testing.T) {
	r := NewPolyphaseResampler(16000, 16000)
	input := []float32{1, 2, 3, 4}
	require.Equal(t, input, r.Resample(input))
}

func TestPolyphaseResamplerCarriesHistoryAcrossCalls(t *testing.T) {
	r := NewPolyphaseResampler(48000, 16000)
	first := make([]float32, 4800)
	for i := range first {
		first[i] = 1
	}
	second := make([]float32, 4800)
	for i := range second {
		second[i] = 1
	}

	out1 := r.Resample(first)
	out2 := r.Resample(second)
	require.Len(t, out1, 1600)
	require.Len(t, out2, 1600)

	// Steady-state input of all 1s should resample to values close to 1,
	// confirming the FIR filter coefficients are normalized to unit gain.
	for _, v := range out2 {
		require.InDelta(t, 1.0, v, 0.05)
	}
}

func TestPolyphaseResamplerHandlesEmptyInput(t *testing.T) {
	r := NewPolyphaseResampler(48000, 16000)
	require.Empty(t, r.Resample(nil))
}

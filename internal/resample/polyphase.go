package resample

import "math"

// PolyphaseResampler is a higher-quality downsampler using a windowed-sinc
// FIR low-pass filter to prevent aliasing, for callers that need better
// fidelity than the block-averaging integer-ratio fast path in Resampler
// (e.g. offline feature-extraction parity testing against golden files).
type PolyphaseResampler struct {
	ratio     float64
	filterLen int
	filter    []float32
	history   []float32
}

// NewPolyphaseResampler builds an anti-aliasing FIR resampler for
// downsampling from fromRate to toRate (toRate < fromRate).
func NewPolyphaseResampler(fromRate, toRate int) *PolyphaseResampler {
	ratio := float64(toRate) / float64(fromRate)
	filterLen := 64

	cutoff := ratio * 0.5
	if ratio >= 1.0 {
		cutoff = 0.5
	}

	filter := make([]float32, filterLen)
	for i := 0; i < filterLen; i++ {
		n := float64(i) - float64(filterLen-1)/2.0
		if n == 0 {
			filter[i] = float32(2.0 * cutoff)
		} else {
			sinc := math.Sin(2.0*math.Pi*cutoff*n) / (math.Pi * n)
			window := 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(filterLen-1))
			filter[i] = float32(sinc * window)
		}
	}

	var sum float32
	for _, f := range filter {
		sum += f
	}
	for i := range filter {
		filter[i] /= sum
	}

	return &PolyphaseResampler{
		ratio:     ratio,
		filterLen: filterLen,
		filter:    filter,
		history:   make([]float32, filterLen),
	}
}

// Resample filters and decimates mono input, carrying filter history across calls.
func (r *PolyphaseResampler) Resample(input []float32) []float32 {
	if r.ratio >= 1.0 || len(input) == 0 {
		return input
	}

	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	output := make([]float32, outputLen)

	combined := append(append([]float32{}, r.history...), input...)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos) + len(r.history) - r.filterLen/2

		var sample float32
		for j := 0; j < r.filterLen; j++ {
			idx := srcIdx - r.filterLen/2 + j
			if idx >= 0 && idx < len(combined) {
				sample += combined[idx] * r.filter[j]
			}
		}
		output[i] = sample
	}

	if inputLen >= r.filterLen {
		copy(r.history, input[inputLen-r.filterLen:])
	} else {
		shift := r.filterLen - inputLen
		copy(r.history, r.history[inputLen:])
		copy(r.history[shift:], input)
	}

	return output
}

// Package resample converts interleaved multi-channel float audio to mono
// audio at a target sample rate, as required by the feature extractor and
// VAD/STT models downstream (both expect 16 kHz mono).
package resample

import "math"

// Resampler converts audio from one fixed sample rate to another, buffering
// filter state across calls so a stream of chunks resamples continuously.
// A Resampler is owned by a single thread; it is not safe for concurrent use.
type Resampler struct {
	fromRate int
	toRate   int
	channels int
	ratio    float64

	// linear interpolation state
	lastSample float32

	// integer-ratio exact-length fast path
	intRatio   int  // fromRate / toRate when evenly divisible, else 0
	useIntPath bool
}

// New creates a Resampler for the given input rate, output rate, and input
// channel count. When channels > 1, Resample first downmixes by averaging
// across channels before resampling.
func New(fromRate, toRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	r := &Resampler{
		fromRate: fromRate,
		toRate:   toRate,
		channels: channels,
		ratio:    float64(toRate) / float64(fromRate),
	}
	if toRate > 0 && fromRate%toRate == 0 {
		r.intRatio = fromRate / toRate
		r.useIntPath = true
	}
	return r
}

// Resample converts interleaved input samples to mono output at toRate.
// Output length is exactly len(mono)/intRatio for the integer-ratio fast
// path (e.g. 48000→16000 divides exactly by 3); otherwise it is the nearest
// length for the fractional ratio.
func (r *Resampler) Resample(input []float32) []float32 {
	mono := downmix(input, r.channels)
	if r.fromRate == r.toRate {
		return mono
	}
	if r.useIntPath {
		return r.resampleIntRatio(mono)
	}
	return r.resampleLinear(mono)
}

// downmix averages across channels. Returns input unchanged when channels == 1.
func downmix(input []float32, channels int) []float32 {
	if channels <= 1 || len(input) == 0 {
		return input
	}
	frames := len(input) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += input[base+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resampleIntRatio averages every intRatio consecutive samples into one
// output sample, giving an exact input_len/intRatio output length and
// naturally anti-aliasing by block-averaging.
func (r *Resampler) resampleIntRatio(mono []float32) []float32 {
	n := len(mono)
	outLen := n / r.intRatio
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		var sum float32
		base := i * r.intRatio
		for j := 0; j < r.intRatio; j++ {
			sum += mono[base+j]
		}
		out[i] = sum / float32(r.intRatio)
	}
	return out
}

// resampleLinear is the general arbitrary-ratio path, used when fromRate
// does not divide evenly by toRate (e.g. upsampling, or odd device rates).
func (r *Resampler) resampleLinear(mono []float32) []float32 {
	inputLen := len(mono)
	if inputLen == 0 {
		return mono
	}

	outputLen := int(math.Round(float64(inputLen) * r.ratio))
	out := make([]float32, outputLen)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		sample1 := r.lastSample
		if srcIdx < inputLen {
			sample1 = mono[srcIdx]
		}

		sample2 := sample1
		if srcIdx+1 < inputLen {
			sample2 = mono[srcIdx+1]
		} else if srcIdx < inputLen {
			sample2 = mono[inputLen-1]
		}

		out[i] = sample1 + (sample2-sample1)*frac
	}

	r.lastSample = mono[inputLen-1]
	return out
}

// Once resamples a single buffer without retaining cross-call filter state.
// Prefer a reused Resampler for streaming audio.
func Once(input []float32, fromRate, toRate, channels int) []float32 {
	return New(fromRate, toRate, channels).Resample(input)
}

// Package features computes log-mel filterbank features matching the
// Kaldi-compatible fbank preprocessor the Parakeet-TDT model was trained
// against. Every parameter here is normative per the model's training
// preprocessor, not a tunable default (see spec §4.4).
package features

import (
	"fmt"
	"math"
	"math/cmplx"
)

const (
	sampleRate      = 16000
	frameLengthMs   = 25
	frameShiftMs    = 10
	preEmphasis     = 0.97
	fftSize         = 512
	minFreqHz       = 20.0
	maxFreqHz       = 7600.0
	stdFloor        = 1e-10
	poveyPowerCoeff = 0.85
)

var (
	frameLength = sampleRate * frameLengthMs / 1000 // 400
	frameShift  = sampleRate * frameShiftMs / 1000   // 160
)

// MelFeatures holds log-mel filterbank output, shape (Frames, MelBins), with
// Data laid out frame-major: Data[frame*MelBins+bin].
type MelFeatures struct {
	Frames  int
	MelBins int
	Data    []float32
}

// At returns the feature value at (frame, bin).
func (m *MelFeatures) At(frame, bin int) float32 {
	return m.Data[frame*m.MelBins+bin]
}

// Extractor computes MelFeatures for a fixed mel-bin count chosen by the
// caller; C6 passes its own melBins value, which is 80.
type Extractor struct {
	melBins     int
	filterbank  [][]float32 // [melBins][fftSize/2+1]
	poveyWindow []float32
}

// New builds an Extractor for the given mel-bin count (80 or 128).
func New(melBins int) *Extractor {
	return &Extractor{
		melBins:     melBins,
		filterbank:  buildMelFilterbank(melBins, fftSize, sampleRate, minFreqHz, maxFreqHz),
		poveyWindow: poveyWindow(frameLength),
	}
}

// Extract computes log-mel features for a 16kHz mono segment.
func (e *Extractor) Extract(samples []float32) *MelFeatures {
	if len(samples) == 0 {
		return &MelFeatures{MelBins: e.melBins}
	}

	emphasized := applyPreEmphasis(samples, preEmphasis)
	frames := frameSignal(emphasized, frameLength, frameShift)

	out := &MelFeatures{
		Frames:  len(frames),
		MelBins: e.melBins,
		Data:    make([]float32, len(frames)*e.melBins),
	}

	for fi, frame := range frames {
		windowed := make([]float64, fftSize)
		for i, s := range frame {
			windowed[i] = float64(s) * float64(e.poveyWindow[i])
		}
		spectrum := powerSpectrum(windowed, fftSize)

		for bin := 0; bin < e.melBins; bin++ {
			var energy float64
			filt := e.filterbank[bin]
			for k, w := range filt {
				energy += float64(w) * spectrum[k]
			}
			if energy < 1e-10 {
				energy = 1e-10
			}
			out.Data[fi*e.melBins+bin] = float32(math.Log(energy))
		}
	}

	normalizePerFeature(out)
	return out
}

// applyPreEmphasis applies y[n] = x[n] - coeff*x[n-1].
func applyPreEmphasis(samples []float32, coeff float64) []float32 {
	out := make([]float32, len(samples))
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = samples[i] - float32(coeff)*samples[i-1]
	}
	return out
}

// frameSignal slices samples into overlapping frames of frameLen, hopped by
// frameShift, zero-padded to fftSize. snip_edges=false per spec: frames are
// centered, including partial frames at the boundary, matching Kaldi's
// snip-edges=false convention.
func frameSignal(samples []float32, frameLen, shift int) [][]float32 {
	n := len(samples)
	numFrames := (n + shift/2) / shift
	frames := make([][]float32, numFrames)

	for fi := 0; fi < numFrames; fi++ {
		start := fi*shift + shift/2 - frameLen/2
		frame := make([]float32, fftSize)
		for i := 0; i < frameLen; i++ {
			s := start + i
			for s < 0 || s >= n { // reflect out-of-range indices back into the signal
				if s < 0 {
					s = -s - 1
				} else {
					s = 2*n - 1 - s
				}
			}
			frame[i] = samples[s]
		}
		frames[fi] = frame
	}
	return frames
}

// poveyWindow builds the 0.85-power raised-cosine window used by the
// model's training preprocessor (distinct from the Hamming/Hann window used
// elsewhere in the signal chain — spec §4.4 calls this out specifically as
// a parity requirement, not an optimization).
func poveyWindow(n int) []float32 {
	w := make([]float32, fftSize)
	for i := 0; i < n; i++ {
		hann := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		w[i] = float32(math.Pow(hann, poveyPowerCoeff))
	}
	return w
}

// powerSpectrum runs a radix-2 FFT (stdlib math/cmplx only — no third-party
// FFT package appears anywhere in the retrieval pack, see DESIGN.md) and
// returns the power spectrum for bins [0, fftSize/2].
func powerSpectrum(frame []float64, n int) []float64 {
	complexFrame := make([]complex128, n)
	for i, v := range frame {
		complexFrame[i] = complex(v, 0)
	}
	fft(complexFrame)

	bins := n/2 + 1
	power := make([]float64, bins)
	for i := 0; i < bins; i++ {
		power[i] = cmplx.Abs(complexFrame[i]) * cmplx.Abs(complexFrame[i])
	}
	return power
}

// fft is an in-place iterative radix-2 Cooley-Tukey FFT. n must be a power of two.
func fft(a []complex128) {
	n := len(a)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wlen := cmplx.Exp(complex(0, angle))
		for i := 0; i < n; i += length {
			w := complex(1.0, 0.0)
			for j := 0; j < length/2; j++ {
				u := a[i+j]
				v := a[i+j+length/2] * w
				a[i+j] = u + v
				a[i+j+length/2] = u - v
				w *= wlen
			}
		}
	}
}

// buildMelFilterbank builds triangular filters spaced on the mel scale
// between minHz and maxHz, matching Kaldi's fbank filter construction.
func buildMelFilterbank(melBins, fftSize, sampleRate int, minHz, maxHz float64) [][]float32 {
	numFFTBins := fftSize/2 + 1
	melMin := hzToMel(minHz)
	melMax := hzToMel(maxHz)

	melPoints := make([]float64, melBins+2)
	for i := range melPoints {
		melPoints[i] = melMin + (melMax-melMin)*float64(i)/float64(melBins+1)
	}

	binFreqs := make([]float64, numFFTBins)
	for k := range binFreqs {
		binFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	filters := make([][]float32, melBins)
	for m := 0; m < melBins; m++ {
		lowHz := melToHz(melPoints[m])
		centerHz := melToHz(melPoints[m+1])
		highHz := melToHz(melPoints[m+2])

		filt := make([]float32, numFFTBins)
		for k, freq := range binFreqs {
			var weight float64
			switch {
			case freq < lowHz || freq > highHz:
				weight = 0
			case freq <= centerHz:
				weight = (freq - lowHz) / (centerHz - lowHz)
			default:
				weight = (highHz - freq) / (highHz - centerHz)
			}
			if weight < 0 {
				weight = 0
			}
			filt[k] = float32(weight)
		}
		filters[m] = filt
	}
	return filters
}

func hzToMel(hz float64) float64 {
	return 1127.0 * math.Log(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// normalizePerFeature rescales each mel bin across the time axis of this
// segment to mean 0, std 1 (spec §4.4: a correctness requirement — without
// it the transducer produces degenerate output).
func normalizePerFeature(m *MelFeatures) {
	if m.Frames == 0 {
		return
	}
	for bin := 0; bin < m.MelBins; bin++ {
		var sum float64
		for f := 0; f < m.Frames; f++ {
			sum += float64(m.At(f, bin))
		}
		mean := sum / float64(m.Frames)

		var variance float64
		for f := 0; f < m.Frames; f++ {
			d := float64(m.At(f, bin)) - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(m.Frames))
		if std < stdFloor {
			std = stdFloor
		}

		for f := 0; f < m.Frames; f++ {
			idx := f*m.MelBins + bin
			m.Data[idx] = float32((float64(m.Data[idx]) - mean) / std)
		}
	}
}

// WriteCSV exports features as (frame,feature_idx,value) rows for golden-file
// parity testing against reference implementations.
func WriteCSV(m *MelFeatures, write func(line string) error) error {
	if err := write("frame,feature_idx,value"); err != nil {
		return err
	}
	for f := 0; f < m.Frames; f++ {
		for b := 0; b < m.MelBins; b++ {
			line := fmt.Sprintf("%d,%d,%f", f, b, m.At(f, b))
			if err := write(line); err != nil {
				return err
			}
		}
	}
	return nil
}

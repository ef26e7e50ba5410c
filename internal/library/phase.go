// SPDX-License-Identifier: MIT
package library

import (
	"math"
	"math/cmplx"

	"dspctl/internal/dsp"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Impulse optimization modes.
const (
	ImpulseOriginal = iota
	ImpulseMinimumPhase
	ImpulseMinimumPhaseTrimmed
)

// tailEnergy is the share of the total energy the trimmed minimum phase
// mode may drop from the end of the response.
const tailEnergy = 1e-6

// minFFTSize bounds cepstral aliasing on very short responses.
const minFFTSize = 256

// minMagnitude keeps the log spectrum finite.
const minMagnitude = 1e-10

// optimize applies the optimization mode to imp. Unknown modes leave the
// response as it is.
func optimize(imp dsp.Impulse, mode int) dsp.Impulse {
	switch mode {
	case ImpulseMinimumPhase:
		return minimumPhase(imp)
	case ImpulseMinimumPhaseTrimmed:
		return trimTail(minimumPhase(imp), tailEnergy)
	}
	return imp
}

// minimumPhase replaces every channel with the minimum phase response of
// the same magnitude spectrum, computed through the folded real cepstrum.
func minimumPhase(imp dsp.Impulse) dsp.Impulse {
	n := minFFTSize
	for n < 4*imp.Frames {
		n <<= 1
	}
	fft := fourier.NewFFT(n)
	scale := 1 / float64(n)

	out := make([]float32, len(imp.Samples))
	seq := make([]float64, n)
	for c := 0; c < imp.Channels; c++ {
		for i := range seq {
			seq[i] = 0
		}
		for i := 0; i < imp.Frames; i++ {
			seq[i] = float64(imp.Samples[i*imp.Channels+c])
		}

		spectrum := fft.Coefficients(nil, seq)
		for k, v := range spectrum {
			spectrum[k] = complex(math.Log(math.Max(cmplx.Abs(v), minMagnitude)), 0)
		}
		cepstrum := fft.Sequence(nil, spectrum)

		// Fold the anti-causal half onto the causal one.
		folded := make([]float64, n)
		folded[0] = cepstrum[0] * scale
		for i := 1; i < n/2; i++ {
			folded[i] = 2 * cepstrum[i] * scale
		}
		folded[n/2] = cepstrum[n/2] * scale

		spectrum = fft.Coefficients(spectrum, folded)
		for k, v := range spectrum {
			spectrum[k] = cmplx.Exp(v)
		}
		resp := fft.Sequence(seq, spectrum)
		for i := 0; i < imp.Frames; i++ {
			out[i*imp.Channels+c] = float32(resp[i] * scale)
		}
	}
	return dsp.Impulse{Samples: out, Channels: imp.Channels, Frames: imp.Frames}
}

// trimTail drops trailing frames holding at most share of the energy.
func trimTail(imp dsp.Impulse, share float64) dsp.Impulse {
	var total float64
	for _, v := range imp.Samples {
		total += float64(v) * float64(v)
	}
	if total == 0 {
		return imp
	}

	limit := total * share
	var tail float64
	last := imp.Frames
	for last > 1 {
		var e float64
		for c := 0; c < imp.Channels; c++ {
			v := float64(imp.Samples[(last-1)*imp.Channels+c])
			e += v * v
		}
		if tail+e > limit {
			break
		}
		tail += e
		last--
	}
	return dsp.Impulse{
		Samples:  imp.Samples[:last*imp.Channels],
		Channels: imp.Channels,
		Frames:   last,
	}
}

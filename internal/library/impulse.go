// SPDX-License-Identifier: MIT
package library

import (
	"fmt"
	"math"
	"os"

	"dspctl/internal/dsp"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	resampler "github.com/tphakala/go-audio-resampler"
)

const wavFormatPCM = 1

// ImpulseOptions controls how an impulse response is prepared.
type ImpulseOptions struct {
	// SampleRate is the engine rate; the response is resampled to it when
	// positive and different from the file rate.
	SampleRate int
	// StartThresholdDb and EndThresholdDb trim leading and trailing frames
	// quieter than the given level.
	StartThresholdDb float64
	EndThresholdDb   float64
	// Mode is one of ImpulseOriginal, ImpulseMinimumPhase and
	// ImpulseMinimumPhaseTrimmed.
	Mode int
}

// ReadImpulse decodes a PCM WAV impulse response into interleaved float32
// samples in [-1, 1) and fills in the commit hash.
func (l *Library) ReadImpulse(path string, opts ImpulseOptions) (dsp.Impulse, error) {
	full, err := l.stat(path)
	if err != nil {
		return dsp.Impulse{}, err
	}
	f, err := os.Open(full)
	if err != nil {
		return dsp.Impulse{}, fmt.Errorf("failed to open %s: %w", full, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return dsp.Impulse{}, fmt.Errorf("%s: invalid WAV file: %w", full, ErrCorrupt)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return dsp.Impulse{}, fmt.Errorf("%s: unsupported WAV format %d: %w", full, dec.WavAudioFormat, ErrCorrupt)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return dsp.Impulse{}, fmt.Errorf("%s: %v: %w", full, err, ErrCorrupt)
	}

	imp := toFloat(buf, int(dec.BitDepth))
	if imp.Frames == 0 {
		return dsp.Impulse{}, fmt.Errorf("%s: %w", full, ErrNoFrames)
	}
	if opts.SampleRate > 0 && buf.Format.SampleRate > 0 && buf.Format.SampleRate != opts.SampleRate {
		imp, err = resample(imp, buf.Format.SampleRate, opts.SampleRate)
		if err != nil {
			return dsp.Impulse{}, fmt.Errorf("%s: resample %d -> %d Hz: %v: %w", full, buf.Format.SampleRate, opts.SampleRate, err, ErrCorrupt)
		}
	}
	imp = trim(imp, opts.StartThresholdDb, opts.EndThresholdDb)
	if imp.Frames == 0 {
		return dsp.Impulse{}, fmt.Errorf("%s: silent after trimming: %w", full, ErrNoFrames)
	}
	imp = optimize(imp, opts.Mode)
	imp.Hash = dsp.ChecksumFloats(imp.Samples)
	return imp, nil
}

func toFloat(buf *audio.IntBuffer, bitDepth int) dsp.Impulse {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	scale := float32(1)
	if bitDepth > 0 {
		scale = float32(math.Exp2(float64(bitDepth - 1)))
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames*channels)
	for i := range samples {
		v := buf.Data[i]
		// 8-bit WAV data is unsigned.
		if bitDepth == 8 {
			v -= 128
		}
		samples[i] = float32(v) / scale
	}
	return dsp.Impulse{Samples: samples, Channels: channels, Frames: frames}
}

// resample converts every channel of imp from one rate to another.
func resample(imp dsp.Impulse, from, to int) (dsp.Impulse, error) {
	planes := make([][]float32, imp.Channels)
	frames := -1
	for c := range planes {
		in := make([]float32, imp.Frames)
		for i := range in {
			in[i] = imp.Samples[i*imp.Channels+c]
		}
		out, err := resampler.ResampleMonoFloat32(in, float64(from), float64(to), resampler.QualityHigh)
		if err != nil {
			return dsp.Impulse{}, err
		}
		planes[c] = out
		if frames < 0 || len(out) < frames {
			frames = len(out)
		}
	}

	samples := make([]float32, frames*imp.Channels)
	for c, plane := range planes {
		for i := 0; i < frames; i++ {
			samples[i*imp.Channels+c] = plane[i]
		}
	}
	return dsp.Impulse{Samples: samples, Channels: imp.Channels, Frames: frames}, nil
}

func trim(imp dsp.Impulse, startDb, endDb float64) dsp.Impulse {
	startLevel := float32(math.Pow(10, startDb/20))
	endLevel := float32(math.Pow(10, endDb/20))

	peak := func(frame int) float32 {
		var p float32
		for c := 0; c < imp.Channels; c++ {
			v := imp.Samples[frame*imp.Channels+c]
			if v < 0 {
				v = -v
			}
			p = max(p, v)
		}
		return p
	}

	first := 0
	for first < imp.Frames && peak(first) < startLevel {
		first++
	}
	last := imp.Frames
	for last > first && peak(last-1) < endLevel {
		last--
	}
	return dsp.Impulse{
		Samples:  imp.Samples[first*imp.Channels : last*imp.Channels],
		Channels: imp.Channels,
		Frames:   last - first,
	}
}

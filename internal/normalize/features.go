// SPDX-License-Identifier: MIT
package normalize

import (
	"errors"
	"strings"

	"dspctl/internal/dsp"
	"dspctl/internal/library"
	"dspctl/internal/settings"
)

// GraphicEqMarker must appear in every graphic equalizer node string.
const GraphicEqMarker = "GraphicEQ:"

// Files loads the content of file-backed namespaces.
type Files interface {
	ReadText(path string) (library.Text, error)
	ReadImpulse(path string, opts library.ImpulseOptions) (dsp.Impulse, error)
}

func Output(p settings.OutputPrefs) dsp.OutputControl {
	return dsp.OutputControl{
		LimiterThreshold: float32(clamp(p.LimiterThreshold, -60, 0)),
		LimiterRelease:   float32(clamp(p.LimiterRelease, 1.5, 2000)),
		PostGain:         float32(clamp(p.PostGain, -15, 15)),
	}
}

func Compander(p settings.CompanderPrefs) (dsp.CompanderSettings, error) {
	resp, err := ParseList(p.Response, dsp.CompanderFieldCount)
	if err != nil {
		return dsp.CompanderSettings{}, dsp.Invalid(dsp.Compander, "malformed response: %v", err)
	}
	s := dsp.CompanderSettings{
		Enabled:      p.Enabled,
		TimeConstant: float32(clamp(p.TimeConstant, 0.06, 0.3)),
		Granularity:  clamp(p.Granularity, 0, 4),
		TfTransforms: clamp(p.TfTransforms, 0, 4),
	}
	copy(s.Response[:], resp)
	return s, nil
}

func Bass(p settings.BassPrefs) dsp.BassSettings {
	return dsp.BassSettings{Enabled: p.Enabled, MaxGain: float32(clamp(p.MaxGain, 3, 15))}
}

// Equalizer parses the 30 band fields and snaps the frequencies to the scale
// of the selected filter type.
func Equalizer(p settings.EqualizerPrefs) (dsp.EqualizerSettings, error) {
	bands, err := ParseList(p.Bands, dsp.EqFieldCount)
	if err != nil {
		return dsp.EqualizerSettings{}, dsp.Invalid(dsp.Equalizer, "malformed bands: %v", err)
	}
	s := dsp.EqualizerSettings{
		Enabled:       p.Enabled,
		FilterType:    clamp(p.FilterType, dsp.EqFilterFIRMinimum, dsp.EqFilterViperOriginal),
		Interpolation: clamp(p.Interpolation, 0, 1),
	}
	copy(s.Bands[:], bands)
	s.Bands = SnapEqualizerBands(s.FilterType, s.Bands)
	return s, nil
}

// GraphicEq requires the format marker; without it the feature is disabled.
func GraphicEq(p settings.GraphicEqPrefs) (dsp.GraphicEqSettings, error) {
	if !strings.Contains(strings.ToLower(p.Nodes), strings.ToLower(GraphicEqMarker)) {
		return dsp.GraphicEqSettings{}, dsp.InvalidDisable(dsp.GraphicEqualizer, "missing %q marker", GraphicEqMarker)
	}
	return dsp.GraphicEqSettings{Enabled: p.Enabled, Bands: p.Nodes}, nil
}

func Reverb(p settings.ReverbPrefs) dsp.ReverbSettings {
	return dsp.ReverbSettings{Enabled: p.Enabled, Preset: clamp(p.Preset, 0, 17)}
}

func SpectrumExtension(p settings.SpectrumExtensionPrefs) (dsp.SpectrumExtensionSettings, error) {
	harmonics, err := ParseList(p.Harmonics, dsp.HarmonicsCount)
	if err != nil {
		return dsp.SpectrumExtensionSettings{}, dsp.Invalid(dsp.SpectrumExtension, "malformed harmonics: %v", err)
	}
	s := dsp.SpectrumExtensionSettings{
		Enabled:         p.Enabled,
		StrengthLinear:  float32(spectrumEngineStrength.linear(p.Strength)),
		ReferenceFreq:   clamp(p.RefFreq, 800, 20000),
		WetMix:          float32(clamp(p.WetMix, 0, 100) / 100),
		PostGainDb:      float32(clamp(p.PostGain, -15, 15)),
		Safety:          p.Safety,
		HighPassQ:       float32(clamp(p.HpQ, 0.2, 2)),
		LowPassQ:        float32(clamp(p.LpQ, 0.2, 2)),
		LowPassOffsetHz: clamp(p.LpOffset, 0, 12000),
	}
	copy(s.Harmonics[:], harmonics)
	return s, nil
}

func Clarity(p settings.ClarityPrefs) dsp.ClaritySettings {
	return dsp.ClaritySettings{
		Enabled:             p.Enabled,
		Mode:                clamp(p.Mode, 0, 2),
		Gain:                float32(clarityEngineStrength.linear(p.Strength)),
		PostGainDb:          float32(clamp(p.PostGain, -24, 16)),
		Safety:              p.Safety,
		SafetyThresholdDb:   float32(clamp(p.SafetyThreshold, -12, 0)),
		SafetyReleaseMs:     float32(clamp(p.SafetyRelease, 1.5, 500)),
		NaturalLpfOffsetHz:  clamp(p.NaturalLpfOffset, 200, 5000),
		OzoneFreqHz:         clamp(p.OzoneFrequency, 2000, 16000),
		XhifiLowCutHz:       clamp(p.XhifiLowCut, 40, 400),
		XhifiHighCutHz:      clamp(p.XhifiHighCut, 400, 6000),
		XhifiHpMix:          float32(clamp(p.XhifiHpMix, 0, 2.5)),
		XhifiBpMix:          float32(clamp(p.XhifiBpMix, 0, 2.5)),
		XhifiBpDelayDivisor: clamp(p.XhifiBpDelayDivisor, 80, 1200),
		XhifiLpDelayDivisor: clamp(p.XhifiLpDelayDivisor, 80, 1200),
	}
}

// FieldSurround keeps Depth raw (signed 16-bit); the backends pick the
// depth path.
func FieldSurround(p settings.FieldSurroundPrefs) dsp.FieldSurroundSettings {
	return dsp.FieldSurroundSettings{
		Enabled:         p.Enabled,
		OutputMode:      clamp(p.OutputMode, 0, 2),
		Widening:        clamp(p.Widening, 0, 800),
		MidImage:        clamp(p.MidImage, 0, 800),
		Depth:           int(ToDirectDepthStrength(p.Depth)),
		PhaseOffset:     clamp(p.PhaseOffset, -100, 100),
		MonoSumMix:      clamp(p.MonoSumMix, 0, 100),
		MonoSumPan:      clamp(p.MonoSumPan, -100, 100),
		DelayLeftMs:     float32(clamp(p.DelayLeftMs, 1, 100)),
		DelayRightMs:    float32(clamp(p.DelayRightMs, 1, 100)),
		HpfFrequencyHz:  float32(clamp(p.HpfFrequencyHz, 20, 4000)),
		HpfGainDb:       float32(clamp(p.HpfGainDb, -30, 12)),
		HpfQ:            float32(clamp(p.HpfQ, 0.1, 3)),
		BranchThreshold: clamp(p.BranchThreshold, 0, 2000),
		GainScaleDb:     float32(clamp(p.GainScaleDb, 0, 30)),
		GainOffsetDb:    float32(clamp(p.GainOffsetDb, -40, 20)),
		GainCap:         float32(clamp(p.GainCap, 0.1, 2)),
		StereoFloor:     float32(clamp(p.StereoFloor, 0.1, 5)),
		StereoFallback:  float32(clamp(p.StereoFallback, 0.1, 2)),
	}
}

func StereoWidener(p settings.StereoWidenerPrefs) dsp.StereoWidenerSettings {
	return dsp.StereoWidenerSettings{Enabled: p.Enabled, Level: float32(clamp(p.Level, 0, 100))}
}

func Crossfeed(p settings.CrossfeedPrefs) dsp.CrossfeedSettings {
	if p.Mode == dsp.CrossfeedCustomMode {
		return dsp.CrossfeedSettings{
			Enabled:  p.Enabled,
			Mode:     dsp.CrossfeedCustomMode,
			CutoffHz: clamp(p.Cutoff, 300, 2000),
			FeedDb:   clamp(p.Feed, 10, 150),
		}
	}
	return dsp.CrossfeedSettings{Enabled: p.Enabled, Mode: clamp(p.Mode, 0, 5)}
}

func Tube(p settings.TubePrefs) dsp.TubeSettings {
	return dsp.TubeSettings{Enabled: p.Enabled, Drive: float32(clamp(p.Drive, 0, 12))}
}

// DynamicRangeFile loads the declipping filter. A missing file disables the
// feature without error.
func DynamicRangeFile(p settings.FilePrefs, files Files) (dsp.DynamicRangeFileSettings, error) {
	txt, err := files.ReadText(p.File)
	if errors.Is(err, library.ErrNotFound) {
		return dsp.DynamicRangeFileSettings{}, nil
	}
	if err != nil {
		return dsp.DynamicRangeFileSettings{}, dsp.Invalid(dsp.DynamicRangeFile, "%v", err)
	}
	return dsp.DynamicRangeFileSettings{Enabled: p.Enabled, Filter: txt.Content}, nil
}

// LiveProgram loads the user script. A missing file disables the feature
// without error.
func LiveProgram(p settings.FilePrefs, files Files) (dsp.LiveProgramSettings, error) {
	txt, err := files.ReadText(p.File)
	if errors.Is(err, library.ErrNotFound) {
		return dsp.LiveProgramSettings{}, nil
	}
	if err != nil {
		return dsp.LiveProgramSettings{}, dsp.Invalid(dsp.LiveProgram, "%v", err)
	}
	return dsp.LiveProgramSettings{Enabled: p.Enabled, Name: txt.Name, Script: txt.Content}, nil
}

// ConvolverAdvParams parses the six field tuning string. Unusable input
// yields the defaults and false. Only the first two fields, the trim
// thresholds, affect the prepared impulse.
func ConvolverAdvParams(raw string) ([dsp.ConvolverAdvCount]int, bool) {
	v, err := ParseIntList(raw, dsp.ConvolverAdvCount)
	if err != nil {
		return dsp.DefaultConvolverAdvParams, false
	}
	// The first two fields are trim thresholds in dB.
	if v[0] > 0 || v[1] > 0 {
		return dsp.DefaultConvolverAdvParams, false
	}
	var out [dsp.ConvolverAdvCount]int
	copy(out[:], v)
	return out, true
}

// Convolver loads and decodes the impulse response. A disabled feature or a
// missing file yields a disabled struct; undecodable or empty responses
// disable the feature and fail with a notice attached.
func Convolver(p settings.ConvolverPrefs, files Files, sampleRate int) (dsp.ConvolverSettings, error) {
	off := dsp.ConvolverSettings{Mode: clamp(p.Mode, library.ImpulseOriginal, library.ImpulseMinimumPhaseTrimmed), AdvParamsValid: true}
	if !p.Enabled {
		return off, nil
	}

	adv, valid := ConvolverAdvParams(p.AdvImp)
	imp, err := files.ReadImpulse(p.File, library.ImpulseOptions{
		SampleRate:       sampleRate,
		StartThresholdDb: float64(adv[0]),
		EndThresholdDb:   float64(adv[1]),
		Mode:             off.Mode,
	})
	switch {
	case errors.Is(err, library.ErrNotFound):
		return off, nil
	case errors.Is(err, library.ErrNoFrames):
		e := dsp.InvalidDisable(dsp.Convolver, "%v", err)
		e.Notice = dsp.ConvolverNoFrames
		return off, e
	case err != nil:
		e := dsp.InvalidDisable(dsp.Convolver, "%v", err)
		e.Notice = dsp.ConvolverCorrupted
		return off, e
	}

	return dsp.ConvolverSettings{
		Enabled:        true,
		Mode:           off.Mode,
		AdvParamsValid: valid,
		Impulse:        imp,
	}, nil
}

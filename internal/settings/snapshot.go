// SPDX-License-Identifier: MIT
package settings

import "dspctl/internal/dsp"

// Preference keys. Keys are only unique within their namespace.
const (
	KeyEnable = "enable"

	KeyOutputPostGain         = "postgain"
	KeyOutputLimiterThreshold = "limiter_threshold"
	KeyOutputLimiterRelease   = "limiter_release"

	KeyCompanderTimeConstant = "timeconstant"
	KeyCompanderGranularity  = "granularity"
	KeyCompanderTfTransforms = "tftransforms"
	KeyCompanderResponse     = "response"

	KeyBassMaxGain = "max_gain"

	KeyEqFilterType    = "filter_type"
	KeyEqInterpolation = "interpolation"
	KeyEqBands         = "bands"

	KeyGraphicEqNodes = "nodes"

	KeyReverbPreset = "preset"

	KeyStrengthUnit    = "strength_unit"
	KeyStrengthPercent = "strength_percent"
	KeyStrengthDb      = "strength_db"

	KeySpectrumRefFreq   = "ref_freq"
	KeySpectrumWetMix    = "wet_mix"
	KeySpectrumPostGain  = "post_gain"
	KeySpectrumSafety    = "safety"
	KeySpectrumHpQ       = "hp_q"
	KeySpectrumLpQ       = "lp_q"
	KeySpectrumLpOffset  = "lp_offset"
	KeySpectrumHarmonics = "harmonics"

	KeyClarityMode               = "mode"
	KeyClarityPostGain           = "post_gain"
	KeyClaritySafety             = "safety"
	KeyClaritySafetyThreshold    = "safety_threshold"
	KeyClaritySafetyRelease      = "safety_release"
	KeyClarityNaturalLpfOffset   = "natural_lpf_offset"
	KeyClarityOzoneFrequency     = "ozone_frequency"
	KeyClarityXhifiLowCut        = "xhifi_low_cut"
	KeyClarityXhifiHighCut       = "xhifi_high_cut"
	KeyClarityXhifiHpMix         = "xhifi_hp_mix"
	KeyClarityXhifiBpMix         = "xhifi_bp_mix"
	KeyClarityXhifiBpDelayDivide = "xhifi_bp_delay_divisor"
	KeyClarityXhifiLpDelayDivide = "xhifi_lp_delay_divisor"

	KeySurroundOutputMode      = "output_mode"
	KeySurroundWidening        = "widening"
	KeySurroundMidImage        = "mid_image"
	KeySurroundDepth           = "depth"
	KeySurroundPhaseOffset     = "phase_offset"
	KeySurroundMonoSumMix      = "mono_sum_mix"
	KeySurroundMonoSumPan      = "mono_sum_pan"
	KeySurroundDelayLeftMs     = "delay_left_ms"
	KeySurroundDelayRightMs    = "delay_right_ms"
	KeySurroundHpfFrequencyHz  = "hpf_frequency_hz"
	KeySurroundHpfGainDb       = "hpf_gain_db"
	KeySurroundHpfQ            = "hpf_q"
	KeySurroundBranchThreshold = "branch_threshold"
	KeySurroundGainScaleDb     = "gain_scale_db"
	KeySurroundGainOffsetDb    = "gain_offset_db"
	KeySurroundGainCap         = "gain_cap"
	KeySurroundStereoFloor     = "stereo_floor"
	KeySurroundStereoFallback  = "stereo_fallback"

	KeyStereoWideLevel = "mode"

	KeyCrossfeedMode   = "mode"
	KeyCrossfeedCutoff = "custom_fcut"
	KeyCrossfeedFeed   = "custom_feed"

	KeyTubeDrive = "drive"

	KeyFile = "file"

	KeyConvolverAdvImp = "adv_imp"
	KeyConvolverMode   = "mode"
)

// Defaults for string valued preferences.
const (
	DefaultCompanderResponse = "95.0;200.0;400.0;800.0;1600.0;3400.0;7500.0;0;0;0;0;0;0;0"
	DefaultGraphicEqNodes    = "GraphicEQ: 25 0; 40 0; 63 0; 100 0; 160 0; 250 0; 400 0; 630 0; 1000 0; 1600 0; 2500 0; 4000 0; 6300 0; 10000 0; 16000 0"
	DefaultHarmonics         = "0.02;0;0.02;0;0.02;0;0.02;0;0.02;0"
	DefaultConvolverAdvImp   = "-80;-100;0;0;0;0"
)

// DefaultEqBands is the flat standard-scale curve.
const DefaultEqBands = "25.0;40.0;63.0;100.0;160.0;250.0;400.0;630.0;1000.0;1600.0;2500.0;4000.0;6300.0;10000.0;16000.0;" +
	"0.0;0.0;0.0;0.0;0.0;0.0;0.0;0.0;0.0;0.0;0.0;0.0;0.0;0.0;0.0"

// Values of KeyStrengthUnit.
const (
	UnitPercent = "percent"
	UnitDb      = "db"
)

// Raw per-namespace preferences as stored. Nothing here is validated.
type (
	OutputPrefs struct {
		PostGain         float64
		LimiterThreshold float64
		LimiterRelease   float64
	}

	CompanderPrefs struct {
		Enabled      bool
		TimeConstant float64
		Granularity  int
		TfTransforms int
		Response     string
	}

	BassPrefs struct {
		Enabled bool
		MaxGain float64
	}

	EqualizerPrefs struct {
		Enabled       bool
		FilterType    int
		Interpolation int
		Bands         string
	}

	GraphicEqPrefs struct {
		Enabled bool
		Nodes   string
	}

	ReverbPrefs struct {
		Enabled bool
		Preset  int
	}

	// StrengthPrefs is the percent/dB pair shared by spectrum extension and
	// clarity. Unit selects which of the two is authoritative.
	StrengthPrefs struct {
		Unit    string
		Percent float64
		Db      float64
	}

	SpectrumExtensionPrefs struct {
		Enabled   bool
		Strength  StrengthPrefs
		RefFreq   int
		WetMix    float64
		PostGain  float64
		Safety    bool
		HpQ       float64
		LpQ       float64
		LpOffset  int
		Harmonics string
	}

	ClarityPrefs struct {
		Enabled             bool
		Mode                int
		Strength            StrengthPrefs
		PostGain            float64
		Safety              bool
		SafetyThreshold     float64
		SafetyRelease       float64
		NaturalLpfOffset    int
		OzoneFrequency      int
		XhifiLowCut         int
		XhifiHighCut        int
		XhifiHpMix          float64
		XhifiBpMix          float64
		XhifiBpDelayDivisor int
		XhifiLpDelayDivisor int
	}

	FieldSurroundPrefs struct {
		Enabled         bool
		OutputMode      int
		Widening        int
		MidImage        int
		Depth           int
		PhaseOffset     int
		MonoSumMix      int
		MonoSumPan      int
		DelayLeftMs     float64
		DelayRightMs    float64
		HpfFrequencyHz  float64
		HpfGainDb       float64
		HpfQ            float64
		BranchThreshold int
		GainScaleDb     float64
		GainOffsetDb    float64
		GainCap         float64
		StereoFloor     float64
		StereoFallback  float64
	}

	StereoWidenerPrefs struct {
		Enabled bool
		Level   float64
	}

	CrossfeedPrefs struct {
		Enabled bool
		Mode    int
		Cutoff  int
		Feed    int
	}

	TubePrefs struct {
		Enabled bool
		Drive   float64
	}

	// FilePrefs is used by every file-backed namespace.
	FilePrefs struct {
		Enabled bool
		File    string
	}

	ConvolverPrefs struct {
		Enabled bool
		File    string
		AdvImp  string
		Mode    int
	}
)

// Snapshot holds the raw preferences of every namespace, read in one go.
type Snapshot struct {
	Output            OutputPrefs
	Compander         CompanderPrefs
	Bass              BassPrefs
	Equalizer         EqualizerPrefs
	GraphicEq         GraphicEqPrefs
	Reverb            ReverbPrefs
	SpectrumExtension SpectrumExtensionPrefs
	Clarity           ClarityPrefs
	FieldSurround     FieldSurroundPrefs
	StereoWidener     StereoWidenerPrefs
	Crossfeed         CrossfeedPrefs
	Tube              TubePrefs
	DynamicRangeFile  FilePrefs
	LiveProgram       FilePrefs
	Convolver         ConvolverPrefs
}

func readStrength(sec Section) StrengthPrefs {
	return StrengthPrefs{
		Unit:    sec.String(KeyStrengthUnit, UnitPercent),
		Percent: sec.Float(KeyStrengthPercent, 100),
		Db:      sec.Float(KeyStrengthDb, 0),
	}
}

// Read pulls every namespace out of the store, applying defaults for
// missing keys.
func Read(st Selector) Snapshot {
	var snap Snapshot

	sec := st.Select(dsp.Output)
	snap.Output = OutputPrefs{
		PostGain:         sec.Float(KeyOutputPostGain, 0),
		LimiterThreshold: sec.Float(KeyOutputLimiterThreshold, -0.1),
		LimiterRelease:   sec.Float(KeyOutputLimiterRelease, 60),
	}

	sec = st.Select(dsp.Compander)
	snap.Compander = CompanderPrefs{
		Enabled:      sec.Bool(KeyEnable, false),
		TimeConstant: sec.Float(KeyCompanderTimeConstant, 0.22),
		Granularity:  sec.Int(KeyCompanderGranularity, 2),
		TfTransforms: sec.Int(KeyCompanderTfTransforms, 0),
		Response:     sec.String(KeyCompanderResponse, DefaultCompanderResponse),
	}

	sec = st.Select(dsp.Bass)
	snap.Bass = BassPrefs{
		Enabled: sec.Bool(KeyEnable, false),
		MaxGain: sec.Float(KeyBassMaxGain, 5),
	}

	sec = st.Select(dsp.Equalizer)
	snap.Equalizer = EqualizerPrefs{
		Enabled:       sec.Bool(KeyEnable, false),
		FilterType:    sec.Int(KeyEqFilterType, 0),
		Interpolation: sec.Int(KeyEqInterpolation, 0),
		Bands:         sec.String(KeyEqBands, DefaultEqBands),
	}

	sec = st.Select(dsp.GraphicEqualizer)
	snap.GraphicEq = GraphicEqPrefs{
		Enabled: sec.Bool(KeyEnable, false),
		Nodes:   sec.String(KeyGraphicEqNodes, DefaultGraphicEqNodes),
	}

	sec = st.Select(dsp.Reverb)
	snap.Reverb = ReverbPrefs{
		Enabled: sec.Bool(KeyEnable, false),
		Preset:  sec.Int(KeyReverbPreset, 0),
	}

	sec = st.Select(dsp.SpectrumExtension)
	snap.SpectrumExtension = SpectrumExtensionPrefs{
		Enabled:   sec.Bool(KeyEnable, false),
		Strength:  readStrength(sec),
		RefFreq:   sec.Int(KeySpectrumRefFreq, 7600),
		WetMix:    sec.Float(KeySpectrumWetMix, 100),
		PostGain:  sec.Float(KeySpectrumPostGain, 0),
		Safety:    sec.Bool(KeySpectrumSafety, true),
		HpQ:       sec.Float(KeySpectrumHpQ, 0.717),
		LpQ:       sec.Float(KeySpectrumLpQ, 0.717),
		LpOffset:  sec.Int(KeySpectrumLpOffset, 2000),
		Harmonics: sec.String(KeySpectrumHarmonics, DefaultHarmonics),
	}

	sec = st.Select(dsp.Clarity)
	snap.Clarity = ClarityPrefs{
		Enabled:             sec.Bool(KeyEnable, false),
		Mode:                sec.Int(KeyClarityMode, 0),
		Strength:            readStrength(sec),
		PostGain:            sec.Float(KeyClarityPostGain, 0),
		Safety:              sec.Bool(KeyClaritySafety, false),
		SafetyThreshold:     sec.Float(KeyClaritySafetyThreshold, -0.8),
		SafetyRelease:       sec.Float(KeyClaritySafetyRelease, 60),
		NaturalLpfOffset:    sec.Int(KeyClarityNaturalLpfOffset, 1000),
		OzoneFrequency:      sec.Int(KeyClarityOzoneFrequency, 8250),
		XhifiLowCut:         sec.Int(KeyClarityXhifiLowCut, 120),
		XhifiHighCut:        sec.Int(KeyClarityXhifiHighCut, 1200),
		XhifiHpMix:          sec.Float(KeyClarityXhifiHpMix, 1.2),
		XhifiBpMix:          sec.Float(KeyClarityXhifiBpMix, 1.0),
		XhifiBpDelayDivisor: sec.Int(KeyClarityXhifiBpDelayDivide, 400),
		XhifiLpDelayDivisor: sec.Int(KeyClarityXhifiLpDelayDivide, 200),
	}

	sec = st.Select(dsp.FieldSurround)
	snap.FieldSurround = FieldSurroundPrefs{
		Enabled:         sec.Bool(KeyEnable, false),
		OutputMode:      sec.Int(KeySurroundOutputMode, 0),
		Widening:        sec.Int(KeySurroundWidening, 100),
		MidImage:        sec.Int(KeySurroundMidImage, 100),
		Depth:           sec.Int(KeySurroundDepth, 100),
		PhaseOffset:     sec.Int(KeySurroundPhaseOffset, 0),
		MonoSumMix:      sec.Int(KeySurroundMonoSumMix, 0),
		MonoSumPan:      sec.Int(KeySurroundMonoSumPan, 0),
		DelayLeftMs:     sec.Float(KeySurroundDelayLeftMs, 20),
		DelayRightMs:    sec.Float(KeySurroundDelayRightMs, 14),
		HpfFrequencyHz:  sec.Float(KeySurroundHpfFrequencyHz, 800),
		HpfGainDb:       sec.Float(KeySurroundHpfGainDb, -11),
		HpfQ:            sec.Float(KeySurroundHpfQ, 0.72),
		BranchThreshold: sec.Int(KeySurroundBranchThreshold, 500),
		GainScaleDb:     sec.Float(KeySurroundGainScaleDb, 10),
		GainOffsetDb:    sec.Float(KeySurroundGainOffsetDb, -15),
		GainCap:         sec.Float(KeySurroundGainCap, 1.0),
		StereoFloor:     sec.Float(KeySurroundStereoFloor, 2.0),
		StereoFallback:  sec.Float(KeySurroundStereoFallback, 0.5),
	}

	sec = st.Select(dsp.StereoWidener)
	snap.StereoWidener = StereoWidenerPrefs{
		Enabled: sec.Bool(KeyEnable, false),
		Level:   sec.Float(KeyStereoWideLevel, 60),
	}

	sec = st.Select(dsp.Crossfeed)
	snap.Crossfeed = CrossfeedPrefs{
		Enabled: sec.Bool(KeyEnable, false),
		Mode:    sec.Int(KeyCrossfeedMode, 0),
		Cutoff:  sec.Int(KeyCrossfeedCutoff, 700),
		Feed:    sec.Int(KeyCrossfeedFeed, 45),
	}

	sec = st.Select(dsp.Tube)
	snap.Tube = TubePrefs{
		Enabled: sec.Bool(KeyEnable, false),
		Drive:   sec.Float(KeyTubeDrive, 2),
	}

	sec = st.Select(dsp.DynamicRangeFile)
	snap.DynamicRangeFile = FilePrefs{
		Enabled: sec.Bool(KeyEnable, false),
		File:    sec.String(KeyFile, ""),
	}

	sec = st.Select(dsp.LiveProgram)
	snap.LiveProgram = FilePrefs{
		Enabled: sec.Bool(KeyEnable, false),
		File:    sec.String(KeyFile, ""),
	}

	sec = st.Select(dsp.Convolver)
	snap.Convolver = ConvolverPrefs{
		Enabled: sec.Bool(KeyEnable, false),
		File:    sec.String(KeyFile, ""),
		AdvImp:  sec.String(KeyConvolverAdvImp, DefaultConvolverAdvImp),
		Mode:    sec.Int(KeyConvolverMode, 0),
	}

	return snap
}

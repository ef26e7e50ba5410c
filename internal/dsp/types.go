// SPDX-License-Identifier: MIT
package dsp

// Array sizes fixed by the engine.
const (
	EqBandCount         = 15
	EqFieldCount        = 2 * EqBandCount // frequencies followed by gains
	CompanderFieldCount = 14
	HarmonicsCount      = 10
	ConvolverAdvCount   = 6
)

// Equalizer filter modes the control layer treats specially.
const (
	EqFilterFIRMinimum    = 0
	EqFilterViperOriginal = 6
)

// CrossfeedCustomMode selects the user supplied cutoff/feed pair.
const CrossfeedCustomMode = 99

// OutputControl carries limiter and post gain. Threshold in dB [-60, 0],
// release in ms [1.5, 2000], post gain in dB [-15, 15].
type OutputControl struct {
	LimiterThreshold float32
	LimiterRelease   float32
	PostGain         float32
}

// CompanderSettings: time constant [0.06, 0.3] s, granularity [0, 4],
// time-frequency transforms [0, 4]. Response holds seven frequencies
// followed by seven gains.
type CompanderSettings struct {
	Enabled      bool
	TimeConstant float32
	Granularity  int
	TfTransforms int
	Response     [CompanderFieldCount]float64
}

// BassSettings: max gain in dB [3, 15].
type BassSettings struct {
	Enabled bool
	MaxGain float32
}

// EqualizerSettings: filter type [0, 6], interpolation 0 or 1. Bands holds
// 15 center frequencies (already snapped to the scale of FilterType) followed
// by 15 gains.
type EqualizerSettings struct {
	Enabled       bool
	FilterType    int
	Interpolation int
	Bands         [EqFieldCount]float64
}

// Gains returns the user gains of the equalizer.
func (e EqualizerSettings) Gains() []float64 {
	return e.Bands[EqBandCount:]
}

// GraphicEqSettings carries the node string in "GraphicEQ: f g; ..." format.
type GraphicEqSettings struct {
	Enabled bool
	Bands   string
}

// ReverbSettings: preset [0, 17].
type ReverbSettings struct {
	Enabled bool
	Preset  int
}

// SpectrumExtensionSettings are forwarded as-is in the advanced payload.
// Strength is linear [0.01, 10^(12/20)], reference [800, 20000] Hz,
// wet mix [0, 1], post gain [-15, 15] dB, Q factors [0.2, 2.0],
// low-pass offset [0, 12000] Hz.
type SpectrumExtensionSettings struct {
	Enabled         bool
	StrengthLinear  float32
	ReferenceFreq   int
	WetMix          float32
	PostGainDb      float32
	Safety          bool
	HighPassQ       float32
	LowPassQ        float32
	LowPassOffsetHz int
	Harmonics       [HarmonicsCount]float64
}

// ClaritySettings: mode [0, 2], gain linear [0, 10^(16/20)], post gain
// [-24, 16] dB, safety threshold [-12, 0] dB, safety release [1.5, 500] ms.
type ClaritySettings struct {
	Enabled             bool
	Mode                int
	Gain                float32
	PostGainDb          float32
	Safety              bool
	SafetyThresholdDb   float32
	SafetyReleaseMs     float32
	NaturalLpfOffsetHz  int
	OzoneFreqHz         int
	XhifiLowCutHz       int
	XhifiHighCutHz      int
	XhifiHpMix          float32
	XhifiBpMix          float32
	XhifiBpDelayDivisor int
	XhifiLpDelayDivisor int
}

// FieldSurroundSettings mirror the engine's stereo field stage. Depth is the
// raw depth value clamped to the signed 16-bit range; each backend maps it
// with its own depth path before transmission.
type FieldSurroundSettings struct {
	Enabled         bool
	OutputMode      int
	Widening        int
	MidImage        int
	Depth           int
	PhaseOffset     int
	MonoSumMix      int
	MonoSumPan      int
	DelayLeftMs     float32
	DelayRightMs    float32
	HpfFrequencyHz  float32
	HpfGainDb       float32
	HpfQ            float32
	BranchThreshold int
	GainScaleDb     float32
	GainOffsetDb    float32
	GainCap         float32
	StereoFloor     float32
	StereoFallback  float32
}

// StereoWidenerSettings: level [0, 100].
type StereoWidenerSettings struct {
	Enabled bool
	Level   float32
}

// CrossfeedSettings: mode [0, 5] or CrossfeedCustomMode. CutoffHz [300, 2000]
// and FeedDb (tenths of a dB) [10, 150] only apply to the custom mode.
type CrossfeedSettings struct {
	Enabled  bool
	Mode     int
	CutoffHz int
	FeedDb   int
}

// Custom reports whether the user supplied cutoff/feed pair is selected.
func (c CrossfeedSettings) Custom() bool {
	return c.Mode == CrossfeedCustomMode
}

// TubeSettings: drive [0, 12].
type TubeSettings struct {
	Enabled bool
	Drive   float32
}

// DynamicRangeFileSettings carries the declipping filter description text.
type DynamicRangeFileSettings struct {
	Enabled bool
	Filter  string
}

// LiveProgramSettings carries a user script and its file name.
type LiveProgramSettings struct {
	Enabled bool
	Name    string
	Script  string
}

// Impulse is a decoded impulse response, interleaved float32 samples.
type Impulse struct {
	Samples  []float32
	Channels int
	Frames   int
	Hash     int32
}

// ConvolverSettings: mode [0, 2] is the optimization the impulse was
// prepared with. AdvParamsValid is false when the tuning string was
// malformed and the default thresholds were used.
type ConvolverSettings struct {
	Enabled        bool
	Mode           int
	AdvParamsValid bool
	Impulse        Impulse
}

// DefaultConvolverAdvParams is used whenever the tuning string is unusable.
var DefaultConvolverAdvParams = [ConvolverAdvCount]int{-80, -100, 0, 0, 0, 0}

// DefaultHarmonics is the spectrum extension harmonic weighting shipped with
// the engine.
var DefaultHarmonics = [HarmonicsCount]float64{0.02, 0, 0.02, 0, 0.02, 0, 0.02, 0, 0.02, 0}

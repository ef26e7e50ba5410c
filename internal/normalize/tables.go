// SPDX-License-Identifier: MIT
package normalize

import (
	"math"

	"dspctl/internal/dsp"
)

// Equalizer center frequency tables.
var (
	StandardScale = [dsp.EqBandCount]float64{
		25, 40, 63, 100, 160, 250, 400, 630, 1000, 1600, 2500, 4000, 6300, 10000, 16000,
	}
	ViperScale = [10]float64{
		31, 62, 125, 250, 500, 1000, 2000, 4000, 8000, 16000,
	}
	ViperExtScale = [dsp.EqBandCount - len(ViperScale)]float64{
		17000, 18000, 19000, 20000, 22000,
	}
)

// SnapEqualizerBands overwrites the frequency half of bands with the scale
// selected by filterType. Gains are copied unchanged.
func SnapEqualizerBands(filterType int, bands [dsp.EqFieldCount]float64) [dsp.EqFieldCount]float64 {
	out := bands
	if filterType == dsp.EqFilterViperOriginal {
		copy(out[:len(ViperScale)], ViperScale[:])
		copy(out[len(ViperScale):dsp.EqBandCount], ViperExtScale[:])
		return out
	}
	copy(out[:dsp.EqBandCount], StandardScale[:])
	return out
}

// DepthBranchThreshold is the direct depth value from which the engine
// switches to its alternate depth branch.
const DepthBranchThreshold = 500

// DirectDepth is a depth value for transports that accept the raw signed
// 16-bit depth parameter.
type DirectDepth int16

// WrapperDepth is a depth value remapped into the [200, 800] range expected
// by wrapper-compatible transports. It must never be converted back into a
// DirectDepth.
type WrapperDepth int16

// ToDirectDepthStrength clamps raw into the signed 16-bit range.
func ToDirectDepthStrength(raw int) DirectDepth {
	return DirectDepth(clamp(raw, math.MinInt16, math.MaxInt16))
}

// StageEnabled reports whether the depth stage runs at all.
func (d DirectDepth) StageEnabled() bool { return d != 0 }

// AtOrAboveBranchThreshold reports whether the alternate branch is selected.
func (d DirectDepth) AtOrAboveBranchThreshold() bool { return d >= DepthBranchThreshold }

// ToWrapperCompatDepthStrength maps raw [0, 32767] onto [200, 800].
func ToWrapperCompatDepthStrength(raw int) WrapperDepth {
	r := clamp(raw, 0, math.MaxInt16)
	mapped := int(math.Floor(float64(r)/math.MaxInt16*600 + 200))
	return WrapperDepth(clamp(mapped, 200, 800))
}

// SPDX-License-Identifier: MIT
package normalize

import (
	"math"

	"dspctl/internal/settings"
)

// MinStrengthDb is the dB floor of every strength control. On ranges with
// MapMinDbToZero it stands for linear 0.
const MinStrengthDb = -40.0

// DbToLinear converts decibels to a linear amplitude factor.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDb converts a linear amplitude factor to decibels. Non-positive
// input yields MinStrengthDb.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return MinStrengthDb
	}
	return 20 * math.Log10(linear)
}

// StrengthRange is the user facing range of a percent/dB strength pair.
type StrengthRange struct {
	MaxDb          float64
	MinPercent     float64
	MaxPercent     float64
	MinLinear      float64
	MapMinDbToZero bool
}

// User facing strength ranges.
var (
	SpectrumExtensionStrength = StrengthRange{MaxDb: 0, MinPercent: 0, MaxPercent: 100, MinLinear: 0, MapMinDbToZero: true}
	ClarityStrength           = StrengthRange{MaxDb: 20 * math.Log10(8), MinPercent: 0, MaxPercent: 800, MinLinear: 0, MapMinDbToZero: true}
)

func (r StrengthRange) maxLinear() float64 { return DbToLinear(r.MaxDb) }

// PercentToLinear clamps percent into the range and converts it.
func (r StrengthRange) PercentToLinear(percent float64) float64 {
	p := clamp(percent, r.MinPercent, r.MaxPercent)
	return clamp(p/100, r.MinLinear, r.maxLinear())
}

// DbToLinear maps db to a linear factor; the floor maps to 0 when
// MapMinDbToZero is set.
func (r StrengthRange) DbToLinear(db float64) float64 {
	db = clamp(db, MinStrengthDb, r.MaxDb)
	if r.MapMinDbToZero && db <= MinStrengthDb {
		return 0
	}
	return clamp(DbToLinear(db), r.MinLinear, r.maxLinear())
}

// LinearToDb maps a linear factor to dB within the range.
func (r StrengthRange) LinearToDb(linear float64) float64 {
	if r.MapMinDbToZero && linear <= 0 {
		return MinStrengthDb
	}
	return clamp(LinearToDb(linear), MinStrengthDb, r.MaxDb)
}

// PercentToDb converts a percent value to its dB twin.
func (r StrengthRange) PercentToDb(percent float64) float64 {
	return r.LinearToDb(r.PercentToLinear(percent))
}

// DbToPercent converts a dB value to its percent twin.
func (r StrengthRange) DbToPercent(db float64) float64 {
	return clamp(r.DbToLinear(db)*100, r.MinPercent, r.MaxPercent)
}

// Reconcile recomputes the representation that was not edited so both stay
// consistent. It returns the new percent and dB values.
func (r StrengthRange) Reconcile(edited string, percent, db float64) (float64, float64) {
	if edited == settings.UnitDb {
		db = clamp(db, MinStrengthDb, r.MaxDb)
		return r.DbToPercent(db), db
	}
	percent = clamp(percent, r.MinPercent, r.MaxPercent)
	return percent, r.PercentToDb(percent)
}

// engineStrength bounds the linear strength sent to the engine.
type engineStrength struct {
	minDb, maxDb           float64
	minPercent, maxPercent float64
	minLinear, maxLinear   float64
}

var (
	spectrumEngineStrength = engineStrength{
		minDb: -40, maxDb: 12,
		minPercent: 1, maxPercent: 400,
		minLinear: 0.01, maxLinear: DbToLinear(12),
	}
	clarityEngineStrength = engineStrength{
		minDb: -40, maxDb: 16,
		minPercent: 0, maxPercent: 631,
		minLinear: 0, maxLinear: DbToLinear(16),
	}
)

// linear resolves the authoritative unit into the engine's linear strength.
func (e engineStrength) linear(p settings.StrengthPrefs) float64 {
	var l float64
	if p.Unit == settings.UnitDb {
		l = DbToLinear(clamp(p.Db, e.minDb, e.maxDb))
	} else {
		l = clamp(p.Percent, e.minPercent, e.maxPercent) / 100
	}
	return clamp(l, e.minLinear, e.maxLinear)
}

// SPDX-License-Identifier: MIT
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"dspctl/internal/dsp"
	"dspctl/internal/library"
	"dspctl/internal/settings"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		n       int
		wantErr bool
	}{
		{"exact", "1;2.5;-3", 3, false},
		{"spaces", " 1 ; 2 ;3 ", 3, false},
		{"too few", "1;2", 3, true},
		{"too many", "1;2;3;4", 3, true},
		{"trailing separator", "1;2;3;", 3, true},
		{"not a number", "1;x;3", 3, true},
		{"empty field", "1;;3", 3, true},
		{"nan", "1;NaN;3", 3, true},
		{"inf", "1;+Inf;3", 3, true},
		{"overflow", "1;1e400;3", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseList(tt.raw, tt.n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseList(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.n {
				t.Errorf("got %d values, want %d", len(got), tt.n)
			}
		})
	}
}

func bandString(freqs, gains []float64) string {
	return FormatList(append(append([]float64{}, freqs...), gains...))
}

func TestEqualizerSnapsFrequenciesAndKeepsGains(t *testing.T) {
	userFreqs := make([]float64, dsp.EqBandCount)
	gains := make([]float64, dsp.EqBandCount)
	for i := range gains {
		userFreqs[i] = float64(100 + i*7)
		gains[i] = float64(i)*0.75 - 4.125
	}
	raw := bandString(userFreqs, gains)

	tests := []struct {
		filterType int
		wantFreqs  []float64
	}{
		{0, StandardScale[:]},
		{3, StandardScale[:]},
		{dsp.EqFilterViperOriginal, append(append([]float64{}, ViperScale[:]...), ViperExtScale[:]...)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("type%d", tt.filterType), func(t *testing.T) {
			eq, err := Equalizer(settings.EqualizerPrefs{Enabled: true, FilterType: tt.filterType, Bands: raw})
			if err != nil {
				t.Fatalf("Equalizer failed: %v", err)
			}
			for i, want := range tt.wantFreqs {
				if eq.Bands[i] != want {
					t.Errorf("band %d frequency = %v, want %v", i, eq.Bands[i], want)
				}
			}
			for i, g := range eq.Gains() {
				if g != gains[i] {
					t.Errorf("gain %d = %v, want %v", i, g, gains[i])
				}
			}
		})
	}
}

func TestEqualizerRejectsMalformedBands(t *testing.T) {
	for _, raw := range []string{"", "1;2;3", strings.Repeat("1;", 29) + "x"} {
		_, err := Equalizer(settings.EqualizerPrefs{Bands: raw})
		if !errors.Is(err, dsp.ErrInvalid) {
			t.Errorf("Equalizer(%q) error = %v, want ErrInvalid", raw, err)
		}
	}
}

func TestEqualizerClampsFilterType(t *testing.T) {
	eq, err := Equalizer(settings.EqualizerPrefs{FilterType: 42, Interpolation: 7, Bands: settings.DefaultEqBands})
	if err != nil {
		t.Fatal(err)
	}
	if eq.FilterType != dsp.EqFilterViperOriginal || eq.Interpolation != 1 {
		t.Errorf("got filter %d interpolation %d", eq.FilterType, eq.Interpolation)
	}
}

func TestStrengthRoundTrip(t *testing.T) {
	ranges := map[string]StrengthRange{
		"spectrum": SpectrumExtensionStrength,
		"clarity":  ClarityStrength,
	}
	for name, r := range ranges {
		t.Run(name, func(t *testing.T) {
			for p := 1.25; p <= r.MaxPercent; p += 0.75 {
				db := r.PercentToDb(p)
				back := r.DbToPercent(db)
				if !scalar.EqualWithinAbs(back, p, 1e-6) {
					t.Fatalf("percent %v -> %v dB -> %v", p, db, back)
				}
			}

			// The floor maps to zero and back to the floor, never below.
			if got := r.DbToPercent(MinStrengthDb); got != 0 {
				t.Errorf("DbToPercent(floor) = %v, want 0", got)
			}
			if got := r.PercentToDb(0); got != MinStrengthDb {
				t.Errorf("PercentToDb(0) = %v, want %v", got, MinStrengthDb)
			}
			if got := r.PercentToDb(0.5); got != MinStrengthDb {
				t.Errorf("PercentToDb(0.5) = %v, want floor", got)
			}
			if got := r.DbToPercent(-90); got != 0 {
				t.Errorf("DbToPercent(-90) = %v, want 0", got)
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	p, db := SpectrumExtensionStrength.Reconcile(settings.UnitPercent, 50, 123)
	if p != 50 || !scalar.EqualWithinAbs(db, 20*math.Log10(0.5), 1e-9) {
		t.Errorf("percent edit -> (%v, %v)", p, db)
	}

	p, db = ClarityStrength.Reconcile(settings.UnitDb, 999, 6)
	if db != 6 || !scalar.EqualWithinAbs(p, DbToLinear(6)*100, 1e-9) {
		t.Errorf("dB edit -> (%v, %v)", p, db)
	}

	// Out of range edits are clamped before conversion.
	p, db = SpectrumExtensionStrength.Reconcile(settings.UnitDb, 0, 12)
	if db != 0 || p != 100 {
		t.Errorf("clamped dB edit -> (%v, %v)", p, db)
	}
}

func TestEngineStrength(t *testing.T) {
	tests := []struct {
		name string
		e    engineStrength
		in   settings.StrengthPrefs
		want float64
	}{
		{"spectrum percent", spectrumEngineStrength, settings.StrengthPrefs{Unit: "percent", Percent: 150}, 1.5},
		{"spectrum percent floor", spectrumEngineStrength, settings.StrengthPrefs{Unit: "percent", Percent: 0}, 0.01},
		{"spectrum db ceiling", spectrumEngineStrength, settings.StrengthPrefs{Unit: "db", Db: 30}, DbToLinear(12)},
		{"clarity percent zero", clarityEngineStrength, settings.StrengthPrefs{Unit: "percent", Percent: 0}, 0},
		{"clarity percent ceiling", clarityEngineStrength, settings.StrengthPrefs{Unit: "percent", Percent: 800}, DbToLinear(16)},
		{"clarity db", clarityEngineStrength, settings.StrengthPrefs{Unit: "db", Db: -6}, DbToLinear(-6)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.linear(tt.in); !scalar.EqualWithinAbs(got, tt.want, 1e-9) {
				t.Errorf("linear() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirectDepth(t *testing.T) {
	if ToDirectDepthStrength(0).StageEnabled() {
		t.Error("depth 0 should disable the stage")
	}
	if !ToDirectDepthStrength(500).AtOrAboveBranchThreshold() {
		t.Error("depth 500 should select the alternate branch")
	}
	if ToDirectDepthStrength(499).AtOrAboveBranchThreshold() {
		t.Error("depth 499 should stay below the branch threshold")
	}
	if got := ToDirectDepthStrength(40000); got != math.MaxInt16 {
		t.Errorf("ToDirectDepthStrength(40000) = %d", got)
	}
	if got := ToDirectDepthStrength(-40000); got != math.MinInt16 {
		t.Errorf("ToDirectDepthStrength(-40000) = %d", got)
	}
}

func TestWrapperDepth(t *testing.T) {
	tests := []struct {
		raw  int
		want WrapperDepth
	}{
		{0, 200},
		{32767, 800},
		{-5, 200},
		{1 << 20, 800},
		{16383, 499},
	}
	for _, tt := range tests {
		if got := ToWrapperCompatDepthStrength(tt.raw); got != tt.want {
			t.Errorf("ToWrapperCompatDepthStrength(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
	for raw := -70000; raw <= 70000; raw += 97 {
		if got := ToWrapperCompatDepthStrength(raw); got < 200 || got > 800 {
			t.Fatalf("ToWrapperCompatDepthStrength(%d) = %d out of range", raw, got)
		}
	}
}

func TestGraphicEqMarker(t *testing.T) {
	if _, err := GraphicEq(settings.GraphicEqPrefs{Enabled: true, Nodes: "graphiceq: 25 0; 40 1"}); err != nil {
		t.Errorf("lowercase marker rejected: %v", err)
	}

	_, err := GraphicEq(settings.GraphicEqPrefs{Enabled: true, Nodes: "25 0; 40 1"})
	var ve *dsp.ValidationError
	if !errors.As(err, &ve) || !ve.Disable {
		t.Fatalf("error = %v, want disabling ValidationError", err)
	}
}

func TestSpectrumExtensionHarmonics(t *testing.T) {
	p := settings.SpectrumExtensionPrefs{
		Enabled:   true,
		Strength:  settings.StrengthPrefs{Unit: "percent", Percent: 100},
		RefFreq:   100,
		WetMix:    250,
		Harmonics: "0.1;0.2;0.3;0.4;0.5;0.6;0.7;0.8;0.9;1.0",
	}
	s, err := SpectrumExtension(p)
	if err != nil {
		t.Fatalf("SpectrumExtension failed: %v", err)
	}
	if s.ReferenceFreq != 800 || s.WetMix != 1 || s.Harmonics[9] != 1.0 {
		t.Errorf("unexpected settings %+v", s)
	}

	p.Harmonics = "0.1;0.2"
	if _, err := SpectrumExtension(p); !errors.Is(err, dsp.ErrInvalid) {
		t.Errorf("short harmonics error = %v, want ErrInvalid", err)
	}
}

func TestFieldSurroundClamps(t *testing.T) {
	s := FieldSurround(settings.FieldSurroundPrefs{
		OutputMode: 9, Widening: 1000, Depth: 99999, PhaseOffset: -500, HpfQ: 10,
	})
	if s.OutputMode != 2 || s.Widening != 800 || s.Depth != math.MaxInt16 || s.PhaseOffset != -100 || s.HpfQ != 3 {
		t.Errorf("unexpected clamps %+v", s)
	}
}

func TestCrossfeed(t *testing.T) {
	c := Crossfeed(settings.CrossfeedPrefs{Enabled: true, Mode: dsp.CrossfeedCustomMode, Cutoff: 50, Feed: 500})
	if !c.Custom() || c.CutoffHz != 300 || c.FeedDb != 150 {
		t.Errorf("custom crossfeed = %+v", c)
	}
	c = Crossfeed(settings.CrossfeedPrefs{Enabled: true, Mode: 42})
	if c.Custom() || c.Mode != 5 {
		t.Errorf("preset crossfeed = %+v", c)
	}
}

type fakeFiles struct {
	texts    map[string]library.Text
	impulse  dsp.Impulse
	impErr   error
	textErr  error
	impReads int
	lastOpts library.ImpulseOptions
}

func (f *fakeFiles) ReadText(path string) (library.Text, error) {
	if f.textErr != nil {
		return library.Text{}, f.textErr
	}
	txt, ok := f.texts[path]
	if !ok {
		return library.Text{}, library.ErrNotFound
	}
	return txt, nil
}

func (f *fakeFiles) ReadImpulse(path string, opts library.ImpulseOptions) (dsp.Impulse, error) {
	f.impReads++
	f.lastOpts = opts
	return f.impulse, f.impErr
}

func TestFileBackedSoftDisable(t *testing.T) {
	files := &fakeFiles{texts: map[string]library.Text{"a.eel": {Name: "a.eel", Content: "x=1;"}}}

	lp, err := LiveProgram(settings.FilePrefs{Enabled: true, File: "missing.eel"}, files)
	if err != nil || lp.Enabled {
		t.Errorf("missing script: %+v, %v", lp, err)
	}
	lp, err = LiveProgram(settings.FilePrefs{Enabled: true, File: "a.eel"}, files)
	if err != nil || !lp.Enabled || lp.Name != "a.eel" || lp.Script != "x=1;" {
		t.Errorf("present script: %+v, %v", lp, err)
	}

	files.textErr = errors.New("permission denied")
	if _, err := DynamicRangeFile(settings.FilePrefs{Enabled: true, File: "a.vdc"}, files); !errors.Is(err, dsp.ErrInvalid) {
		t.Errorf("unreadable filter error = %v, want ErrInvalid", err)
	}
}

func TestConvolver(t *testing.T) {
	imp := dsp.Impulse{Samples: []float32{1, 0}, Channels: 1, Frames: 2, Hash: 7}

	t.Run("disabled skips loading", func(t *testing.T) {
		files := &fakeFiles{impulse: imp}
		s, err := Convolver(settings.ConvolverPrefs{Enabled: false, File: "ir.wav"}, files, 48000)
		if err != nil || s.Enabled || files.impReads != 0 {
			t.Errorf("got %+v, %v, reads %d", s, err, files.impReads)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		files := &fakeFiles{impErr: library.ErrNotFound}
		s, err := Convolver(settings.ConvolverPrefs{Enabled: true, File: "ir.wav", AdvImp: settings.DefaultConvolverAdvImp}, files, 48000)
		if err != nil || s.Enabled {
			t.Errorf("got %+v, %v", s, err)
		}
	})

	t.Run("corrupted", func(t *testing.T) {
		files := &fakeFiles{impErr: library.ErrCorrupt}
		_, err := Convolver(settings.ConvolverPrefs{Enabled: true, File: "ir.wav", AdvImp: settings.DefaultConvolverAdvImp}, files, 48000)
		var ve *dsp.ValidationError
		if !errors.As(err, &ve) || !ve.Disable || ve.Notice != dsp.ConvolverCorrupted {
			t.Errorf("error = %#v", err)
		}
	})

	t.Run("no frames", func(t *testing.T) {
		files := &fakeFiles{impErr: library.ErrNoFrames}
		_, err := Convolver(settings.ConvolverPrefs{Enabled: true, File: "ir.wav", AdvImp: settings.DefaultConvolverAdvImp}, files, 48000)
		var ve *dsp.ValidationError
		if !errors.As(err, &ve) || ve.Notice != dsp.ConvolverNoFrames {
			t.Errorf("error = %#v", err)
		}
	})

	t.Run("bad adv params fall back", func(t *testing.T) {
		files := &fakeFiles{impulse: imp}
		s, err := Convolver(settings.ConvolverPrefs{Enabled: true, File: "ir.wav", AdvImp: "1;2;x", Mode: 5}, files, 44100)
		if err != nil {
			t.Fatal(err)
		}
		if !s.Enabled || s.AdvParamsValid || s.Mode != 2 {
			t.Errorf("got %+v", s)
		}
		if files.lastOpts.SampleRate != 44100 || files.lastOpts.StartThresholdDb != -80 || files.lastOpts.Mode != library.ImpulseMinimumPhaseTrimmed {
			t.Errorf("impulse options %+v", files.lastOpts)
		}
	})

	t.Run("custom adv params", func(t *testing.T) {
		files := &fakeFiles{impulse: imp}
		s, err := Convolver(settings.ConvolverPrefs{Enabled: true, File: "ir.wav", AdvImp: "-60;-90;1;2;3;4"}, files, 48000)
		if err != nil {
			t.Fatal(err)
		}
		if !s.AdvParamsValid || s.Mode != library.ImpulseOriginal || s.Impulse.Hash != 7 {
			t.Errorf("got %+v", s)
		}
		if files.lastOpts.StartThresholdDb != -60 || files.lastOpts.EndThresholdDb != -90 || files.lastOpts.Mode != library.ImpulseOriginal {
			t.Errorf("impulse options %+v", files.lastOpts)
		}
	})
}

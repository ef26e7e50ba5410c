// SPDX-License-Identifier: MIT
package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dspctl/internal/dsp"
)

func TestSectionConversions(t *testing.T) {
	sec := valueSection{
		"flag":   "true",
		"bad":    "maybe",
		"int":    "12",
		"round":  2.6,
		"float":  "0.25",
		"nan":    "NaN",
		"list":   "1;2;3",
		"number": 7,
	}
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"bool from string", sec.Bool("flag", false), true},
		{"bool fallback", sec.Bool("bad", false), false},
		{"bool missing", sec.Bool("missing", true), true},
		{"int from string", sec.Int("int", 0), 12},
		{"int rounds floats", sec.Int("round", 0), 3},
		{"int fallback", sec.Int("list", 5), 5},
		{"float from string", sec.Float("float", 0), 0.25},
		{"float rejects NaN", sec.Float("nan", 1.5), 1.5},
		{"string keeps lists", sec.String("list", ""), "1;2;3"},
		{"string from number", sec.String("number", ""), "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMemoryStoreChanges(t *testing.T) {
	st := NewMemoryStore(map[dsp.Namespace]map[string]any{
		dsp.Bass: {KeyEnable: true},
	})
	if got := st.ChangedNamespaces(); got != dsp.FullSet() {
		t.Fatalf("fresh store changes = %v, want every namespace", got.Slice())
	}

	st.MarkChangesAsCommitted()
	if got := st.ChangedNamespaces(); !got.Empty() {
		t.Fatalf("changes after commit = %v", got.Slice())
	}

	st.Put(dsp.Reverb, map[string]any{KeyReverbPreset: 3})
	st.Put(dsp.Bass, map[string]any{KeyEnable: true})
	if got := st.ChangedNamespaces(); got != dsp.SetOf(dsp.Reverb) {
		t.Errorf("changes = %v, want [reverb]", got.Slice())
	}

	st.Clear()
	if got := st.ChangedNamespaces(); got != dsp.FullSet() {
		t.Errorf("changes after clear = %v, want every namespace", got.Slice())
	}
}

func TestCommitCapturedState(t *testing.T) {
	st := NewMemoryStore(map[dsp.Namespace]map[string]any{
		dsp.Tube: {KeyTubeDrive: 4},
	})
	state := st.Capture()
	if got := state.Changed(); got != dsp.FullSet() {
		t.Fatalf("captured changes = %v, want every namespace", got.Slice())
	}

	st.Put(dsp.Tube, map[string]any{KeyTubeDrive: 9})
	if got := Read(state).Tube.Drive; got != 4 {
		t.Errorf("captured drive = %v, want 4", got)
	}

	st.MarkCommitted(state)
	if got := st.ChangedNamespaces(); got != dsp.SetOf(dsp.Tube) {
		t.Errorf("changes after commit = %v, want [tube]", got.Slice())
	}
	if got := st.Capture().Changed(); got != dsp.SetOf(dsp.Tube) {
		t.Errorf("next capture changes = %v, want [tube]", got.Slice())
	}
}

func TestMemoryStoreSelectIsSnapshot(t *testing.T) {
	st := NewMemoryStore(nil)
	st.Put(dsp.Tube, map[string]any{KeyTubeDrive: 4})
	sec := st.Select(dsp.Tube)
	st.Put(dsp.Tube, map[string]any{KeyTubeDrive: 9})
	if got := sec.Float(KeyTubeDrive, 0); got != 4 {
		t.Errorf("section saw later write: %v", got)
	}
}

func TestReadDefaults(t *testing.T) {
	snap := Read(NewMemoryStore(nil))
	if snap.Output.LimiterRelease != 60 {
		t.Errorf("limiter release = %v, want 60", snap.Output.LimiterRelease)
	}
	if snap.Equalizer.Bands != DefaultEqBands {
		t.Errorf("equalizer bands = %q", snap.Equalizer.Bands)
	}
	if snap.Convolver.AdvImp != DefaultConvolverAdvImp {
		t.Errorf("convolver adv = %q", snap.Convolver.AdvImp)
	}
	if snap.SpectrumExtension.Strength.Unit != UnitPercent {
		t.Errorf("strength unit = %q", snap.SpectrumExtension.Strength.Unit)
	}
}

func TestReadTypedValues(t *testing.T) {
	st := NewMemoryStore(map[dsp.Namespace]map[string]any{
		dsp.Equalizer: {KeyEnable: "true", KeyEqFilterType: "6", KeyEqBands: "1;2"},
		dsp.Clarity:   {KeyStrengthUnit: UnitDb, KeyStrengthDb: -3},
	})
	snap := Read(st)
	if !snap.Equalizer.Enabled || snap.Equalizer.FilterType != 6 || snap.Equalizer.Bands != "1;2" {
		t.Errorf("equalizer = %+v", snap.Equalizer)
	}
	if snap.Clarity.Strength.Unit != UnitDb || snap.Clarity.Strength.Db != -3 {
		t.Errorf("clarity strength = %+v", snap.Clarity.Strength)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs", "dsp.yaml")
	st, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile on missing file: %v", err)
	}
	defer st.Close()

	if err := st.Put(dsp.Bass, map[string]any{KeyEnable: true, KeyBassMaxGain: 9}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("preferences not written: %v", err)
	}
	st.MarkChangesAsCommitted()

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := Read(reopened).Bass; !got.Enabled || got.MaxGain != 9 {
		t.Errorf("reopened bass = %+v", got)
	}

	if err := st.Put(dsp.Reverb, map[string]any{KeyReverbPreset: 2}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := st.ChangedNamespaces(); got != dsp.SetOf(dsp.Reverb) {
		t.Errorf("changes = %v, want [reverb]", got.Slice())
	}
}

func TestFileStoreWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dsp.yaml")
	if err := os.WriteFile(path, []byte("bass:\n  enable: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	st.MarkChangesAsCommitted()

	changed := make(chan struct{}, 8)
	if err := st.Watch(func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := os.WriteFile(path, []byte("bass:\n  enable: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
	// A write may arrive as several events; wait for the document to settle.
	deadline := time.Now().Add(3 * time.Second)
	for !Read(st).Bass.Enabled && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !Read(st).Bass.Enabled {
		t.Fatal("external edit not visible")
	}
	if got := st.ChangedNamespaces(); got != dsp.SetOf(dsp.Bass) {
		t.Errorf("changes = %v, want [bass]", got.Slice())
	}
}

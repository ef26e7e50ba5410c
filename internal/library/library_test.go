// SPDX-License-Identifier: MIT
package library

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"dspctl/internal/dsp"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWav(t *testing.T, dir, name string, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create wav: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close wav: %v", err)
	}
	return path
}

func TestResolve(t *testing.T) {
	lib := New("/srv/dsp")
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"filters/a.vdc", "/srv/dsp/filters/a.vdc"},
		{"/abs/b.eel", "/abs/b.eel"},
	}
	for _, tt := range tests {
		if got := lib.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadTextSoftDisable(t *testing.T) {
	dir := t.TempDir()
	lib := New(dir)

	for _, path := range []string{"", "missing.vdc", "."} {
		if _, err := lib.ReadText(path); !errors.Is(err, ErrNotFound) {
			t.Errorf("ReadText(%q) error = %v, want ErrNotFound", path, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "bass.eel"), []byte("desc: bass"), 0o644); err != nil {
		t.Fatal(err)
	}
	txt, err := lib.ReadText("bass.eel")
	if err != nil {
		t.Fatalf("ReadText failed: %v", err)
	}
	if txt.Name != "bass.eel" || txt.Content != "desc: bass" {
		t.Errorf("unexpected text %+v", txt)
	}
}

func TestReadImpulse(t *testing.T) {
	dir := t.TempDir()
	// Two leading silent frames, then a stereo impulse.
	data := []int{0, 0, 0, 0, 16384, -16384, 8192, 0, 0, 8192}
	writeTestWav(t, dir, "ir.wav", 48000, 2, data)

	lib := New(dir)
	imp, err := lib.ReadImpulse("ir.wav", ImpulseOptions{StartThresholdDb: -80, EndThresholdDb: -100})
	if err != nil {
		t.Fatalf("ReadImpulse failed: %v", err)
	}
	if imp.Channels != 2 {
		t.Errorf("Channels = %d, want 2", imp.Channels)
	}
	if imp.Frames != 3 {
		t.Errorf("Frames = %d, want 3 after trimming", imp.Frames)
	}
	if imp.Samples[0] != 0.5 || imp.Samples[1] != -0.5 {
		t.Errorf("first frame = %v, want [0.5 -0.5]", imp.Samples[:2])
	}
	if imp.Hash != dsp.ChecksumFloats(imp.Samples) {
		t.Error("hash should cover the decoded samples")
	}

	again, err := lib.ReadImpulse("ir.wav", ImpulseOptions{StartThresholdDb: -80, EndThresholdDb: -100})
	if err != nil {
		t.Fatal(err)
	}
	if again.Hash != imp.Hash {
		t.Error("hash should be stable across reads")
	}
}

func TestReadImpulseResample(t *testing.T) {
	dir := t.TempDir()
	const frames = 9600
	data := make([]int, frames*2)
	for i := range data {
		data[i] = 1000
	}
	writeTestWav(t, dir, "stereo.wav", 96000, 2, data)

	imp, err := New(dir).ReadImpulse("stereo.wav", ImpulseOptions{SampleRate: 48000, StartThresholdDb: -80, EndThresholdDb: -100})
	if err != nil {
		t.Fatalf("ReadImpulse failed: %v", err)
	}
	if imp.Channels != 2 {
		t.Errorf("Channels = %d, want 2", imp.Channels)
	}
	if imp.Frames < 4500 || imp.Frames > 5100 {
		t.Errorf("Frames = %d, want about %d", imp.Frames, frames/2)
	}
	if len(imp.Samples) != imp.Frames*imp.Channels {
		t.Errorf("len(Samples) = %d, want %d", len(imp.Samples), imp.Frames*imp.Channels)
	}
	mid := imp.Samples[(imp.Frames/2)*2]
	if want := float32(1000) / 32768; math.Abs(float64(mid-want)) > 0.001 {
		t.Errorf("steady state sample = %v, want about %v", mid, want)
	}
}

func TestReadImpulseFailures(t *testing.T) {
	dir := t.TempDir()
	lib := New(dir)

	if _, err := lib.ReadImpulse("none.wav", ImpulseOptions{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file error = %v, want ErrNotFound", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "junk.wav"), []byte("definitely not RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := lib.ReadImpulse("junk.wav", ImpulseOptions{}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("junk file error = %v, want ErrCorrupt", err)
	}

	writeTestWav(t, dir, "silent.wav", 48000, 1, []int{0, 0, 0, 0})
	if _, err := lib.ReadImpulse("silent.wav", ImpulseOptions{StartThresholdDb: -80, EndThresholdDb: -100}); !errors.Is(err, ErrNoFrames) {
		t.Errorf("silent file error = %v, want ErrNoFrames", err)
	}
}

func TestReadImpulseMinimumPhase(t *testing.T) {
	dir := t.TempDir()
	// 0.25 + z^-1 has its zero outside the unit circle; the minimum phase
	// twin with the same magnitude is 1 + 0.25 z^-1.
	writeTestWav(t, dir, "late.wav", 48000, 1, []int{8192, 32767})
	lib := New(dir)

	orig, err := lib.ReadImpulse("late.wav", ImpulseOptions{StartThresholdDb: -80, EndThresholdDb: -100})
	if err != nil {
		t.Fatalf("ReadImpulse failed: %v", err)
	}
	imp, err := lib.ReadImpulse("late.wav", ImpulseOptions{StartThresholdDb: -80, EndThresholdDb: -100, Mode: ImpulseMinimumPhase})
	if err != nil {
		t.Fatalf("ReadImpulse failed: %v", err)
	}
	if imp.Frames != 2 {
		t.Fatalf("Frames = %d, want 2", imp.Frames)
	}
	want := []float32{1, 0.25}
	for i, w := range want {
		if math.Abs(float64(imp.Samples[i]-w)) > 0.01 {
			t.Errorf("sample %d = %v, want about %v", i, imp.Samples[i], w)
		}
	}
	if imp.Hash == orig.Hash {
		t.Error("hash should follow the optimized samples")
	}
}

func TestMinimumPhaseKeepsEnergy(t *testing.T) {
	imp := dsp.Impulse{Samples: []float32{0.1, -0.2, 0.9, 0.3, -0.4, 0.1, 0.05, 0.02}, Channels: 2, Frames: 4}
	out := minimumPhase(imp)
	if out.Channels != 2 || out.Frames != 4 || len(out.Samples) != 8 {
		t.Fatalf("shape = %d channels %d frames %d samples", out.Channels, out.Frames, len(out.Samples))
	}
	for c := 0; c < 2; c++ {
		var in, got float64
		for i := 0; i < 4; i++ {
			in += float64(imp.Samples[i*2+c] * imp.Samples[i*2+c])
			got += float64(out.Samples[i*2+c] * out.Samples[i*2+c])
		}
		if math.Abs(in-got) > 0.01 {
			t.Errorf("channel %d energy = %v, want about %v", c, got, in)
		}
	}
}

func TestTrimTail(t *testing.T) {
	imp := dsp.Impulse{Samples: []float32{1, 0.5, 0.001, 0.0001}, Channels: 1, Frames: 4}
	got := trimTail(imp, 1e-6)
	if got.Frames != 2 || len(got.Samples) != 2 {
		t.Errorf("Frames = %d, want 2", got.Frames)
	}

	silent := dsp.Impulse{Samples: []float32{0, 0}, Channels: 1, Frames: 2}
	if got := trimTail(silent, 1e-6); got.Frames != 2 {
		t.Errorf("silent Frames = %d, want 2", got.Frames)
	}
}

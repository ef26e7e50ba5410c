// SPDX-License-Identifier: MIT
package embedded

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"dspctl/internal/dsp"
	applog "dspctl/internal/log"
)

// Handle is the call surface of an in-process engine instance. Every call
// receives normalized values and returns nil once the engine accepted them.
type Handle interface {
	SetSamplingRate(rate float32) error
	SetLimiter(threshold, release float32) error
	SetPostGain(gainDb float32) error
	SetCompander(s dsp.CompanderSettings) error
	SetBassBoost(enable bool, maxGain float32) error
	SetMultiEqualizer(s dsp.EqualizerSettings) error
	SetGraphicEq(enable bool, nodes string) error
	SetReverb(enable bool, preset int) error
	SetSpectrumExtension(s dsp.SpectrumExtensionSettings) error
	SetClarity(s dsp.ClaritySettings) error
	SetFieldSurround(s dsp.FieldSurroundSettings) error
	SetStereoEnhancement(enable bool, level float32) error
	SetCrossfeed(enable bool, mode, cutoffHz, feedDb int) error
	SetVacuumTube(enable bool, drive float32) error
	SetVdc(enable bool, filter string) error
	SetLiveprog(enable bool, name, script string) error
	SetConvolver(enable bool, imp dsp.Impulse) error

	Variables() ([]dsp.Variable, error)
	SetVariable(name string, value float32) error
	FreezeLiveprog(freeze bool) error

	// Free releases the native instance. No call may follow.
	Free()
}

// LoggingHandle stands in for a native engine: it logs every call and
// remembers the last value per call so it can be inspected.
type LoggingHandle struct {
	mu     sync.Mutex
	log    *applog.Logger
	last   map[string]any
	vars   map[string]float32
	frozen bool
	freed  bool
}

// NewLoggingHandle returns a ready handle.
func NewLoggingHandle() *LoggingHandle {
	return &LoggingHandle{
		log:  applog.Named("handle"),
		last: make(map[string]any),
		vars: make(map[string]float32),
	}
}

func (h *LoggingHandle) record(call string, v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.freed {
		return fmt.Errorf("%s: handle freed", call)
	}
	h.last[call] = v
	h.log.Debugf("%s %+v", call, v)
	return nil
}

// Last returns the argument of the most recent call named call.
func (h *LoggingHandle) Last(call string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.last[call]
	return v, ok
}

// Freed reports whether Free was called.
func (h *LoggingHandle) Freed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freed
}

// Frozen reports whether script execution is frozen.
func (h *LoggingHandle) Frozen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frozen
}

type (
	toggleFloat struct {
		Enabled bool
		Value   float32
	}
	toggleInt struct {
		Enabled bool
		Value   int
	}
	toggleText struct {
		Enabled bool
		Text    string
	}
	crossfeedCall struct {
		Enabled            bool
		Mode, Cutoff, Feed int
	}
)

func (h *LoggingHandle) SetSamplingRate(rate float32) error { return h.record("sampling_rate", rate) }
func (h *LoggingHandle) SetLimiter(threshold, release float32) error {
	return h.record("limiter", [2]float32{threshold, release})
}
func (h *LoggingHandle) SetPostGain(gainDb float32) error { return h.record("post_gain", gainDb) }
func (h *LoggingHandle) SetCompander(s dsp.CompanderSettings) error {
	return h.record("compander", s)
}
func (h *LoggingHandle) SetBassBoost(enable bool, maxGain float32) error {
	return h.record("bass_boost", toggleFloat{enable, maxGain})
}
func (h *LoggingHandle) SetMultiEqualizer(s dsp.EqualizerSettings) error {
	return h.record("multi_equalizer", s)
}
func (h *LoggingHandle) SetGraphicEq(enable bool, nodes string) error {
	return h.record("graphic_eq", toggleText{enable, nodes})
}
func (h *LoggingHandle) SetReverb(enable bool, preset int) error {
	return h.record("reverb", toggleInt{enable, preset})
}
func (h *LoggingHandle) SetSpectrumExtension(s dsp.SpectrumExtensionSettings) error {
	return h.record("spectrum_extension", s)
}
func (h *LoggingHandle) SetClarity(s dsp.ClaritySettings) error { return h.record("clarity", s) }
func (h *LoggingHandle) SetFieldSurround(s dsp.FieldSurroundSettings) error {
	return h.record("field_surround", s)
}
func (h *LoggingHandle) SetStereoEnhancement(enable bool, level float32) error {
	return h.record("stereo_enhancement", toggleFloat{enable, level})
}
func (h *LoggingHandle) SetCrossfeed(enable bool, mode, cutoffHz, feedDb int) error {
	return h.record("crossfeed", crossfeedCall{enable, mode, cutoffHz, feedDb})
}
func (h *LoggingHandle) SetVacuumTube(enable bool, drive float32) error {
	return h.record("vacuum_tube", toggleFloat{enable, drive})
}
func (h *LoggingHandle) SetVdc(enable bool, filter string) error {
	return h.record("vdc", toggleText{enable, filter})
}
func (h *LoggingHandle) SetConvolver(enable bool, imp dsp.Impulse) error {
	return h.record("convolver", struct {
		Enabled          bool
		Channels, Frames int
	}{enable, imp.Channels, imp.Frames})
}

// scriptAssignment matches top level "name = number;" statements.
var scriptAssignment = regexp.MustCompile(`(?m)^\s*([A-Za-z_]\w*)\s*=\s*(-?[0-9]*\.?[0-9]+)\s*;`)

// SetLiveprog loads the script's numeric assignments as VM variables.
func (h *LoggingHandle) SetLiveprog(enable bool, name, script string) error {
	if err := h.record("liveprog", toggleText{enable, name}); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vars = make(map[string]float32)
	if !enable {
		return nil
	}
	for _, m := range scriptAssignment.FindAllStringSubmatch(script, -1) {
		v, err := strconv.ParseFloat(m[2], 32)
		if err != nil {
			continue
		}
		h.vars[m[1]] = float32(v)
	}
	return nil
}

func (h *LoggingHandle) Variables() ([]dsp.Variable, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]dsp.Variable, 0, len(h.vars))
	for k, v := range h.vars {
		out = append(out, dsp.Variable{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (h *LoggingHandle) SetVariable(name string, value float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.vars[name]; !ok {
		return fmt.Errorf("unknown variable %q", name)
	}
	h.vars[name] = value
	return nil
}

func (h *LoggingHandle) FreezeLiveprog(freeze bool) error {
	h.mu.Lock()
	h.frozen = freeze
	h.mu.Unlock()
	return nil
}

func (h *LoggingHandle) Free() {
	h.mu.Lock()
	h.freed = true
	h.mu.Unlock()
	h.log.Debugf("freed")
}

var _ Handle = (*LoggingHandle)(nil)

// SPDX-License-Identifier: MIT
/*
Package embedded implements the engine backend that calls an in-process
engine handle directly. There is nothing to negotiate: a call either
succeeds or fails.
*/
package embedded

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dspctl/internal/dsp"
	applog "dspctl/internal/log"
	"dspctl/internal/normalize"
)

// DefaultReleaseGrace is how long a closed handle stays allocated so calls
// already in flight can finish.
const DefaultReleaseGrace = 100 * time.Millisecond

// DepthMode selects how the field surround depth reaches the handle.
type DepthMode uint8

const (
	DepthDirect DepthMode = iota
	DepthWrapper
)

func (m DepthMode) String() string {
	if m == DepthWrapper {
		return "wrapper"
	}
	return "direct"
}

// ParseDepthMode accepts "direct" or "wrapper".
func ParseDepthMode(s string) (DepthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return DepthDirect, nil
	case "wrapper":
		return DepthWrapper, nil
	}
	return DepthDirect, fmt.Errorf("unknown depth mode %q", s)
}

// Options configures a Backend.
type Options struct {
	ReleaseGrace time.Duration
	Depth        DepthMode
	SampleRate   float32
}

// Backend forwards normalized settings to a Handle.
type Backend struct {
	mu     sync.RWMutex
	handle Handle
	rate   float32
	grace  time.Duration
	depth  DepthMode
	log    *applog.Logger
}

// New wraps h. A zero ReleaseGrace uses DefaultReleaseGrace.
func New(h Handle, opts Options) (*Backend, error) {
	if h == nil {
		return nil, errors.New("embedded: nil handle")
	}
	if opts.ReleaseGrace <= 0 {
		opts.ReleaseGrace = DefaultReleaseGrace
	}
	b := &Backend{handle: h, grace: opts.ReleaseGrace, depth: opts.Depth, log: applog.Named("embedded")}
	if opts.SampleRate > 0 {
		if err := b.SetSampleRate(opts.SampleRate); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// call runs fn on the live handle. Handle errors are reported as
// rejections of ns.
func (b *Backend) call(ns dsp.Namespace, fn func(h Handle) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.handle == nil {
		return dsp.ErrEngineClosed
	}
	if err := fn(b.handle); err != nil {
		return fmt.Errorf("%s: %w: %w", ns, dsp.ErrRejected, err)
	}
	return nil
}

// SetSampleRate passes a new device rate to the handle.
func (b *Backend) SetSampleRate(rate float32) error {
	err := b.call(dsp.Convolver, func(h Handle) error { return h.SetSamplingRate(rate) })
	if err == nil {
		b.mu.Lock()
		b.rate = rate
		b.mu.Unlock()
	}
	return err
}

func (b *Backend) SetOutputControl(_ context.Context, s dsp.OutputControl) error {
	return b.call(dsp.Output, func(h Handle) error {
		return errors.Join(h.SetLimiter(s.LimiterThreshold, s.LimiterRelease), h.SetPostGain(s.PostGain))
	})
}

func (b *Backend) SetCompander(_ context.Context, s dsp.CompanderSettings) error {
	return b.call(dsp.Compander, func(h Handle) error { return h.SetCompander(s) })
}

func (b *Backend) SetBassBoost(_ context.Context, s dsp.BassSettings) error {
	return b.call(dsp.Bass, func(h Handle) error { return h.SetBassBoost(s.Enabled, s.MaxGain) })
}

func (b *Backend) SetMultiEqualizer(_ context.Context, s dsp.EqualizerSettings) error {
	return b.call(dsp.Equalizer, func(h Handle) error { return h.SetMultiEqualizer(s) })
}

func (b *Backend) SetGraphicEq(_ context.Context, s dsp.GraphicEqSettings) error {
	return b.call(dsp.GraphicEqualizer, func(h Handle) error { return h.SetGraphicEq(s.Enabled, s.Bands) })
}

func (b *Backend) SetReverb(_ context.Context, s dsp.ReverbSettings) error {
	return b.call(dsp.Reverb, func(h Handle) error { return h.SetReverb(s.Enabled, s.Preset) })
}

func (b *Backend) SetSpectrumExtension(_ context.Context, s dsp.SpectrumExtensionSettings) error {
	return b.call(dsp.SpectrumExtension, func(h Handle) error { return h.SetSpectrumExtension(s) })
}

func (b *Backend) SetClarity(_ context.Context, s dsp.ClaritySettings) error {
	return b.call(dsp.Clarity, func(h Handle) error { return h.SetClarity(s) })
}

// SetFieldSurround maps depth through the configured depth path. The two
// paths are never chained.
func (b *Backend) SetFieldSurround(_ context.Context, s dsp.FieldSurroundSettings) error {
	switch b.depth {
	case DepthWrapper:
		s.Depth = int(normalize.ToWrapperCompatDepthStrength(s.Depth))
	default:
		s.Depth = int(normalize.ToDirectDepthStrength(s.Depth))
	}
	return b.call(dsp.FieldSurround, func(h Handle) error { return h.SetFieldSurround(s) })
}

func (b *Backend) SetStereoWidener(_ context.Context, s dsp.StereoWidenerSettings) error {
	return b.call(dsp.StereoWidener, func(h Handle) error { return h.SetStereoEnhancement(s.Enabled, s.Level) })
}

func (b *Backend) SetCrossfeed(_ context.Context, s dsp.CrossfeedSettings) error {
	return b.call(dsp.Crossfeed, func(h Handle) error {
		if s.Custom() {
			return h.SetCrossfeed(s.Enabled, dsp.CrossfeedCustomMode, s.CutoffHz, s.FeedDb)
		}
		return h.SetCrossfeed(s.Enabled, s.Mode, 0, 0)
	})
}

func (b *Backend) SetTube(_ context.Context, s dsp.TubeSettings) error {
	return b.call(dsp.Tube, func(h Handle) error { return h.SetVacuumTube(s.Enabled, s.Drive) })
}

func (b *Backend) SetDynamicRangeFile(_ context.Context, s dsp.DynamicRangeFileSettings) error {
	return b.call(dsp.DynamicRangeFile, func(h Handle) error { return h.SetVdc(s.Enabled, s.Filter) })
}

func (b *Backend) SetLiveProgram(_ context.Context, s dsp.LiveProgramSettings) error {
	return b.call(dsp.LiveProgram, func(h Handle) error { return h.SetLiveprog(s.Enabled, s.Name, s.Script) })
}

func (b *Backend) SetConvolver(_ context.Context, s dsp.ConvolverSettings) error {
	return b.call(dsp.Convolver, func(h Handle) error { return h.SetConvolver(s.Enabled, s.Impulse) })
}

// Ready fails only once the handle is released.
func (b *Backend) Ready(context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.handle == nil {
		return false, dsp.ErrEngineClosed
	}
	return false, nil
}

// Reboot has nothing to reconnect; the handle keeps its state.
func (b *Backend) Reboot(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.handle == nil {
		return dsp.ErrEngineClosed
	}
	b.log.Debugf("reboot requested, nothing to reconnect")
	return nil
}

// ClearCache is a no-op; buffers are always passed to the handle.
func (b *Backend) ClearCache() {}

func (b *Backend) SampleRate(context.Context) float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rate
}

func (b *Backend) Capabilities() dsp.Capabilities {
	return dsp.Capabilities{ScriptVM: true, CustomCrossfeed: true}
}

func (b *Backend) Variables() ([]dsp.Variable, error) {
	var vars []dsp.Variable
	err := b.call(dsp.LiveProgram, func(h Handle) error {
		var err error
		vars, err = h.Variables()
		return err
	})
	return vars, err
}

func (b *Backend) SetVariable(name string, value float32) error {
	return b.call(dsp.LiveProgram, func(h Handle) error { return h.SetVariable(name, value) })
}

func (b *Backend) FreezeScript(freeze bool) error {
	return b.call(dsp.LiveProgram, func(h Handle) error { return h.FreezeLiveprog(freeze) })
}

// Close invalidates the handle immediately and frees it after the release
// grace period.
func (b *Backend) Close() error {
	b.mu.Lock()
	old := b.handle
	b.handle = nil
	b.mu.Unlock()
	if old == nil {
		return nil
	}
	time.AfterFunc(b.grace, func() {
		old.Free()
		b.log.Debugf("handle freed")
	})
	return nil
}

var (
	_ dsp.Engine   = (*Backend)(nil)
	_ dsp.ScriptVM = (*Backend)(nil)
)

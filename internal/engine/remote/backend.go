// SPDX-License-Identifier: MIT
/*
Package remote implements the engine backend that drives an external effect
instance through numeric parameter slots.

The backend negotiates, per connection, whether the endpoint accepts the
wide single-call payloads of the advanced features or only their legacy
per-parameter form, and skips retransmitting buffers whose commit hash the
endpoint already reports. Everything negotiated is dropped on Reboot.
*/
package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dspctl/internal/dsp"
	applog "dspctl/internal/log"
	"dspctl/internal/settings"
	"dspctl/internal/transport"
	"dspctl/internal/transport/udp"
)

var errNotConnected = errors.New("remote: not connected")

// Preferences is the part of the settings store the backend writes back to
// when the endpoint forces an equalizer fallback.
type Preferences interface {
	Select(ns dsp.Namespace) settings.Section
	settings.Writer
}

// Option configures a Backend.
type Option func(*Backend)

// WithNotifier sets where user notices go. Defaults to the log.
func WithNotifier(n dsp.Notifier) Option {
	return func(b *Backend) { b.notifier = n }
}

// WithPreferences enables persisting the equalizer fallback mode.
func WithPreferences(p Preferences) Option {
	return func(b *Backend) { b.prefs = p }
}

// Backend is the wire protocol engine. All operations are serialized.
type Backend struct {
	mu     sync.Mutex
	dial   transport.Dialer
	ch     transport.Channel
	closed bool

	caps    capabilities
	buffers map[dsp.Namespace]*bufferState

	prefs    Preferences
	notifier dsp.Notifier
	log      *applog.Logger
}

// New connects through dial and returns a ready backend.
func New(ctx context.Context, dial transport.Dialer, opts ...Option) (*Backend, error) {
	b := &Backend{
		dial:     dial,
		notifier: dsp.LogNotifier{},
		log:      applog.Named("remote"),
	}
	for _, o := range opts {
		o(b)
	}
	b.reset()
	ch, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	b.ch = ch
	return b, nil
}

// reset forgets everything learned on the current connection.
func (b *Backend) reset() {
	b.caps = capabilities{}
	b.buffers = make(map[dsp.Namespace]*bufferState, len(bufferFeatures))
	for ns := range bufferFeatures {
		b.buffers[ns] = &bufferState{hash: transport.NoHash}
	}
}

func (b *Backend) notify(n dsp.Notice) {
	if b.notifier != nil {
		b.notifier.Notify(n)
	}
}

// do runs fn with the current channel while holding the backend lock.
func (b *Backend) do(fn func(ch transport.Channel) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return dsp.ErrEngineClosed
	}
	if b.ch == nil {
		return errNotConnected
	}
	return fn(b.ch)
}

// Ready checks that the engine process is alive and its sample rate sane,
// rebooting the connection otherwise.
func (b *Backend) Ready(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, dsp.ErrEngineClosed
	}
	if b.ch == nil {
		return true, b.reboot(ctx)
	}

	pid, err := b.ch.GetInt(ctx, transport.SlotPID)
	if err != nil || pid <= 0 {
		b.log.Errorf("pid (%d) invalid, engine probably crashed or detached: %v", pid, err)
		b.notify(dsp.Notice{Kind: dsp.EngineRebooted, Message: "Engine crashed. Rebooting."})
		return true, b.reboot(ctx)
	}
	rate, err := b.ch.GetInt(ctx, transport.SlotSampleRate)
	if err != nil || rate <= 0 {
		b.log.Errorf("abnormal sample rate %d (pid %d): %v", rate, pid, err)
		b.notify(dsp.Notice{Kind: dsp.EngineRebooted, Message: "Abnormal sampling rate. Rebooting."})
		return true, b.reboot(ctx)
	}
	return false, nil
}

// Reboot drops the connection and dials a new one.
func (b *Backend) Reboot(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return dsp.ErrEngineClosed
	}
	return b.reboot(ctx)
}

func (b *Backend) reboot(ctx context.Context) error {
	if b.ch != nil {
		if err := b.ch.Close(); err != nil {
			b.log.Debugf("closing old connection: %v", err)
		}
		b.ch = nil
	}
	b.reset()
	ch, err := b.dial(ctx)
	if err != nil {
		b.log.Errorf("failed to re-establish the engine connection: %v", err)
		return fmt.Errorf("reconnect: %w", err)
	}
	b.ch = ch
	b.log.Infof("engine connection re-established")
	return nil
}

// ClearCache forgets the local commit hashes; every enabled buffer is sent
// again on its next write.
func (b *Backend) ClearCache() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, st := range b.buffers {
		*st = bufferState{hash: transport.NoHash}
	}
}

// SampleRate reads the engine rate, 0 when unavailable.
func (b *Backend) SampleRate(ctx context.Context) float32 {
	var rate int32
	err := b.do(func(ch transport.Channel) error {
		var err error
		rate, err = ch.GetInt(ctx, transport.SlotSampleRate)
		return err
	})
	if err != nil || rate < 0 {
		return 0
	}
	return float32(rate)
}

// Capabilities reports no script VM access and no custom crossfeed.
func (b *Backend) Capabilities() dsp.Capabilities {
	return dsp.Capabilities{}
}

// Capability returns the negotiated state of an advanced feature.
func (b *Backend) Capability(ns dsp.Namespace) (Capability, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch ns {
	case dsp.SpectrumExtension:
		return b.caps.spectrum, true
	case dsp.Clarity:
		return b.caps.clarity, true
	case dsp.FieldSurround:
		return b.caps.fieldSurround, true
	}
	return Capability{}, false
}

// Close releases the connection. Later calls fail with dsp.ErrEngineClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.ch == nil {
		return nil
	}
	err := b.ch.Close()
	b.ch = nil
	return err
}

// Status is a readout of the engine's status slots. Unreadable values are -1.
type Status struct {
	PID                  int32
	SampleRate           int32
	CommitCount          int32
	BufferLength         int32
	AllocatedBlockLength int32
	Hashes               map[dsp.Namespace]int32
}

// PresetInitialized reports whether any parameter was committed yet.
func (s Status) PresetInitialized() bool { return s.CommitCount > 0 }

// Status reads every status slot.
func (b *Backend) Status(ctx context.Context) (Status, error) {
	var st Status
	err := b.do(func(ch transport.Channel) error {
		read := func(slot int32) int32 {
			v, err := ch.GetInt(ctx, slot)
			if err != nil {
				return -1
			}
			return v
		}
		st = Status{
			PID:                  read(transport.SlotPID),
			SampleRate:           read(transport.SlotSampleRate),
			CommitCount:          read(transport.SlotCommitCount),
			BufferLength:         read(transport.SlotBufferLength),
			AllocatedBlockLength: read(transport.SlotAllocatedBlock),
			Hashes:               make(map[dsp.Namespace]int32, len(bufferFeatures)),
		}
		for ns, f := range bufferFeatures {
			st.Hashes[ns] = read(f.readback)
		}
		return nil
	})
	return st, err
}

// EngineStatus feeds the UDP status publisher.
func (b *Backend) EngineStatus(ctx context.Context) (udp.EngineStatus, error) {
	st, err := b.Status(ctx)
	if err != nil {
		return udp.EngineStatus{}, err
	}
	out := udp.EngineStatus{PID: st.PID, SampleRate: st.SampleRate, CommitCount: st.CommitCount}
	for _, ns := range bufferOrder {
		out.Hashes = append(out.Hashes, st.Hashes[ns])
	}
	return out, nil
}

var (
	_ dsp.Engine       = (*Backend)(nil)
	_ udp.StatusSource = (*Backend)(nil)
)

// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"

	"dspctl/internal/config"
	"dspctl/internal/device"
	"dspctl/internal/dsp"
	"dspctl/internal/engine/embedded"
	"dspctl/internal/engine/remote"
	applog "dspctl/internal/log"
	"dspctl/internal/transport"
	"dspctl/internal/transport/udp"
)

// engineSet is what the commands need from a constructed backend.
type engineSet struct {
	engine dsp.Engine
	// status is set for the remote backend.
	status udp.StatusSource
	// embedded is set for the embedded backend.
	embedded *embedded.Backend
	// devices is true while PortAudio is initialized.
	devices bool
}

// release frees what newEngine acquired besides the engine, which the
// driver closes.
func (s engineSet) release() {
	if s.devices {
		if err := device.Terminate(); err != nil {
			applog.Warnf("%v", err)
		}
	}
}

// newDialer returns the Dialer for the configured remote transport. The
// logging transport talks to ep, which must then be non-nil.
func newDialer(cfg *config.Config, ep *transport.Endpoint) transport.Dialer {
	hello := transport.Hello{
		EffectType: transport.EffectEngine,
		Session:    cfg.SessionID(),
		Priority:   cfg.Remote.Priority,
	}
	rc := cfg.Remote
	return func(ctx context.Context) (transport.Channel, error) {
		var (
			c   *transport.Client
			err error
		)
		switch rc.Transport {
		case config.TransportWebSocket:
			c, err = transport.DialWebSocket(ctx, rc.URL, hello, rc.CallTimeout)
		case config.TransportNATS:
			c, err = transport.DialNATS(ctx, rc.URL, rc.Subject, hello, rc.CallTimeout)
		case config.TransportLogging:
			c, err = transport.NewLoopback(ctx, ep, hello)
		default:
			return nil, fmt.Errorf("unknown transport %q", rc.Transport)
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// newEngine builds the configured backend. prefs receives the remote
// backend's persisted fallbacks and may be nil.
func newEngine(ctx context.Context, cfg *config.Config, prefs remote.Preferences, notifier dsp.Notifier) (engineSet, error) {
	switch cfg.Engine.Backend {
	case config.BackendRemote:
		var ep *transport.Endpoint
		if cfg.Remote.Transport == config.TransportLogging {
			ep = transport.NewEndpoint(transport.WithSampleRate(int32(cfg.Engine.SampleRate)))
		}
		opts := []remote.Option{remote.WithNotifier(notifier)}
		if prefs != nil {
			opts = append(opts, remote.WithPreferences(prefs))
		}
		b, err := remote.New(ctx, newDialer(cfg, ep), opts...)
		if err != nil {
			return engineSet{}, fmt.Errorf("remote engine: %w", err)
		}
		return engineSet{engine: b, status: b}, nil

	case config.BackendEmbedded:
		depth, err := embedded.ParseDepthMode(cfg.Engine.DepthCompat)
		if err != nil {
			return engineSet{}, err
		}
		rate := cfg.Engine.SampleRate
		devices := false
		if err := device.Initialize(); err != nil {
			applog.Warnf("%v, using configured rate", err)
		} else {
			devices = true
			rate = device.OutputSampleRate(cfg.Engine.OutputDevice, rate)
		}
		b, err := embedded.New(embedded.NewLoggingHandle(), embedded.Options{
			ReleaseGrace: cfg.Engine.ReleaseGrace,
			Depth:        depth,
			SampleRate:   float32(rate),
		})
		if err != nil {
			if devices {
				device.Terminate()
			}
			return engineSet{}, fmt.Errorf("embedded engine: %w", err)
		}
		return engineSet{engine: b, embedded: b, devices: devices}, nil
	}
	return engineSet{}, fmt.Errorf("unknown backend %q", cfg.Engine.Backend)
}

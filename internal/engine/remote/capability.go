// SPDX-License-Identifier: MIT
package remote

import (
	"context"
	"fmt"

	"dspctl/internal/dsp"
)

// Support is what the endpoint is known to accept for a feature.
type Support uint8

const (
	Unknown Support = iota
	Supported
	Unsupported
)

func (s Support) String() string {
	switch s {
	case Supported:
		return "supported"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Payload is what the endpoint is known to accept as the feature's wire form.
type Payload uint8

const (
	PayloadUnknown Payload = iota
	AdvancedSupported
	LegacyOnly
)

func (p Payload) String() string {
	switch p {
	case AdvancedSupported:
		return "advanced"
	case LegacyOnly:
		return "legacy-only"
	default:
		return "unknown"
	}
}

// Capability is the negotiated state of one advanced feature. It only moves
// away from Unknown and is discarded with the connection.
type Capability struct {
	Feature Support
	Payload Payload

	advancedNoticeShown    bool
	unsupportedNoticeShown bool
}

// capabilities holds everything negotiated on the current connection.
type capabilities struct {
	spectrum      Capability
	clarity       Capability
	fieldSurround Capability

	// eqViperOriginal memoizes whether equalizer filter mode 6 is accepted.
	eqViperOriginal Support
}

// advancedWrite describes one enable attempt of an advanced feature.
type advancedWrite struct {
	ns      dsp.Namespace
	cap     *Capability
	enable  bool
	label   string
	payload func(ctx context.Context) error
	legacy  []func(ctx context.Context) error
	toggle  func(ctx context.Context, enable bool) error
}

// negotiate applies w following the feature's capability state.
func (b *Backend) negotiate(ctx context.Context, w advancedWrite) error {
	c := w.cap
	if c.Feature == Unsupported {
		b.notifyUnsupported(w)
		return fmt.Errorf("%s: %w", w.ns, dsp.ErrUnsupported)
	}

	if w.enable {
		if c.Payload != LegacyOnly {
			err := w.payload(ctx)
			switch {
			case err == nil:
				c.Payload = AdvancedSupported
			case !rejected(err):
				return fmt.Errorf("%s: %w", w.ns, err)
			default:
				b.log.With(w.ns.String()).Warnf("endpoint rejected %s payload (%v), falling back to legacy protocol", w.label, err)
				c.Payload = LegacyOnly
				if !c.advancedNoticeShown {
					c.advancedNoticeShown = true
					b.notify(dsp.Notice{
						Kind:      dsp.AdvancedUnsupported,
						Namespace: w.ns,
						Message:   fmt.Sprintf("Advanced %s controls are not supported by this endpoint. Using basic mode.", w.label),
					})
				}
				if err := b.legacy(ctx, w); err != nil {
					return err
				}
			}
		} else if err := b.legacy(ctx, w); err != nil {
			return err
		}
	}

	if w.enable || c.Feature == Supported {
		if err := w.toggle(ctx, w.enable); err != nil {
			return b.markUnsupported(w, err)
		}
	}
	if w.enable {
		c.Feature = Supported
	}
	return nil
}

// legacy runs the per-parameter sequence, stopping at the first rejection.
func (b *Backend) legacy(ctx context.Context, w advancedWrite) error {
	for _, call := range w.legacy {
		if err := call(ctx); err != nil {
			return b.markUnsupported(w, err)
		}
	}
	return nil
}

// markUnsupported downgrades the feature when the endpoint answered with a
// failure status. Other errors leave the capability state untouched.
func (b *Backend) markUnsupported(w advancedWrite, cause error) error {
	if !rejected(cause) {
		return fmt.Errorf("%s: %w", w.ns, cause)
	}
	w.cap.Feature = Unsupported
	b.log.With(w.ns.String()).Warnf("endpoint rejected %s command: %v", w.label, cause)
	b.notifyUnsupported(w)
	return reject(w.ns, cause)
}

// notifyUnsupported emits the feature notice once per connection, and only
// for enable requests.
func (b *Backend) notifyUnsupported(w advancedWrite) {
	if !w.enable || w.cap.unsupportedNoticeShown {
		return
	}
	w.cap.unsupportedNoticeShown = true
	b.notify(dsp.Notice{
		Kind:      dsp.FeatureUnsupported,
		Namespace: w.ns,
		Message:   fmt.Sprintf("%s requires a compatible endpoint version.", w.label),
	})
}

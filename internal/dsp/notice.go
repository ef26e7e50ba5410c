// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"sync"

	applog "dspctl/internal/log"
)

// NoticeKind classifies user-facing messages.
type NoticeKind uint8

const (
	// AdvancedUnsupported: the endpoint rejected the wide payload, the
	// legacy per-parameter form is used instead.
	AdvancedUnsupported NoticeKind = iota + 1
	// FeatureUnsupported: the endpoint rejected the feature altogether.
	FeatureUnsupported
	ConvolverAdvParamsInvalid
	ConvolverCorrupted
	ConvolverNoFrames
	EngineRebooted
)

func (k NoticeKind) String() string {
	switch k {
	case AdvancedUnsupported:
		return "advanced-unsupported"
	case FeatureUnsupported:
		return "feature-unsupported"
	case ConvolverAdvParamsInvalid:
		return "convolver-adv-params-invalid"
	case ConvolverCorrupted:
		return "convolver-corrupted"
	case ConvolverNoFrames:
		return "convolver-no-frames"
	case EngineRebooted:
		return "engine-rebooted"
	default:
		return fmt.Sprintf("notice(%d)", uint8(k))
	}
}

// Notice is a message meant for the user, not for the log.
type Notice struct {
	Kind      NoticeKind
	Namespace Namespace
	Message   string
}

// Notifier delivers notices. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to the application log at warn level.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notice) {
	applog.Warnf("notice[%s] %s: %s", n.Kind, n.Namespace, n.Message)
}

// NoticeRecorder keeps every notice; used by tests and the one-shot CLI.
type NoticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *NoticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of everything recorded so far.
func (r *NoticeRecorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Count returns how many notices of kind k were recorded for ns.
func (r *NoticeRecorder) Count(kind NoticeKind, ns Namespace) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := 0
	for _, n := range r.notices {
		if n.Kind == kind && n.Namespace == ns {
			c++
		}
	}
	return c
}

var (
	_ Notifier = LogNotifier{}
	_ Notifier = (*NoticeRecorder)(nil)
	_ Notifier = NotifierFunc(nil)
)

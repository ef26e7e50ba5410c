// SPDX-License-Identifier: MIT
/*
Package syncer pushes preferences into an engine. A Driver runs at most one
sync pass at a time; triggers that arrive while a pass is running are merged
and handled by the next pass.
*/
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"dspctl/internal/dsp"
	applog "dspctl/internal/log"
	"dspctl/internal/normalize"
	"dspctl/internal/settings"
)

// Event is an asynchronous trigger for a sync pass.
type Event uint8

const (
	// PreferencesUpdated syncs the namespaces the store reports as changed.
	PreferencesUpdated Event = iota + 1
	// SampleRateUpdated additionally forces the convolver, whose impulse is
	// resampled to the engine rate.
	SampleRateUpdated
	// ReloadLiveprog forces the live program to be read again.
	ReloadLiveprog
	// HardReboot reconnects the engine and writes every namespace.
	HardReboot
	// SoftReboot forgets the committed preferences and the engine's commit
	// hashes, then writes every namespace.
	SoftReboot
)

func (e Event) String() string {
	switch e {
	case PreferencesUpdated:
		return "preferences-updated"
	case SampleRateUpdated:
		return "sample-rate-updated"
	case ReloadLiveprog:
		return "reload-liveprog"
	case HardReboot:
		return "hard-reboot"
	case SoftReboot:
		return "soft-reboot"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Report summarizes one sync pass.
type Report struct {
	Rebooted bool
	Applied  []dsp.Namespace
	Failed   []dsp.Namespace
	Skipped  []dsp.Namespace
	Errors   map[dsp.Namespace]error
}

// OK reports whether every written namespace was accepted.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// job is the merged work of every trigger since the last pass.
type job struct {
	forced dsp.NamespaceSet
	hard   bool
	soft   bool
}

func (j job) merge(o job) job {
	return job{forced: j.forced.Union(o.forced), hard: j.hard || o.hard, soft: j.soft || o.soft}
}

func (e Event) job() job {
	switch e {
	case SampleRateUpdated:
		return job{forced: dsp.SetOf(dsp.Convolver)}
	case ReloadLiveprog:
		return job{forced: dsp.SetOf(dsp.LiveProgram)}
	case HardReboot:
		return job{hard: true}
	case SoftReboot:
		return job{soft: true}
	default:
		return job{}
	}
}

// Option configures a Driver.
type Option func(*Driver)

// WithNotifier sets where user notices go. The default logs them.
func WithNotifier(n dsp.Notifier) Option {
	return func(d *Driver) { d.notifier = n }
}

// WithReportHandler is called after every pass started by an Event.
func WithReportHandler(fn func(Report, error)) Option {
	return func(d *Driver) { d.onReport = fn }
}

// Driver owns an engine and keeps it in sync with a settings store.
type Driver struct {
	engine   dsp.Engine
	store    settings.Store
	files    normalize.Files
	notifier dsp.Notifier
	onReport func(Report, error)
	log      *applog.Logger

	passMu  sync.Mutex
	syncing atomic.Bool

	mu      sync.Mutex
	pending job
	queued  bool
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
	closed sync.Once
}

// New returns a Driver. Call Start to handle posted events in the
// background; SyncNow works without it.
func New(engine dsp.Engine, store settings.Store, files normalize.Files, opts ...Option) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		engine:   engine,
		store:    store,
		files:    files,
		notifier: dsp.LogNotifier{},
		log:      applog.Named("syncer"),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Start launches the background worker.
func (d *Driver) Start() {
	d.start.Do(func() {
		d.wg.Add(1)
		go d.loop()
	})
}

// Post schedules a pass. Events posted while a pass is queued or running
// are merged into the next one.
func (d *Driver) Post(ev Event) {
	if d.ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	if d.queued {
		d.pending = d.pending.merge(ev.job())
	} else {
		d.pending, d.queued = ev.job(), true
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	d.log.Debugf("scheduled %s", ev)
}

// Syncing reports whether a pass is running.
func (d *Driver) Syncing() bool {
	return d.syncing.Load()
}

func (d *Driver) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.wake:
		}

		d.mu.Lock()
		j, ok := d.pending, d.queued
		d.pending, d.queued = job{}, false
		d.mu.Unlock()
		if !ok {
			continue
		}

		rep, err := d.run(d.ctx, j)
		if err != nil && d.ctx.Err() == nil {
			d.log.Errorf("sync pass failed: %v", err)
		}
		if d.onReport != nil {
			d.onReport(rep, err)
		}
	}
}

// SyncNow runs one pass in the caller's goroutine, writing the changed
// namespaces plus forced. It waits for a running pass to finish first.
func (d *Driver) SyncNow(ctx context.Context, forced dsp.NamespaceSet) (Report, error) {
	return d.run(ctx, job{forced: forced})
}

func (d *Driver) run(ctx context.Context, j job) (Report, error) {
	d.passMu.Lock()
	defer d.passMu.Unlock()
	if d.ctx.Err() != nil {
		return Report{}, dsp.ErrEngineClosed
	}
	d.syncing.Store(true)
	defer d.syncing.Store(false)

	if j.hard {
		if err := d.engine.Reboot(ctx); err != nil {
			return Report{}, fmt.Errorf("reboot: %w", err)
		}
		j.forced = dsp.FullSet()
	}
	if j.soft {
		d.store.Clear()
		d.engine.ClearCache()
	}
	return d.pass(ctx, j.forced)
}

// pass writes dirty namespaces. Caller holds passMu.
func (d *Driver) pass(ctx context.Context, forced dsp.NamespaceSet) (Report, error) {
	rebooted, err := d.engine.Ready(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("engine not ready: %w", err)
	}

	state := d.store.Capture()
	dirty := state.Changed().Union(forced)
	if rebooted {
		dirty = dsp.FullSet()
	}
	rep := Report{Rebooted: rebooted, Errors: make(map[dsp.Namespace]error)}
	snap := settings.Read(state)
	n := d.normalize(snap)
	rate := int(d.engine.SampleRate(ctx))

	for _, ns := range dsp.AllNamespaces() {
		if !dirty.Has(ns) {
			rep.Skipped = append(rep.Skipped, ns)
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := d.write(ctx, ns, snap, n, rate); err != nil {
			d.log.Warnf("%s: %v", ns, err)
			rep.Failed = append(rep.Failed, ns)
			rep.Errors[ns] = err
			continue
		}
		rep.Applied = append(rep.Applied, ns)
	}

	d.store.MarkCommitted(state)
	d.log.Debugf("pass done: %d applied, %d failed, %d skipped", len(rep.Applied), len(rep.Failed), len(rep.Skipped))
	return rep, nil
}

// Close cancels pending work, waits for the worker and closes the engine.
func (d *Driver) Close() error {
	var err error
	d.closed.Do(func() {
		d.cancel()
		d.wg.Wait()
		d.passMu.Lock()
		err = d.engine.Close()
		d.passMu.Unlock()
	})
	return err
}

func (d *Driver) notify(kind dsp.NoticeKind, ns dsp.Namespace, msg string) {
	d.notifier.Notify(dsp.Notice{Kind: kind, Namespace: ns, Message: msg})
}

// dispatch sends s unless err is a validation failure. A validation
// failure that asks for the feature to be disabled still sends s, which
// the normalizer returned switched off.
func dispatch[T any](ctx context.Context, d *Driver, s T, err error, set func(context.Context, T) error) error {
	var verr *dsp.ValidationError
	if !errors.As(err, &verr) {
		if err != nil {
			return err
		}
		return set(ctx, s)
	}
	if verr.Notice != 0 {
		d.notify(verr.Notice, verr.Namespace, verr.Reason)
	}
	if !verr.Disable {
		return err
	}
	if serr := set(ctx, s); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

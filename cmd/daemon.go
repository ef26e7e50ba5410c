// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dspctl/internal/device"
	"dspctl/internal/dsp"
	"dspctl/internal/library"
	applog "dspctl/internal/log"
	"dspctl/internal/settings"
	"dspctl/internal/syncer"
	"dspctl/internal/transport/udp"

	"github.com/spf13/cobra"
)

// deviceInterval is how often the output device rate is polled.
const deviceInterval = 5 * time.Second

// runDaemon keeps the engine in sync until SIGINT or SIGTERM. SIGHUP
// triggers a soft reboot, SIGUSR1 a hard reboot.
func runDaemon(cmd *cobra.Command, opts *options) error {
	cfg := opts.cfg
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := settings.OpenFile(cfg.Settings.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	set, err := newEngine(ctx, cfg, store, dsp.LogNotifier{})
	if err != nil {
		return err
	}
	defer set.release()

	driver := syncer.New(set.engine, store, library.New(cfg.Settings.LibraryDir),
		syncer.WithReportHandler(logReport))
	defer driver.Close()
	driver.Start()
	driver.Post(syncer.PreferencesUpdated)

	if cfg.Settings.Watch {
		if err := store.Watch(func() { driver.Post(syncer.PreferencesUpdated) }); err != nil {
			return err
		}
	}

	if cfg.Status.Enabled && set.status != nil {
		sender, err := udp.NewSender(cfg.Status.Target)
		if err != nil {
			return err
		}
		defer sender.Close()
		publisher, err := udp.NewPublisher(cfg.Status.Interval, sender, set.status)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Close()
	}

	if set.embedded != nil && set.devices {
		current := float64(set.embedded.SampleRate(ctx))
		go device.WatchSampleRate(ctx, deviceInterval, current, func() float64 {
			if err := device.Refresh(); err != nil {
				applog.Warnf("%v", err)
				return 0
			}
			return device.OutputSampleRate(cfg.Engine.OutputDevice, 0)
		}, func(rate float64) {
			if err := set.embedded.SetSampleRate(float32(rate)); err != nil {
				applog.Errorf("sample rate: %v", err)
				return
			}
			driver.Post(syncer.SampleRateUpdated)
		})
	}

	reboots := make(chan os.Signal, 1)
	signal.Notify(reboots, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(reboots)

	applog.Infof("running %s backend, preferences %s", cfg.Engine.Backend, cfg.Settings.Path)
	for {
		select {
		case <-ctx.Done():
			applog.Infof("shutting down")
			return nil
		case sig := <-reboots:
			if sig == syscall.SIGUSR1 {
				driver.Post(syncer.HardReboot)
			} else {
				driver.Post(syncer.SoftReboot)
			}
		}
	}
}

func logReport(rep syncer.Report, err error) {
	if err != nil {
		applog.Errorf("sync: %v", err)
		return
	}
	if rep.Rebooted {
		applog.Infof("sync: engine was rebooted, wrote every namespace")
	}
	applog.Infof("sync: %d applied, %d failed", len(rep.Applied), len(rep.Failed))
}

// waitForSignal blocks until ctx is done or SIGINT/SIGTERM arrives.
func waitForSignal(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

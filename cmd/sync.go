// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"

	"dspctl/internal/config"
	"dspctl/internal/dsp"
	"dspctl/internal/library"
	applog "dspctl/internal/log"
	"dspctl/internal/settings"
	"dspctl/internal/syncer"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Write every namespace to the engine once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if dryRun {
				cfg.Engine.Backend = config.BackendRemote
				cfg.Remote.Transport = config.TransportLogging
				applog.SetLevel(applog.LevelDebug)
			}

			store, err := settings.OpenFile(cfg.Settings.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			notices := &dsp.NoticeRecorder{}
			set, err := newEngine(cmd.Context(), cfg, store, notices)
			if err != nil {
				return err
			}
			defer set.release()

			driver := syncer.New(set.engine, store, library.New(cfg.Settings.LibraryDir), syncer.WithNotifier(notices))
			defer driver.Close()

			// A freshly opened store has nothing committed, so the pass
			// covers every namespace.
			rep, err := driver.SyncNow(cmd.Context(), 0)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep, notices.Notices())
			if !rep.OK() {
				return fmt.Errorf("%d namespaces failed", len(rep.Failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Log every engine call against an in-process endpoint")
	return cmd
}

func printReport(w io.Writer, rep syncer.Report, notices []dsp.Notice) {
	if rep.Rebooted {
		fmt.Fprintln(w, "engine rebooted, every namespace written")
	}
	fmt.Fprintf(w, "applied: %s\n", joinNamespaces(rep.Applied))
	fmt.Fprintf(w, "skipped: %s\n", joinNamespaces(rep.Skipped))
	for _, ns := range rep.Failed {
		fmt.Fprintf(w, "failed:  %s: %v\n", ns, rep.Errors[ns])
	}
	for _, n := range notices {
		fmt.Fprintf(w, "notice:  %s %s: %s\n", n.Kind, n.Namespace, n.Message)
	}
}

func joinNamespaces(ns []dsp.Namespace) string {
	if len(ns) == 0 {
		return "-"
	}
	out := ns[0].String()
	for _, n := range ns[1:] {
		out += ", " + n.String()
	}
	return out
}

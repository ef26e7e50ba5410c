// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	applog "dspctl/internal/log"
	"dspctl/internal/transport"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

func newEndpointCmd(opts *options) *cobra.Command {
	var reject []int32
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Serve a simulated remote engine over websocket and NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ec := opts.cfg.Endpoint
			ep := transport.NewEndpoint(
				transport.WithSampleRate(ec.SampleRate),
				transport.WithRejectedSlots(append(ec.Reject, reject...)...),
			)

			if ec.NATSURL != "" {
				nc, err := nats.Connect(ec.NATSURL, nats.Name("dspctl endpoint"))
				if err != nil {
					return fmt.Errorf("connect %s: %w", ec.NATSURL, err)
				}
				defer nc.Drain()
				sub, err := transport.ServeNATS(nc, ec.Subject, ep)
				if err != nil {
					return err
				}
				defer sub.Unsubscribe()
			}

			srv := transport.NewWebSocketServer(ec.Listen, ep)
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()

			select {
			case err := <-errc:
				return err
			case <-waitDone(cmd):
			}
			applog.Infof("endpoint stopping")
			return errors.Join(srv.Close(), <-errc)
		},
	}
	cmd.Flags().Int32SliceVar(&reject, "reject", nil, "Slots to refuse with a bad value status")
	return cmd
}

// waitDone closes the returned channel on SIGINT or SIGTERM.
func waitDone(cmd *cobra.Command) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		waitForSignal(cmd.Context())
		close(done)
	}()
	return done
}

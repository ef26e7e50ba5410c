// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"time"

	applog "dspctl/internal/log"

	"github.com/nats-io/nats.go"
)

var natsLog = applog.Named("nats")

type natsTripper struct {
	nc      *nats.Conn
	subject string
	session string
	owned   bool
}

// DialNATS connects to a NATS server and addresses the endpoint listening
// on subject.
func DialNATS(ctx context.Context, url, subject string, hello Hello, timeout time.Duration) (*Client, error) {
	nc, err := nats.Connect(url, nats.Name("dspctl "+hello.Session.String()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return newNATSClient(ctx, nc, subject, hello, timeout, true)
}

// NewNATSClient uses an existing connection. Closing the client leaves nc
// open.
func NewNATSClient(ctx context.Context, nc *nats.Conn, subject string, hello Hello, timeout time.Duration) (*Client, error) {
	return newNATSClient(ctx, nc, subject, hello, timeout, false)
}

func newNATSClient(ctx context.Context, nc *nats.Conn, subject string, hello Hello, timeout time.Duration, owned bool) (*Client, error) {
	c := newClient(&natsTripper{nc: nc, subject: subject, session: hello.Session.String(), owned: owned}, timeout)
	if err := c.hello(ctx, hello); err != nil {
		return nil, err
	}
	natsLog.Debugf("connected to %s on %q", nc.ConnectedUrl(), subject)
	return c, nil
}

func (n *natsTripper) roundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	msg := nats.NewMsg(n.subject)
	msg.Header.Set(SessionHeader, n.session)
	msg.Data = frame
	reply, err := n.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

func (n *natsTripper) close() error {
	if n.owned {
		n.nc.Close()
	}
	return nil
}

// ServeNATS answers requests on subject with ep. Unsubscribe the returned
// subscription to stop serving.
func ServeNATS(nc *nats.Conn, subject string, ep *Endpoint) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(subject, func(m *nats.Msg) {
		var req Request
		if err := req.UnmarshalBinary(m.Data); err != nil {
			natsLog.Warnf("dropping request from %s: %v", m.Header.Get(SessionHeader), err)
			return
		}
		out, _ := ep.Handle(req).MarshalBinary()
		if err := m.Respond(out); err != nil {
			natsLog.Warnf("respond: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", subject, err)
	}
	natsLog.Infof("serving endpoint on %q", subject)
	return sub, nil
}

// SPDX-License-Identifier: MIT
package transport

import (
	"context"

	applog "dspctl/internal/log"
)

var loopLog = applog.Named("loopback")

// loopback hands frames to an in-process Endpoint and logs every call.
type loopback struct {
	ep *Endpoint
}

// NewLoopback returns a Client wired directly to ep. Every request is logged
// at debug level, which makes it the transport of dry runs.
func NewLoopback(ctx context.Context, ep *Endpoint, hello Hello) (*Client, error) {
	loopLog.Debugf("using in-process endpoint")
	c := newClient(&loopback{ep: ep}, 0)
	if err := c.hello(ctx, hello); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *loopback) roundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var req Request
	if err := req.UnmarshalBinary(frame); err != nil {
		return nil, err
	}
	rep := l.ep.Handle(req)
	switch req.Op {
	case OpSetFloats:
		v, _ := DecodeFloats(req.Payload)
		loopLog.Debugf("%s slot %d %v -> %s", req.Op, req.Slot, v, rep.Status)
	case OpSetBuffer:
		loopLog.Debugf("%s slot %d/%d (%d bytes) -> %s", req.Op, req.Slot, req.Sub, len(req.Payload), rep.Status)
	case OpGetInt:
		loopLog.Debugf("%s slot %d -> %d (%s)", req.Op, req.Slot, rep.Value, rep.Status)
	default:
		loopLog.Debugf("%s slot %d % x -> %s", req.Op, req.Slot, req.Payload, rep.Status)
	}
	return rep.MarshalBinary()
}

func (l *loopback) close() error {
	loopLog.Debugf("closed")
	return nil
}

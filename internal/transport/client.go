// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultCallTimeout bounds calls whose context carries no deadline.
const DefaultCallTimeout = 2 * time.Second

// roundTripper moves one encoded request to the endpoint and returns the
// encoded reply.
type roundTripper interface {
	roundTrip(ctx context.Context, frame []byte) ([]byte, error)
	close() error
}

// Client implements Channel over a roundTripper.
type Client struct {
	rt      roundTripper
	seq     atomic.Uint32
	timeout time.Duration
	closed  atomic.Bool
}

func newClient(rt roundTripper, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Client{rt: rt, timeout: timeout}
}

// hello performs the handshake. The client is closed on failure.
func (c *Client) hello(ctx context.Context, h Hello) error {
	if _, err := c.call(ctx, OpHello, 0, 0, h.payload()); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, op Op, slot, sub int32, payload []byte) (int32, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("%s slot %d: channel closed", op, slot)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := Request{Op: op, Seq: c.seq.Add(1), Slot: slot, Sub: sub, Payload: payload}
	frame, err := req.MarshalBinary()
	if err != nil {
		return 0, err
	}
	raw, err := c.rt.roundTrip(ctx, frame)
	if err != nil {
		return 0, fmt.Errorf("%s slot %d: %w", op, slot, err)
	}
	var rep Reply
	if err := rep.UnmarshalBinary(raw); err != nil {
		return 0, fmt.Errorf("%s slot %d: bad reply: %w", op, slot, err)
	}
	if rep.Seq != req.Seq {
		return 0, fmt.Errorf("%s slot %d: reply for sequence %d, want %d", op, slot, rep.Seq, req.Seq)
	}
	if rep.Status != StatusSuccess {
		return 0, &StatusError{Op: op, Slot: slot, Status: rep.Status}
	}
	return rep.Value, nil
}

func (c *Client) SetShort(ctx context.Context, slot int32, v int16) error {
	_, err := c.call(ctx, OpSetShort, slot, 0, encodeShort(v))
	return err
}

func (c *Client) SetInt(ctx context.Context, slot int32, v int32) error {
	_, err := c.call(ctx, OpSetInt, slot, 0, encodeInt(v))
	return err
}

func (c *Client) SetFloats(ctx context.Context, slot int32, v []float32) error {
	_, err := c.call(ctx, OpSetFloats, slot, 0, EncodeFloats(v))
	return err
}

func (c *Client) SetBuffer(ctx context.Context, slot, sub int32, data []byte) error {
	_, err := c.call(ctx, OpSetBuffer, slot, sub, data)
	return err
}

func (c *Client) GetInt(ctx context.Context, slot int32) (int32, error) {
	return c.call(ctx, OpGetInt, slot, 0, nil)
}

// Close releases the underlying connection. It is safe to call more than
// once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.rt.close()
}

var _ Channel = (*Client)(nil)

// SPDX-License-Identifier: MIT
/*
Package transport carries parameter slot calls to a remote engine. A call
is one request frame answered by one reply frame; the frames travel over a
websocket, a NATS request/reply subject or an in-process loopback.

The package also contains Endpoint, a simulated engine that answers the
slot protocol, and the servers exposing it.
*/
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Status is the result code an endpoint returns for every call.
type Status int32

const (
	StatusSuccess          Status = 0
	StatusFailed           Status = -1
	StatusBadValue         Status = -4
	StatusInvalidOperation Status = -5
	StatusDeadObject       Status = -7
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "error"
	case StatusBadValue:
		return "bad value"
	case StatusInvalidOperation:
		return "invalid operation"
	case StatusDeadObject:
		return "dead object"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// StatusError is returned when the endpoint answered with anything other
// than StatusSuccess.
type StatusError struct {
	Op     Op
	Slot   int32
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s slot %d: %s", e.Op, e.Slot, e.Status)
}

// StatusOf extracts the endpoint status from err. Transport failures map to
// StatusDeadObject.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusDeadObject
}

// Channel is the numeric parameter slot interface of a remote engine.
// Implementations must be safe for concurrent use.
type Channel interface {
	SetShort(ctx context.Context, slot int32, v int16) error
	SetInt(ctx context.Context, slot int32, v int32) error
	SetFloats(ctx context.Context, slot int32, v []float32) error
	SetBuffer(ctx context.Context, slot, sub int32, data []byte) error
	GetInt(ctx context.Context, slot int32) (int32, error)
	Close() error
}

// Dialer opens a fresh Channel. Used to re-establish the connection after
// an engine reboot.
type Dialer func(ctx context.Context) (Channel, error)

// SPDX-License-Identifier: MIT
package remote

import (
	"errors"
	"fmt"

	"dspctl/internal/dsp"
	"dspctl/internal/transport"
)

// RejectedError reports a slot call the endpoint did not accept.
type RejectedError struct {
	Feature dsp.Namespace
	Slot    int32
	Status  transport.Status
	Err     error
}

func (e *RejectedError) Error() string {
	if e.Slot == 0 {
		return fmt.Sprintf("%s rejected: %v", e.Feature, e.Err)
	}
	return fmt.Sprintf("%s rejected on slot %d (%s)", e.Feature, e.Slot, e.Status)
}

// Is makes errors.Is(err, dsp.ErrRejected) true.
func (e *RejectedError) Is(target error) bool { return target == dsp.ErrRejected }

func (e *RejectedError) Unwrap() error { return e.Err }

// rejected reports whether err carries an endpoint status. Timeouts and
// connection failures do not.
func rejected(err error) bool {
	var se *transport.StatusError
	return errors.As(err, &se)
}

// reject wraps a transport error for ns. A nil err stays nil.
func reject(ns dsp.Namespace, err error) error {
	if err == nil {
		return nil
	}
	re := &RejectedError{Feature: ns, Status: transport.StatusOf(err), Err: err}
	var se *transport.StatusError
	if errors.As(err, &se) {
		re.Slot = se.Slot
	}
	return re
}

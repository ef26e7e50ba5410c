// SPDX-License-Identifier: MIT
package dsp

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected matches any transport rejection returned by a backend.
	ErrRejected = errors.New("rejected by engine")

	// ErrUnsupported is returned without touching the transport once a
	// feature is known to be unavailable on the connected endpoint.
	ErrUnsupported = errors.New("feature not supported by engine")

	// ErrEngineClosed is returned by every operation after Close.
	ErrEngineClosed = errors.New("engine closed")

	// ErrInvalid matches every ValidationError.
	ErrInvalid = errors.New("invalid settings")
)

// ValidationError reports settings that could not be normalized. The
// previously applied engine state is left untouched unless Disable is set,
// in which case the feature must be switched off instead.
type ValidationError struct {
	Namespace Namespace
	Reason    string
	Disable   bool
	// Notice, when set, is reported to the user alongside the failure.
	Notice NoticeKind
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Namespace, e.Reason)
}

// Is makes errors.Is(err, ErrInvalid) true for validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Invalid builds a ValidationError.
func Invalid(ns Namespace, format string, args ...any) *ValidationError {
	return &ValidationError{Namespace: ns, Reason: fmt.Sprintf(format, args...)}
}

// InvalidDisable builds a ValidationError that requests the feature be
// switched off.
func InvalidDisable(ns Namespace, format string, args ...any) *ValidationError {
	e := Invalid(ns, format, args...)
	e.Disable = true
	return e
}

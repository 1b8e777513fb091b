// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package deck

import (
	"errors"
	"fmt"
)

// Sentinel kinds returned by the service. The API maps ErrUpstream to 502
// and ErrCapacity to 503.
var (
	ErrUpstream = errors.New("upstream generation failed")
	ErrCapacity = errors.New("not enough dishes available")
)

// Error carries a client-facing detail message and matches its Kind with
// errors.Is.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return e.Detail
}

// Is reports whether target is the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func upstreamError(prefix string, err error) *Error {
	return &Error{
		Kind:   ErrUpstream,
		Detail: fmt.Sprintf("%s: %v", prefix, err),
		Err:    err,
	}
}

func capacityError(have, want int) *Error {
	return &Error{
		Kind:   ErrCapacity,
		Detail: fmt.Sprintf("Not enough dishes available: %d < %d", have, want),
	}
}

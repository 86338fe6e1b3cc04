// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nowplaying

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable = errors.New("nowplaying: host unreachable or transport failure")
	ErrServerError = errors.New("nowplaying: server reported an error")
	ErrBadResponse = errors.New("nowplaying: invalid response format or malformed data")
	ErrTimeout     = errors.New("nowplaying: request timed out")
)

// Error wraps a sentinel with request context.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{e.Sentinel, e.Err}
}

const maxErrorBody = 256

// wrapError maps a transport error or HTTP status to a sentinel.
func wrapError(op string, err error, status int, body []byte) error {
	sentinel := classify(err, status)
	if sentinel == nil {
		return nil
	}
	b := string(body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return &Error{Sentinel: sentinel, Operation: op, Status: status, Body: b, Err: err}
}

func classify(err error, status int) error {
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return ErrTimeout
		case errors.As(err, &netErr) && netErr.Timeout():
			return ErrTimeout
		default:
			return ErrUnavailable
		}
	}
	switch {
	case status >= http.StatusInternalServerError:
		return ErrServerError
	case status >= http.StatusBadRequest:
		return ErrBadResponse
	case status >= http.StatusMultipleChoices:
		return ErrBadResponse
	}
	return nil
}

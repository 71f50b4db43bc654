package client

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind string

const (
	// KindNetwork means no response was received at all.
	KindNetwork Kind = "network"

	// KindHTTP means a response was received with a non-2xx status.
	KindHTTP Kind = "http"

	// KindDecode means a 2xx response body could not be parsed as JSON.
	KindDecode Kind = "decode"

	// KindTimeout means the network-first fallback path was exhausted
	// with no cached entry to serve.
	KindTimeout Kind = "timeout"
)

// Error is the typed error returned by the gateway. It carries the
// failure kind and, for HTTP failures, the response status.
type Error struct {
	Kind       Kind
	Status     int
	StatusText string
	Endpoint   string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("gateway %s error (%d %s): %s", e.Kind, e.Status, e.StatusText, e.Endpoint)
	default:
		if e.Err != nil {
			return fmt.Sprintf("gateway %s error: %s: %v", e.Kind, e.Endpoint, e.Err)
		}
		return fmt.Sprintf("gateway %s error: %s", e.Kind, e.Endpoint)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or "" if err is not a gateway error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// StatusOf returns the HTTP status of err, or 0 if err carries no status.
func StatusOf(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Status
	}
	return 0
}

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrKind classifies fetch failures.
type ErrKind string

const (
	// KindTimeout covers deadline and timeout failures.
	KindTimeout ErrKind = "timeout"
	// KindNetwork covers every other transport failure, including
	// unexpected HTTP status codes.
	KindNetwork ErrKind = "network"
)

// Error is a failed fetch with its classification. Callers that run jobs in
// batches record it as a result for the affected job instead of aborting.
type Error struct {
	Kind ErrKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify maps a transport error to an ErrKind.
func classify(err error) ErrKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	// String-based heuristics for errors that lose their type through
	// wrapping in HTTP client internals.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return KindTimeout
	}

	return KindNetwork
}

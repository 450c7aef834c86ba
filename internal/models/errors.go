package models

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned when a query arrives before any document has been
// ingested. User-correctable: upload a document first.
var ErrNotReady = errors.New("no document has been ingested yet")

// ErrRateLimited marks a transient upstream rejection. Callers retry with
// backoff before surfacing it.
var ErrRateLimited = errors.New("rate limited by upstream")

// DimensionMismatchError reports a violation of the index invariant that all
// vectors in one generation share a dimensionality. It indicates a
// collaborator contract breach, not a user error.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// UpstreamError wraps a non-retryable collaborator failure. The collaborator's
// message is surfaced verbatim.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

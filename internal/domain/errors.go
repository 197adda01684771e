package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means no auth strategy yielded a valid session.
	// Fatal to initialization; the pipeline must not start.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotLoggedIn is returned by the session probe when the current
	// credentials no longer verify.
	ErrNotLoggedIn = errors.New("not logged in")
)

// FetchError is a per-call content fetch failure after a valid session
// exists. Callers decide whether to retry.
type FetchError struct {
	Op      string // operation, e.g. "search", "content"
	Subject string // username or query
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %q: %v", e.Op, e.Subject, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ScoringError is a per-item scoring failure (oracle error or malformed
// output). Isolated so one bad response does not fail the batch.
type ScoringError struct {
	ItemID string
	Err    error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("score item %s: %v", e.ItemID, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// PublishError is a failure to publish or persist the digest envelope.
// Surfaced so the job queue's backoff can retry the cycle.
type PublishError struct {
	Channel string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Channel, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

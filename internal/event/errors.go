package event

import (
	"errors"
	"fmt"
)

// ErrMissingEventID is returned for event_callback envelopes without an
// event_id, which cannot be deduplicated.
var ErrMissingEventID = errors.New("event: event_callback without event_id")

// VerificationError rejects an envelope whose token does not match the
// configured verification token. Token is kept for audit logging.
type VerificationError struct {
	Token string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("event: invalid verification token: %q", e.Token)
}

// DuplicateEventError means the event was already handled within the dedup
// window. It is an expected outcome, not a failure.
type DuplicateEventError struct {
	EventID string
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("event: duplicate event %s", e.EventID)
}

package types

import "errors"

// Sentinel errors shared across layers. The taxonomy matters: callers
// branch on these to decide between re-auth prompts, skip-and-continue,
// and user-facing status messages.
var (
	// ErrUnauthorized means the refresh token itself was rejected. The
	// surrounding bot logic purges local credentials and prompts the
	// user to re-link; it is never retried automatically.
	ErrUnauthorized = errors.New("account authorization is no longer valid")

	// ErrAccountNotFound is returned when no linked account matches
	ErrAccountNotFound = errors.New("account not found")

	// ErrChannelNotFound means an inbound ping carried an unknown or
	// stale watch channel ID. It must be rejected explicitly, never
	// treated as a no-op.
	ErrChannelNotFound = errors.New("watch channel not found")

	// ErrSubscriptionNotFound is returned when no subscription matches
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSubscriptionExists means a (conversation, bot, file) triple is
	// already subscribed. This is an expected outcome, not a failure.
	ErrSubscriptionExists = errors.New("subscription already exists")

	// ErrFileNotFound is returned when a Drive file is gone or not
	// accessible with the account's credentials.
	ErrFileNotFound = errors.New("file not found")
)

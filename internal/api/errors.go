package api

import "errors"

var (
	// ErrAuthRequired means the backend answered 401. The stored credential
	// has already been cleared; callers should route to sign-in, not retry.
	ErrAuthRequired = errors.New("authentication_required")

	// ErrActionRejected means the backend refused a submitted action as a
	// rule violation. Transient, surfaced to the user, never fatal.
	ErrActionRejected = errors.New("action_rejected")
)

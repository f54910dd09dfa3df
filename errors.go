package main

import "errors"

// Error categories surfaced to the shell. Handlers wrap these with %w and the
// shell maps them to HTTP statuses; everything else is a 500.
var (
	// ErrValidation: malformed or rule-violating action (wrong phase, dead
	// actor or target, wrong role).
	ErrValidation = errors.New("invalid action")

	// ErrAuthorization: reading a result/history without holding the
	// relevant role, or joining a channel without group membership.
	ErrAuthorization = errors.New("not allowed")

	// ErrConflict: action submitted while the session is resolving a phase.
	// Callers may retry once the phase settles.
	ErrConflict = errors.New("resolution in progress")

	// ErrNotFound: unknown session, channel, or role holder.
	ErrNotFound = errors.New("not found")
)

package errs

import "errors"

// Domain sentinel errors, mapped to HTTP codes in handlers.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionLocked       = errors.New("session is locked")
	ErrSessionFull         = errors.New("session has maximum participants")
	ErrSessionCompleted    = errors.New("session already completed")
	ErrParticipantNotFound = errors.New("participant not in waiting list")
	ErrCodeCollision       = errors.New("could not allocate a unique join code")
)

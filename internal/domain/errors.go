package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrLockHeld      = errors.New("lock already held")

	// Order construction.
	ErrInvalidOrder            = errors.New("invalid order parameters")
	ErrInvalidScaleSpec        = errors.New("invalid scale order spec")
	ErrMissingPrice            = errors.New("missing required price")
	ErrMissingTriggerCondition = errors.New("missing trigger condition")
	ErrZeroSize                = errors.New("order size must be positive")
	ErrLegBelowMinimum         = errors.New("order leg below minimum size")

	// Submission.
	ErrPartialSubmission = errors.New("order set partially submitted")
	ErrDuplicateSet      = errors.New("order set already submitted")
)

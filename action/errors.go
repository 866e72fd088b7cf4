package action

import "errors"

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid action payload")
	ErrEmptyName      = errors.New("todo name must not be empty")

	errStale = errors.New("stale response")
)

package todospa

import (
	"errors"
)

// Observer errors
var (
	ErrObserverNil      = errors.New("observer is nil")
	ErrObserverIDEmpty  = errors.New("observer id is empty")
	ErrInvalidEvent     = errors.New("invalid cloud event")
	ErrNoSubjectForEmit = errors.New("no subject available for event emission")
)

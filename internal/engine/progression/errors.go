package progression

import "errors"

// Progression errors.
var (
	ErrInvalidTransition = errors.New("invalid session phase transition")
	ErrUnknownMode       = errors.New("unknown progression mode")
)

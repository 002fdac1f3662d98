package simulate

import "errors"

// Sentinel kinds for simulation errors.
var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrDeadlineExceeded = errors.New("session did not finish within max duration")
)

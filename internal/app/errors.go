package service

import "errors"

// ErrNotStarted is returned when a session entry point is used before Start.
var ErrNotStarted = errors.New("session not started")

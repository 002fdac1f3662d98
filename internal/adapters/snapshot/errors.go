package snapshot

import "errors"

// ErrNotFound is returned when no snapshot exists for a session.
var ErrNotFound = errors.New("snapshot not found")

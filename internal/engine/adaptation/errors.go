package adaptation

import "errors"

// ErrNilStrategy is returned when a controller is built without a strategy.
var ErrNilStrategy = errors.New("adaptation strategy is nil")

package policy

import "errors"

// ErrUnavailable covers every way a policy artifact can fail: missing file,
// corrupt JSON, or dimension mismatch. Callers treat them all the same and
// degrade to the neutral action.
var ErrUnavailable = errors.New("policy artifact unavailable")

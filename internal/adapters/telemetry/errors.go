package telemetry

import "errors"

// ErrNoEndpoint is returned when an HTTP shipper is built without a
// collector endpoint.
var ErrNoEndpoint = errors.New("telemetry endpoint is empty")

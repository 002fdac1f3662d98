package telemetry

import (
	"net/http"
	"time"

	"github.com/okian/cadence/pkg/logger"
)

// Option configures the HTTP shipper.
type Option func(*HTTP)

// WithAPIKey sets the bearer token sent to the collector.
func WithAPIKey(key string) Option {
	return func(s *HTTP) { s.apiKey = key }
}

// WithQueueCapacity bounds the in-memory event queue.
func WithQueueCapacity(n int) Option {
	return func(s *HTTP) {
		if n > 0 {
			s.queueCapacity = n
		}
	}
}

// WithBatchSize sets how many events one flush ships.
func WithBatchSize(n int) Option {
	return func(s *HTTP) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFlushInterval sets the idle flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(s *HTTP) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithHTTPClient swaps the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTP) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *HTTP) {
		if log != nil {
			s.log = log
		}
	}
}

// Package telemetry ships session events to an external collector. Events
// flow through a bounded in-memory queue into a single flush worker that
// batches them over HTTP, protected by exponential backoff and a circuit
// breaker. Shipping is best-effort: a full queue drops, it never blocks the
// tick loop.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Defaults for the shipper.
const (
	defaultQueueCapacity = 4096
	defaultBatchSize     = 64
	defaultFlushInterval = 2 * time.Second
	defaultSeenCapacity  = 8192
)

// Event is one telemetry envelope. ID is assigned at Track time and used for
// duplicate suppression.
type Event struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	AtMS      int64  `json:"at_ms"`
	Data      any    `json:"data"`
}

// Shipper accepts events and delivers them in the background.
type Shipper interface {
	// Track enqueues an event. Returns false if it was dropped.
	Track(ctx context.Context, sessionID, eventType string, atMS int64, data any) bool

	// Run consumes the queue until the context ends, then drains what it can.
	Run(ctx context.Context)

	// Close stops accepting events.
	Close() error
}

// HTTP ships batches of events to a collector endpoint.
type HTTP struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      logger.Logger

	queueCapacity int
	batchSize     int
	flushInterval time.Duration

	events chan Event
	mu     sync.RWMutex
	closed bool

	seenMu   sync.Mutex
	seen     map[string]struct{}
	seenCap  int
	breaker  *gobreaker.CircuitBreaker
	retryCfg backoff.ExponentialBackOff
}

// NewHTTP builds a shipper for the given collector endpoint.
func NewHTTP(endpoint string, opts ...Option) (*HTTP, error) {
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}

	s := &HTTP{
		endpoint:      endpoint,
		client:        &http.Client{Timeout: 10 * time.Second},
		log:           logger.Named("telemetry"),
		queueCapacity: defaultQueueCapacity,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		seen:          make(map[string]struct{}),
		seenCap:       defaultSeenCapacity,
		retryCfg:      *backoff.NewExponentialBackOff(),
	}
	s.retryCfg.InitialInterval = 200 * time.Millisecond
	s.retryCfg.MaxInterval = 5 * time.Second
	s.retryCfg.MaxElapsedTime = 30 * time.Second

	for _, opt := range opts {
		opt(s)
	}
	s.events = make(chan Event, s.queueCapacity)

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telemetry",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateTelemetryBreakerOpen(to == gobreaker.StateOpen)
			s.log.Warn(context.Background(), "telemetry breaker state change",
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return s, nil
}

// Track enqueues one event. Never blocks; a full queue or closed shipper
// drops the event.
func (s *HTTP) Track(_ context.Context, sessionID, eventType string, atMS int64, data any) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.RecordTelemetryDropped()
		return false
	}

	e := Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      eventType,
		AtMS:      atMS,
		Data:      data,
	}
	select {
	case s.events <- e:
		metrics.RecordTelemetryQueued()
		return true
	default:
		metrics.RecordTelemetryDropped()
		return false
	}
}

// Run consumes the queue, flushing a batch when it fills or when the flush
// interval elapses. On context end it drains whatever is still queued.
func (s *HTTP) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.ship(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-s.events:
			if !ok {
				flush()
				return
			}
			if s.duplicate(e.ID) {
				continue
			}
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			s.drain(batch)
			return
		}
	}
}

// drain performs one final best-effort ship of queued events without retry.
func (s *HTTP) drain(batch []Event) {
	for {
		select {
		case e, ok := <-s.events:
			if !ok {
				s.ship(context.Background(), batch)
				return
			}
			batch = append(batch, e)
		default:
			s.ship(context.Background(), batch)
			return
		}
	}
}

// Close stops accepting events and wakes the worker for its final flush.
func (s *HTTP) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// duplicate records the ID and reports whether it was already seen. The set
// is reset when it grows past its cap.
func (s *HTTP) duplicate(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	if len(s.seen) >= s.seenCap {
		s.seen = make(map[string]struct{})
	}
	s.seen[id] = struct{}{}
	return false
}

// ship posts one batch with backoff behind the breaker. Failures after the
// retry budget drop the batch; telemetry is never worth stalling the session.
func (s *HTTP) ship(ctx context.Context, batch []Event) {
	if len(batch) == 0 {
		return
	}

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, s.post(ctx, batch)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			metrics.RecordTelemetryRetry()
			return err
		}
		return nil
	}

	policy := s.retryCfg
	policy.Reset()
	if err := backoff.Retry(operation, backoff.WithContext(&policy, ctx)); err != nil {
		metrics.RecordTelemetryDropped()
		s.log.Warn(ctx, "telemetry batch dropped",
			logger.Int("events", len(batch)),
			logger.Error(err))
		return
	}
	metrics.RecordTelemetryShipped(len(batch))
}

func (s *HTTP) post(ctx context.Context, batch []Event) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("telemetry encode: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("telemetry request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telemetry post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("telemetry collector unavailable: %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("telemetry rejected: %s", resp.Status))
	}
	return nil
}

// Nop discards every event. Used when no collector is configured.
type Nop struct{}

func (Nop) Track(context.Context, string, string, int64, any) bool { return true }
func (Nop) Run(context.Context)                                    {}
func (Nop) Close() error                                           { return nil }

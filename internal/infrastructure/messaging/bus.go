// Package messaging delivers Caliper events to in-process consumers.
// A Bus plays the role of a sensor: it wraps events in an envelope and hands
// the envelope to every subscribed handler.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/caliper-fixtures/internal/domain/caliper"
	"github.com/alem-hub/caliper-fixtures/internal/domain/shared"
	"github.com/alem-hub/caliper-fixtures/pkg/logger"
	"github.com/alem-hub/caliper-fixtures/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// Sensor accepts events for delivery.
type Sensor interface {
	Send(ctx context.Context, events ...caliper.Event) error
}

// Handler consumes envelopes.
type Handler interface {
	Handle(ctx context.Context, env caliper.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env caliper.Envelope) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, env caliper.Envelope) error {
	return f(ctx, env)
}

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = shared.ErrSensorClosed

	// ErrNilHandler is returned by Subscribe for a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY BUS
// ══════════════════════════════════════════════════════════════════════════════

// Bus is an in-memory Sensor. Every subscribed handler receives every envelope;
// handlers for one envelope run concurrently.
type Bus struct {
	mu       sync.RWMutex
	handlers []registration
	closed   bool

	sensorID       string
	sendTime       string
	clock          timeutil.Clock
	maxConcurrency int
	log            *logger.Logger
	metrics        *Metrics
}

type registration struct {
	name    string
	handler Handler
}

// BusConfig contains configuration for Bus.
type BusConfig struct {
	// SensorID is stamped on every envelope.
	SensorID string

	// SendTime, when set, is used as the send time of every envelope.
	// Otherwise the send time is read from Clock.
	SendTime string

	// Clock for send times (default: system clock)
	Clock timeutil.Clock

	// MaxConcurrency limits handlers running at once for one envelope (0 = unlimited)
	MaxConcurrency int

	// Logger for structured logging
	Logger *logger.Logger

	// EnableMetrics enables metrics collection
	EnableMetrics bool
}

// NewBus creates a new in-memory bus.
func NewBus(cfg BusConfig) *Bus {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	bus := &Bus{
		sensorID:       cfg.SensorID,
		sendTime:       cfg.SendTime,
		clock:          cfg.Clock,
		maxConcurrency: cfg.MaxConcurrency,
		log:            cfg.Logger.With(logger.Component("sensor"), logger.SensorID(cfg.SensorID)),
	}
	if cfg.EnableMetrics {
		bus.metrics = NewMetrics()
	}
	return bus
}

// Subscribe registers a named handler for all envelopes.
func (b *Bus) Subscribe(name string, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers = append(b.handlers, registration{name: name, handler: h})
	b.log.Debug("subscribed handler", logger.String("handler", name))
	return nil
}

// Send wraps events in an envelope and publishes it.
func (b *Bus) Send(ctx context.Context, events ...caliper.Event) error {
	if len(events) == 0 {
		return shared.ErrNoEvents
	}
	return b.Publish(ctx, caliper.NewEnvelope(b.sensorID, b.envelopeTime(), events...))
}

func (b *Bus) envelopeTime() string {
	if b.sendTime != "" {
		return b.sendTime
	}
	return timeutil.NowInstant(b.clock)
}

// Publish hands env to every handler and waits for all of them. Handler
// failures do not stop the other handlers; they are joined into the returned error.
func (b *Bus) Publish(ctx context.Context, env caliper.Envelope) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := append([]registration(nil), b.handlers...)
	b.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return shared.WrapError("sensor", "Publish", shared.ErrTimeout, "context done before dispatch", err)
	}

	if b.metrics != nil {
		b.metrics.RecordPublish(env)
	}

	if len(handlers) == 0 {
		b.log.Debug("no handlers for envelope", logger.Int("events", len(env.Data)))
		return nil
	}

	errs := make([]error, len(handlers))
	var g errgroup.Group
	if b.maxConcurrency > 0 {
		g.SetLimit(b.maxConcurrency)
	}
	for i, reg := range handlers {
		i, reg := i, reg
		g.Go(func() error {
			errs[i] = b.execute(ctx, env, reg)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// execute runs one handler, recovering panics into errors.
func (b *Bus) execute(ctx context.Context, env caliper.Envelope, reg registration) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		duration := time.Since(start)

		if b.metrics != nil {
			b.metrics.RecordHandlerExecution(reg.name, duration, err == nil)
		}
		if err != nil {
			b.log.Error("handler error",
				logger.String("handler", reg.name),
				logger.Latency(duration),
				logger.Err(err),
			)
			err = shared.WrapError("sensor", "Dispatch", shared.ErrHandlerFailed,
				fmt.Sprintf("handler %q failed", reg.name), err)
		}
	}()

	return reg.handler.Handle(ctx, env)
}

// ErrHandlerPanic is wrapped into the error of a handler that panicked.
var ErrHandlerPanic = errors.New("handler panicked")

// Close marks the bus closed. Publishing after Close fails with ErrEventBusClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.log.Debug("event bus closed")
	return nil
}

// Metrics returns the metrics tracker, or nil when metrics are disabled.
func (b *Bus) Metrics() *Metrics {
	return b.metrics
}

package messaging

import (
	"context"
	"sync"

	"github.com/alem-hub/caliper-fixtures/internal/domain/caliper"
	"github.com/alem-hub/caliper-fixtures/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORDER
// ══════════════════════════════════════════════════════════════════════════════

// Recorder keeps every envelope it receives. Safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	envelopes []caliper.Envelope
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handle implements Handler.
func (r *Recorder) Handle(_ context.Context, env caliper.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
	return nil
}

// Envelopes returns a copy of the recorded envelopes in arrival order.
func (r *Recorder) Envelopes() []caliper.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]caliper.Envelope(nil), r.envelopes...)
}

// Events returns the events of all recorded envelopes, flattened.
func (r *Recorder) Events() []caliper.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []caliper.Event
	for _, env := range r.envelopes {
		events = append(events, env.Data...)
	}
	return events
}

// Len returns the number of recorded envelopes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envelopes)
}

// Reset drops all recorded envelopes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Retrying re-runs h according to r when it fails with a retryable error.
func Retrying(h Handler, r *retry.Retrier) Handler {
	return HandlerFunc(func(ctx context.Context, env caliper.Envelope) error {
		return r.Do(ctx, func(ctx context.Context) error {
			return h.Handle(ctx, env)
		})
	})
}

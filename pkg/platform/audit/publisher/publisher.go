// Package publisher fans notifications into an audit.Store.
//
// In synchronous mode (the default) Emit blocks until the store accepts the
// event. WithAsyncBuffer moves non-funds events onto a bounded channel drained
// by a background goroutine; funds events are always written synchronously
// and their failure is returned to the caller.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "poolshare/pkg/domain"
	audit "poolshare/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit when the async buffer cannot accept an event.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher captures structured notifications. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics

	queue     chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery through a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan audit.Event, n)
		}
	}
}

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. The category is derived from the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	if p.queue == nil || event.Category == audit.CategoryFunds {
		return p.persist(ctx, event)
	}

	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.incDropped()
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, event dropped", "action", event.Action)
		}
		return ErrBufferFull
	}
}

// List returns the events recorded for a principal.
func (p *Publisher) List(ctx context.Context, principalID id.PrincipalID) ([]audit.Event, error) {
	return p.store.ListByPrincipal(ctx, principalID)
}

// Recent returns the most recent events across all principals.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close stops accepting async events and drains the buffer.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.queue {
		// Detached from the emitting request, which has usually returned.
		_ = p.persist(context.Background(), event)
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	start := time.Now()
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.incFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit persistence failed",
				"action", event.Action,
				"category", event.Category,
				"error", err,
			)
		}
		return err
	}
	p.metrics.observe(event.Category, time.Since(start))
	return nil
}

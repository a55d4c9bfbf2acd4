// Package worker relays outbox notifications to a stream sink.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"poolshare/pkg/platform/audit/publishers/kafka"
	"poolshare/pkg/platform/audit/store/postgres"
)

// Outbox is the subset of the postgres store the relay needs.
type Outbox interface {
	PendingBatch(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Sink receives relayed messages.
type Sink interface {
	Publish(ctx context.Context, msgs []kafka.Message) error
}

// Worker polls the outbox and forwards unpublished entries to the sink.
// Delivery is at-least-once: entries are marked only after the sink accepts them.
type Worker struct {
	outbox    Outbox
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// Option configures the Worker.
type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(outbox Outbox, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		sink:      sink,
		logger:    slog.Default(),
		interval:  time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled. A failed tick is logged and the batch is
// picked up again on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce forwards one batch and returns how many entries were published.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.PendingBatch(ctx, w.batchSize)
	if err != nil || len(entries) == 0 {
		return 0, err
	}

	msgs := make([]kafka.Message, len(entries))
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		msgs[i] = kafka.NewMessage(e.ID.String(), e.Event)
		ids[i] = e.ID
	}
	if err := w.sink.Publish(ctx, msgs); err != nil {
		return 0, err
	}
	if err := w.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
		return 0, err
	}
	return len(entries), nil
}

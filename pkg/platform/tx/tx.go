// Package tx provides the serialization boundary every state-changing
// operation runs inside.
//
// The ledger is a single, fully serialized state machine: RunInTx admits one
// operation at a time. Operations that move funds run through RunGuarded,
// which additionally marks the call chain. When such an operation hands the
// context to an external collaborator and that collaborator calls back into
// any guarded entry point, the nested call is rejected with CodeReentrantCall
// instead of deadlocking or observing intermediate state. Nested unguarded
// calls run inline without re-acquiring the lock.
//
// Collaborators must pass on the context they were given; a callback made on
// a fresh context is treated as an unrelated caller and waits its turn.
package tx

import (
	"context"
	"time"

	dErrors "poolshare/pkg/domain-errors"
)

// DefaultTimeout bounds lock wait plus execution when ctx has no deadline.
const DefaultTimeout = 5 * time.Second

type opKey struct{}

// opState travels in the context of the operation holding the lock.
type opState struct {
	guarded bool
}

// Serializer admits one operation at a time.
type Serializer struct {
	sem     chan struct{}
	timeout time.Duration
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Serializer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSerializer creates a serializer with an empty admission slot.
func NewSerializer(opts ...Option) *Serializer {
	s := &Serializer{
		sem:     make(chan struct{}, 1),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn as a serialized operation.
func (s *Serializer) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.run(ctx, false, fn)
}

// RunGuarded runs fn as a serialized, reentrancy-guarded operation.
func (s *Serializer) RunGuarded(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.run(ctx, true, fn)
}

// InFlight reports whether ctx belongs to an operation currently holding the lock.
func InFlight(ctx context.Context) bool {
	_, ok := ctx.Value(opKey{}).(*opState)
	return ok
}

func (s *Serializer) run(ctx context.Context, guarded bool, fn func(ctx context.Context) error) error {
	if st, ok := ctx.Value(opKey{}).(*opState); ok {
		return runNested(ctx, st, guarded, fn)
	}

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "operation aborted: waiting for ledger")
	}
	defer func() { <-s.sem }()

	st := &opState{guarded: guarded}
	return fn(context.WithValue(ctx, opKey{}, st))
}

func runNested(ctx context.Context, st *opState, guarded bool, fn func(ctx context.Context) error) error {
	if !guarded {
		return fn(ctx)
	}
	if st.guarded {
		return dErrors.New(dErrors.CodeReentrantCall, "reentrant call rejected")
	}
	st.guarded = true
	defer func() { st.guarded = false }()
	return fn(ctx)
}

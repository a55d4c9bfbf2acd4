package backend

import (
	"context"
	"slices"
	"sync"
)

// Recorder is an in-process backend for development and tests. It accepts
// every call unless an error is injected, and runs the optional hooks with
// the caller's context before answering.
type Recorder struct {
	mu            sync.Mutex
	payments      []Payment
	cancellations []Cancellation
	payErr        error
	cancelErr     error

	// OnPay runs before a payment is recorded. A non-nil error fails the call.
	OnPay func(ctx context.Context, p Payment) error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailPayments makes subsequent payments fail with err; nil restores success.
func (r *Recorder) FailPayments(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payErr = err
}

// FailCancellations makes subsequent cancellations fail with err.
func (r *Recorder) FailCancellations(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelErr = err
}

func (r *Recorder) PayService(ctx context.Context, p Payment) error {
	if r.OnPay != nil {
		if err := r.OnPay(ctx, p); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.payErr != nil {
		return r.payErr
	}
	r.payments = append(r.payments, p)
	return nil
}

func (r *Recorder) CancelAccess(_ context.Context, c Cancellation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelErr != nil {
		return r.cancelErr
	}
	r.cancellations = append(r.cancellations, c)
	return nil
}

func (r *Recorder) Payments() []Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.payments)
}

func (r *Recorder) Cancellations() []Cancellation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cancellations)
}

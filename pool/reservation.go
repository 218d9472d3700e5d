// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "context"

// Reservation is the future returned by Reserve. It completes once the
// pool is satisfied the caller may proceed to actually use the reserved
// bytes: immediately, if free capacity existed at call time, or later,
// once waiter drain reaches it.
//
// Reservation never supports cancellation: the bytes are already counted
// against the pool's ledger the instant Reserve returns, so cancelling
// mid-queue would desynchronize accounting from reality. Callers that
// give up must still Free the exact bytes they reserved.
type Reservation struct {
	done chan struct{}
}

func newReservation() *Reservation {
	return &Reservation{done: make(chan struct{})}
}

func completedReservation() *Reservation {
	r := &Reservation{done: make(chan struct{})}
	close(r.done)
	return r
}

// complete marks the reservation fulfilled. Safe to call while holding
// the pool lock: it never re-enters the pool and never blocks.
func (r *Reservation) complete() {
	close(r.done)
}

// Done returns true if the reservation has already completed.
func (r *Reservation) Done() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Await blocks until the reservation completes or ctx is done, whichever
// comes first. A context error does not free the underlying bytes; the
// caller is still responsible for calling Free.
func (r *Reservation) Await(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the reservation completes.
func (r *Reservation) Wait() {
	<-r.done
}

// Channel exposes the completion signal directly, for callers (such as a
// task/driver scheduler) that want to select on it alongside other
// events instead of calling Await.
func (r *Reservation) Channel() <-chan struct{} {
	return r.done
}

// Cancel always fails: see the Reservation doc comment.
func (r *Reservation) Cancel() error {
	return ErrCancellationUnsupported
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

// waiter is a single pending non-revocable reservation. Its bytes are
// already applied to the ledger; only the caller-visible future is
// pending. Waiters are never removed except by being drained in order,
// matching the spec's "no cancellation, no timeout" contract.
type waiter struct {
	task         TaskKey
	tag          Tag
	requestBytes uint64
	reservation  *Reservation
}

// waiterQueue is a strict FIFO of pending reserves, append at the tail,
// drained from the head. All access happens under the owning Pool's lock;
// waiterQueue itself does no locking.
type waiterQueue struct {
	items []*waiter
}

func (q *waiterQueue) push(w *waiter) {
	q.items = append(q.items, w)
}

func (q *waiterQueue) len() int {
	return len(q.items)
}

// front returns the head waiter without removing it, or nil if empty.
func (q *waiterQueue) front() *waiter {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// popFront removes and returns the head waiter.
func (q *waiterQueue) popFront() *waiter {
	w := q.items[0]
	// Avoid retaining the popped pointer in the backing array.
	q.items[0] = nil
	q.items = q.items[1:]
	return w
}

// queryIDs returns the distinct queries with at least one pending waiter,
// in no particular order. Used for the WaitingQueries dashboard view.
func (q *waiterQueue) queryIDs() []QueryID {
	seen := make(map[QueryID]struct{}, len(q.items))
	out := make([]QueryID, 0, len(q.items))
	for _, w := range q.items {
		if _, ok := seen[w.task.QueryID]; ok {
			continue
		}
		seen[w.task.QueryID] = struct{}{}
		out = append(out, w.task.QueryID)
	}
	return out
}

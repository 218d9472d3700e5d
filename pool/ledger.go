// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "time"

// Reserve records a reservation of bytes against task/tag and returns a
// future. The reservation is always applied to the ledger immediately —
// reserved_bytes, the per-task total, the per-query total and the
// per-task-tag total all advance by bytes before Reserve returns.
//
// The returned Reservation is already complete if the pool had enough
// non-revocable free capacity at the moment of the call; otherwise the
// request is appended to the waiter queue and the Reservation completes
// later, once Free (non-revocable or revocable) drains it. This is the
// pool's central contract: Reserve always succeeds at the accounting
// level, the future only communicates whether the caller may proceed to
// actually use the memory. Callers that want a hard no-overbook test
// should use TryReserve instead.
func (p *Pool) Reserve(task TaskKey, tag Tag, bytes uint64) *Reservation {
	p.mu.Lock()
	defer p.mu.Unlock()

	fits := p.reservedBytes+bytes+p.reservedRevocableBytes <= p.capacityBytes
	p.applyReserveLocked(task, tag, bytes)

	var res *Reservation
	if fits {
		res = completedReservation()
	} else {
		res = newReservation()
		p.waiters.push(&waiter{task: task, tag: tag, requestBytes: bytes, reservation: res})
		p.logger.Debug("memory reservation queued", "task", task.String(), "tag", string(tag), "bytes", bytes)
	}
	p.listeners.fire(EventMemoryReserved, p, task, tag, bytes, time.Now())
	return res
}

// TryReserve atomically tests whether the reservation fits within free
// capacity and, if so, applies it exactly as Reserve would (with an
// already-completed effect, never enqueuing a waiter) and returns true.
// If it does not fit, the ledger is left unchanged and false is returned.
func (p *Pool) TryReserve(task TaskKey, tag Tag, bytes uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reservedBytes+bytes+p.reservedRevocableBytes > p.capacityBytes {
		return false
	}
	p.applyReserveLocked(task, tag, bytes)
	p.listeners.fire(EventMemoryReserved, p, task, tag, bytes, time.Now())
	return true
}

func (p *Pool) applyReserveLocked(task TaskKey, tag Tag, bytes uint64) {
	addOverflowCheck(p.reservedBytes, bytes, "reserved_bytes")
	p.reservedBytes += bytes

	p.perTaskReserved[task] += bytes
	p.perQueryReserved[task.QueryID] += bytes

	tags := p.perTaskTags[task]
	if tags == nil {
		tags = make(map[Tag]uint64)
		p.perTaskTags[task] = tags
	}
	tags[tag] += bytes
}

// Free releases bytes previously reserved for task/tag. It decrements the
// per-task-tag, per-task and per-query counters and reserved_bytes, then
// drains the waiter queue while capacity permits. Freeing more than is
// reserved for the task, or for the tag within the task, fails with
// ErrOverFreeTask and leaves the ledger unchanged.
func (p *Pool) Free(task TaskKey, tag Tag, bytes uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	taskTotal, ok := p.perTaskReserved[task]
	if !ok || taskTotal < bytes {
		return ErrOverFreeTask
	}
	tags := p.perTaskTags[task]
	tagTotal, ok := tags[tag]
	if !ok || tagTotal < bytes {
		return ErrOverFreeTask
	}

	tags[tag] = tagTotal - bytes
	if tags[tag] == 0 {
		delete(tags, tag)
	}
	if len(tags) == 0 {
		delete(p.perTaskTags, task)
	}

	p.perTaskReserved[task] = taskTotal - bytes
	if p.perTaskReserved[task] == 0 {
		delete(p.perTaskReserved, task)
	}

	queryTotal := p.perQueryReserved[task.QueryID]
	p.perQueryReserved[task.QueryID] = queryTotal - bytes
	if p.perQueryReserved[task.QueryID] == 0 {
		delete(p.perQueryReserved, task.QueryID)
	}

	p.reservedBytes -= bytes

	p.listeners.fire(EventMemoryFreed, p, task, tag, bytes, time.Now())
	p.drainWaitersLocked()
	return nil
}

// drainWaitersLocked pops and completes waiters from the head of the
// queue while the pool has enough total capacity to cover everything
// reserved so far, in strict FIFO order. It stops at the first waiter
// that still cannot be satisfied.
func (p *Pool) drainWaitersLocked() {
	for {
		w := p.waiters.front()
		if w == nil {
			return
		}
		if p.reservedBytes+p.reservedRevocableBytes > p.capacityBytes {
			return
		}
		p.waiters.popFront()
		w.reservation.complete()
	}
}

// GetQueryMemoryReservations returns a point-in-time copy of every
// query's non-revocable reservation total. Queries with no active tasks
// do not appear.
func (p *Pool) GetQueryMemoryReservations() map[QueryID]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyQueryMap(p.perQueryReserved)
}

// GetQueryMemoryReservation returns a single query's non-revocable
// reservation total, or 0 if it has none.
func (p *Pool) GetQueryMemoryReservation(q QueryID) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perQueryReserved[q]
}

// GetTaskMemoryReservations returns a point-in-time copy of every task's
// non-revocable reservation total.
func (p *Pool) GetTaskMemoryReservations() map[TaskKey]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyTaskMap(p.perTaskReserved)
}

// GetTaskMemoryReservation returns a single task's non-revocable
// reservation total, or 0 if it has none.
func (p *Pool) GetTaskMemoryReservation(t TaskKey) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perTaskReserved[t]
}

// GetTaggedMemoryAllocations merges every task's per-tag ledger into a
// per-query view: QueryID -> (tag -> bytes). Queries with no active
// tasks do not appear.
func (p *Pool) GetTaggedMemoryAllocations() map[QueryID]map[Tag]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[QueryID]map[Tag]uint64, len(p.perQueryReserved))
	for task, tags := range p.perTaskTags {
		dst := out[task.QueryID]
		if dst == nil {
			dst = make(map[Tag]uint64, len(tags))
			out[task.QueryID] = dst
		}
		for tag, bytes := range tags {
			dst[tag] += bytes
		}
	}
	return out
}

func copyQueryMap(m map[QueryID]uint64) map[QueryID]uint64 {
	out := make(map[QueryID]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyTaskMap(m map[TaskKey]uint64) map[TaskKey]uint64 {
	out := make(map[TaskKey]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// addOverflowCheck panics if current+delta would wrap a 64-bit counter.
// The sum of real-world reservations overflowing a 64-bit byte counter
// is a fatal program invariant violation, not a recoverable error.
func addOverflowCheck(current, delta uint64, what string) {
	if current+delta < current {
		panic("pool: " + what + " overflowed a 64-bit counter")
	}
}

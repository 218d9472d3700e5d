// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "time"

// ReserveRevocable unconditionally records a revocable reservation for
// task. It never blocks and never fails for capacity reasons: the
// system's revocation policy is expected to keep total revocable bytes
// sensible by requesting revocation through RevokeFeed/RequestRevoke
// well before the pool would need to refuse non-revocable work.
func (p *Pool) ReserveRevocable(task TaskKey, bytes uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	addOverflowCheck(p.reservedRevocableBytes, bytes, "reserved_revocable_bytes")
	p.reservedRevocableBytes += bytes
	p.perTaskRevocable[task] += bytes
	p.perQueryRevocable[task.QueryID] += bytes

	p.listeners.fire(EventMemoryReserved, p, task, "", bytes, time.Now())
}

// TryReserveRevocable is the task-less, global form: it atomically tests
// whether reserved_bytes + reserved_revocable_bytes + bytes fits within
// capacity and, if so, adds bytes to global_revocable_bytes and
// reserved_revocable_bytes and returns true. Used by engine-level caches
// (exchanges, page caches) not attributable to a single task.
func (p *Pool) TryReserveRevocable(bytes uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reservedBytes+p.reservedRevocableBytes+bytes > p.capacityBytes {
		return false
	}
	addOverflowCheck(p.reservedRevocableBytes, bytes, "reserved_revocable_bytes")
	p.globalRevocableBytes += bytes
	p.reservedRevocableBytes += bytes

	p.listeners.fire(EventMemoryReserved, p, TaskKey{}, "", bytes, time.Now())
	return true
}

// FreeRevocable releases a task's revocable reservation. It fails with
// ErrOverFreeRevocable, leaving the ledger unchanged, if bytes exceeds
// what is reserved for the task. On success it triggers waiter drain,
// since revocable bytes occupy capacity from the non-revocable viewpoint.
func (p *Pool) FreeRevocable(task TaskKey, bytes uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	taskTotal, ok := p.perTaskRevocable[task]
	if !ok || taskTotal < bytes {
		return ErrOverFreeRevocable
	}

	p.perTaskRevocable[task] = taskTotal - bytes
	if p.perTaskRevocable[task] == 0 {
		delete(p.perTaskRevocable, task)
	}

	queryTotal := p.perQueryRevocable[task.QueryID]
	p.perQueryRevocable[task.QueryID] = queryTotal - bytes
	if p.perQueryRevocable[task.QueryID] == 0 {
		delete(p.perQueryRevocable, task.QueryID)
	}

	p.reservedRevocableBytes -= bytes

	p.listeners.fire(EventMemoryFreed, p, task, "", bytes, time.Now())
	p.drainWaitersLocked()
	return nil
}

// FreeGlobalRevocable releases bytes from the task-less global revocable
// counter, for callers that previously used TryReserveRevocable. It fails
// with ErrOverFreeRevocable if bytes exceeds global_revocable_bytes.
func (p *Pool) FreeGlobalRevocable(bytes uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.globalRevocableBytes < bytes {
		return ErrOverFreeRevocable
	}
	p.globalRevocableBytes -= bytes
	p.reservedRevocableBytes -= bytes

	p.listeners.fire(EventMemoryFreed, p, TaskKey{}, "", bytes, time.Now())
	p.drainWaitersLocked()
	return nil
}

// GetGlobalRevocableBytes returns the task-less revocable total.
func (p *Pool) GetGlobalRevocableBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.globalRevocableBytes
}

// GetQueryRevocableReservations returns a point-in-time copy of every
// query's revocable reservation total (global_revocable_bytes is not
// attributable to any query and is excluded).
func (p *Pool) GetQueryRevocableReservations() map[QueryID]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyQueryMap(p.perQueryRevocable)
}

// GetTaskRevocableReservations returns a point-in-time copy of every
// task's revocable reservation total.
func (p *Pool) GetTaskRevocableReservations() map[TaskKey]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyTaskMap(p.perTaskRevocable)
}

// RequestRevoke publishes a memory-revoking-requested event on the
// pool's RevokeFeed for the given task and amount. It is a thin
// convenience wrapper; the actual decision of which task to target is
// the revocation policy's, not the pool's.
func (p *Pool) RequestRevoke(task TaskKey, bytes uint64) {
	p.revoke.Send(RevokeRequest{Task: task, Bytes: bytes})
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool implements a shared, byte-budgeted memory pool for a
// distributed analytical query engine's worker node. A single Pool
// enforces a hard capacity across every concurrently running query and
// task, handing out reservations, blocking callers FIFO when the budget
// is exhausted, and tracking revocable memory that the system may ask a
// holder to give back.
//
// The pool does no I/O and makes no policy decisions about which query
// to block or revoke; it only maintains accurate accounting and exposes
// the primitives (Reserve, Free, ReserveRevocable, listeners) that
// policy code built on top of it uses.
package pool

import (
	"sync"

	querylog "github.com/skyquery/querymem/internal/log"
)

// Pool is the root entity: a fixed-capacity byte budget shared by every
// task running on a worker node. All exported methods are safe for
// concurrent use; a single mutex protects every ledger below.
type Pool struct {
	mu sync.Mutex

	capacityBytes uint64

	// Non-revocable accounting ledger.
	reservedBytes     uint64
	perTaskReserved   map[TaskKey]uint64
	perQueryReserved  map[QueryID]uint64
	perTaskTags       map[TaskKey]map[Tag]uint64

	// Revocable ledger: independent bookkeeping, never blocks on its own.
	reservedRevocableBytes uint64
	perTaskRevocable       map[TaskKey]uint64
	perQueryRevocable      map[QueryID]uint64
	globalRevocableBytes   uint64

	waiters   waiterQueue
	listeners *listenerRegistry
	revoke    *RevokeFeed

	logger querylog.Logger
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithLogger overrides the pool's logger. By default it uses the root
// logger from internal/log, matching the teacher's convention of
// falling back to a package-level default logger when none is supplied.
func WithLogger(l querylog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a Pool with a fixed, positive capacity. Capacity is
// immutable for the life of the Pool.
func NewPool(capacityBytes uint64, opts ...Option) *Pool {
	if capacityBytes == 0 {
		panic("pool: capacity_bytes must be positive")
	}
	p := &Pool{
		capacityBytes:     capacityBytes,
		perTaskReserved:   make(map[TaskKey]uint64),
		perQueryReserved:  make(map[QueryID]uint64),
		perTaskTags:       make(map[TaskKey]map[Tag]uint64),
		perTaskRevocable:  make(map[TaskKey]uint64),
		perQueryRevocable: make(map[QueryID]uint64),
		listeners:         newListenerRegistry(),
		revoke:            newRevokeFeed(),
		logger:            querylog.Root(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CapacityBytes returns the pool's immutable capacity.
func (p *Pool) CapacityBytes() uint64 {
	return p.capacityBytes
}

// GetReservedBytes returns the current non-revocable reserved total.
func (p *Pool) GetReservedBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reservedBytes
}

// GetReservedRevocableBytes returns the current revocable reserved total.
func (p *Pool) GetReservedRevocableBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reservedRevocableBytes
}

// GetFreeBytes returns capacity_bytes - reserved_bytes -
// reserved_revocable_bytes. This may be zero or negative in the signed
// sense; it is returned as an int64 so callers can observe transient
// oversubscription caused by outstanding revocable reservations.
func (p *Pool) GetFreeBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freeBytesLocked()
}

func (p *Pool) freeBytesLocked() int64 {
	return int64(p.capacityBytes) - int64(p.reservedBytes) - int64(p.reservedRevocableBytes)
}

// Listen registers l for events of the given kind and returns an
// identity token for later Unlisten calls. Listeners are invoked
// synchronously, under the pool lock, in registration order; see the
// Listener doc comment for the reentrancy contract.
func (p *Pool) Listen(kind EventKind, l Listener) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listeners.register(kind, l)
}

// Unlisten removes a previously registered listener by identity.
// Best-effort: an unknown id is a no-op.
func (p *Pool) Unlisten(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners.deregister(id)
}

// RecentEvents returns up to n most recently recorded reserve/free
// events, oldest first, for operational introspection. n <= 0 returns
// every retained event (bounded by an internal ring buffer capacity).
func (p *Pool) RecentEvents(n int) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listeners.recentEvents(n)
}

// RevokeFeed returns the pool's asynchronous memory-revoking-requested
// feed. The spill subsystem (or any other external collaborator)
// subscribes to it to learn when the pool wants revocable bytes back.
// Unlike the synchronous Listener registry, delivery here happens on a
// goroutine the Pool itself does not own, so subscribers may safely call
// back into the Pool.
func (p *Pool) RevokeFeed() *RevokeFeed {
	return p.revoke
}

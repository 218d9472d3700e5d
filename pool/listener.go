// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// EventKind selects which mutation a Listener wants to observe.
type EventKind int

const (
	// EventMemoryReserved fires after any reserve (revocable or not)
	// is applied to the ledger, including ones that enqueue a waiter.
	EventMemoryReserved EventKind = iota
	// EventMemoryFreed fires after any free (revocable or not) is
	// applied to the ledger, whether or not it drained any waiters.
	EventMemoryFreed
)

func (k EventKind) String() string {
	switch k {
	case EventMemoryReserved:
		return "memory-reserved"
	case EventMemoryFreed:
		return "memory-freed"
	default:
		return "unknown"
	}
}

// Listener observes pool mutations. OnEvent is invoked synchronously,
// either under the pool's lock or immediately after it releases (the
// Pool documents which); either way the listener sees a Pool state no
// earlier than the mutation that triggered the call, and calls are
// delivered in the order the mutations were applied, so a later call
// never observes an older ledger state than an earlier one did.
//
// Listeners must be short, non-blocking, and must not call back into the
// Pool: the pool does not support reentrant calls from inside a
// listener callback.
type Listener interface {
	OnEvent(kind EventKind, p *Pool)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(kind EventKind, p *Pool)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(kind EventKind, p *Pool) { f(kind, p) }

type registeredListener struct {
	id       int
	kind     EventKind
	listener Listener
}

// listenerRegistry fans out reserve/free notifications to registered
// observers, in registration order, and keeps a bounded ring buffer of
// recent events for operational introspection (thread dumps, dashboards).
type listenerRegistry struct {
	nextID    int
	listeners []registeredListener
	recent    *lru.Cache // sequence number -> Event, bounded
	seq       uint64
}

// Event is a single recorded mutation, used by RecentEvents for
// diagnostics. It is a value type so snapshots are safe to hand to
// callers without aliasing pool-owned state.
type Event struct {
	Seq                    uint64
	Kind                   EventKind
	At                     time.Time
	Task                   TaskKey
	Tag                    Tag
	Bytes                  uint64
	ReservedBytes          uint64
	ReservedRevocableBytes uint64
}

const defaultRecentEventCapacity = 256

func newListenerRegistry() *listenerRegistry {
	cache, err := lru.New(defaultRecentEventCapacity)
	if err != nil {
		// lru.New only errors on a non-positive size; the constant above
		// is fixed and positive, so this is unreachable in practice.
		panic(err)
	}
	return &listenerRegistry{recent: cache}
}

// register adds a listener for the given event kind and returns an
// identity token that can later be passed to deregister.
func (r *listenerRegistry) register(kind EventKind, l Listener) int {
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, registeredListener{id: id, kind: kind, listener: l})
	return id
}

// deregister removes a previously registered listener by identity,
// best-effort: a missing id is a no-op.
func (r *listenerRegistry) deregister(id int) {
	for i, rl := range r.listeners {
		if rl.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// fire records the event and invokes every listener registered for kind,
// in registration order. A listener that panics is swallowed and logged
// so it cannot corrupt ledger state or abort the reserve/free that
// triggered it; the ledger mutation has already happened by the time
// fire is called.
func (r *listenerRegistry) fire(kind EventKind, p *Pool, task TaskKey, tag Tag, bytes uint64, now time.Time) {
	r.seq++
	ev := Event{
		Seq:                    r.seq,
		Kind:                   kind,
		At:                     now,
		Task:                   task,
		Tag:                    tag,
		Bytes:                  bytes,
		ReservedBytes:          p.reservedBytes,
		ReservedRevocableBytes: p.reservedRevocableBytes,
	}
	r.recent.Add(ev.Seq, ev)

	for _, rl := range r.listeners {
		if rl.kind != kind {
			continue
		}
		r.invoke(rl.listener, kind, p)
	}
}

func (r *listenerRegistry) invoke(l Listener, kind EventKind, p *Pool) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("memory pool listener panicked", "kind", kind.String(), "panic", rec)
		}
	}()
	l.OnEvent(kind, p)
}

// recentEvents returns up to n most recently recorded events, oldest
// first. n <= 0 returns all retained events.
func (r *listenerRegistry) recentEvents(n int) []Event {
	keys := r.recent.Keys()
	out := make([]Event, 0, len(keys))
	for _, k := range keys {
		if v, ok := r.recent.Peek(k); ok {
			out = append(out, v.(Event))
		}
	}
	// lru.Cache.Keys() is returned oldest-first already.
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

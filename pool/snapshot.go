// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import mapset "github.com/deckarep/golang-set/v2"

// WaitingQueries returns the set of queries with at least one task
// currently parked on the waiter queue. This is a sanity/dashboard view:
// if one query ever hogs every waiter slot, it shows up here immediately,
// the same way the teacher tracks per-subpool reservation gauges purely
// to catch mis-accounting bugs (see reservationsGaugeName in
// core/txpool/txpool.go).
func (p *Pool) WaitingQueries() mapset.Set[QueryID] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return mapset.NewThreadUnsafeSet(p.waiters.queryIDs()...)
}

// Snapshot is an immutable, JSON-serializable point-in-time summary of
// the whole pool, intended for operational tooling (thread dumps on an
// out-of-memory kill, a dashboard's detail view) that wants one call
// instead of stitching together several accessor calls under
// inconsistent locks.
type Snapshot struct {
	CapacityBytes          uint64                    `json:"capacity_bytes"`
	ReservedBytes          uint64                    `json:"reserved_bytes"`
	ReservedRevocableBytes uint64                    `json:"reserved_revocable_bytes"`
	GlobalRevocableBytes   uint64                    `json:"global_revocable_bytes"`
	FreeBytes              int64                     `json:"free_bytes"`
	Waiters                int                       `json:"waiters"`
	QueryReservations      map[QueryID]uint64        `json:"query_reservations"`
	QueryRevocable         map[QueryID]uint64        `json:"query_revocable"`
	TaggedAllocations      map[QueryID]map[Tag]uint64 `json:"tagged_allocations"`
}

// Snapshot takes a single consistent copy of every ledger under one lock
// acquisition.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	tagged := make(map[QueryID]map[Tag]uint64, len(p.perQueryReserved))
	for task, tags := range p.perTaskTags {
		dst := tagged[task.QueryID]
		if dst == nil {
			dst = make(map[Tag]uint64, len(tags))
			tagged[task.QueryID] = dst
		}
		for tag, bytes := range tags {
			dst[tag] += bytes
		}
	}

	return Snapshot{
		CapacityBytes:          p.capacityBytes,
		ReservedBytes:          p.reservedBytes,
		ReservedRevocableBytes: p.reservedRevocableBytes,
		GlobalRevocableBytes:   p.globalRevocableBytes,
		FreeBytes:              p.freeBytesLocked(),
		Waiters:                p.waiters.len(),
		QueryReservations:      copyQueryMap(p.perQueryReserved),
		QueryRevocable:         copyQueryMap(p.perQueryRevocable),
		TaggedAllocations:      tagged,
	}
}

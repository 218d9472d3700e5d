// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/time/rate"

	querylog "github.com/skyquery/querymem/internal/log"
	"github.com/skyquery/querymem/pool"
	"github.com/skyquery/querymem/pool/bexprquery"
)

var tags = []pool.Tag{"scan", "hash-build", "hash-probe", "sort-run", "shuffle-buffer"}

// runSimulation spawns cfg.Queries*cfg.TasksPerQuery goroutines, each
// looping reserve-hold-free against p until cfg.Duration elapses. Arrivals
// across all goroutines are shaped by a single golang.org/x/time/rate
// limiter so --arrivals-per-sec bounds the whole workload, not each task
// independently.
func runSimulation(ctx context.Context, p *pool.Pool, cfg Config) error {
	d, err := time.ParseDuration(cfg.Duration)
	if err != nil {
		return fmt.Errorf("invalid --duration: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(cfg.ArrivalsPerSec), int(cfg.ArrivalsPerSec)+1)

	seen := mapset.NewThreadUnsafeSet[pool.QueryID]()
	var seenMu sync.Mutex
	var reservations, queued int64
	var counterMu sync.Mutex

	p.Listen(pool.EventMemoryReserved, pool.ListenerFunc(func(kind pool.EventKind, _ *pool.Pool) {
		counterMu.Lock()
		reservations++
		counterMu.Unlock()
	}))

	var wg sync.WaitGroup
	for qi := 0; qi < cfg.Queries; qi++ {
		queryID := pool.QueryID(fmt.Sprintf("q-%d", qi))
		for ti := 0; ti < cfg.TasksPerQuery; ti++ {
			task := pool.TaskKey{QueryID: queryID, StageIndex: 0, TaskIndex: ti, AttemptIndex: 0}
			wg.Add(1)
			go func(task pool.TaskKey) {
				defer wg.Done()
				runTask(ctx, p, limiter, task, &seenMu, seen, &counterMu, &queued)
			}(task)
		}
	}
	wg.Wait()

	querylog.Info("simulation complete",
		"queries", cfg.Queries,
		"tasks_per_query", cfg.TasksPerQuery,
		"distinct_queries_seen", seen.Cardinality(),
		"reservation_events", reservations,
		"queued_reservations", queued,
	)
	return nil
}

func runTask(
	ctx context.Context,
	p *pool.Pool,
	limiter *rate.Limiter,
	task pool.TaskKey,
	seenMu *sync.Mutex,
	seen mapset.Set[pool.QueryID],
	counterMu *sync.Mutex,
	queued *int64,
) {
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		seenMu.Lock()
		seen.Add(task.QueryID)
		seenMu.Unlock()

		tag := tags[rand.Intn(len(tags))]
		bytes := uint64(1+rand.Intn(1<<20)) // up to 1MiB

		res := p.Reserve(task, tag, bytes)
		if !res.Done() {
			counterMu.Lock()
			*queued++
			counterMu.Unlock()
		}
		if err := res.Await(ctx); err != nil {
			// Reserve already committed these bytes to the ledger
			// regardless of queueing, so giving up still requires Free.
			_ = p.Free(task, tag, bytes)
			return
		}

		holdFor := time.Duration(rand.Intn(5)) * time.Millisecond
		select {
		case <-time.After(holdFor):
		case <-ctx.Done():
			_ = p.Free(task, tag, bytes)
			return
		}

		if err := p.Free(task, tag, bytes); err != nil {
			querylog.Error("unexpected free error", "task", task.String(), "tag", string(tag), "err", err)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// dumpSnapshot prints the pool's final accounting and, if requested, the
// most recent events and a bexpr-filtered view of the tagged allocations.
func dumpSnapshot(p *pool.Pool, cfg Config) error {
	snap := p.Snapshot()
	fmt.Printf("capacity_bytes=%d reserved_bytes=%d reserved_revocable_bytes=%d free_bytes=%d waiters=%d\n",
		snap.CapacityBytes, snap.ReservedBytes, snap.ReservedRevocableBytes, snap.FreeBytes, snap.Waiters)

	rows := bexprquery.RowsFromSnapshot(snap)
	if cfg.FilterExpr != "" {
		filtered, err := bexprquery.Filter(cfg.FilterExpr, rows)
		if err != nil {
			return fmt.Errorf("invalid --filter: %w", err)
		}
		rows = filtered
	}
	for _, r := range rows {
		fmt.Printf("  query=%s tag=%s bytes=%d\n", r.Query, r.Tag, r.Bytes)
	}

	if cfg.DumpRecentEvents > 0 {
		for _, ev := range p.RecentEvents(cfg.DumpRecentEvents) {
			fmt.Printf("  event seq=%d kind=%s task=%s tag=%s bytes=%d reserved=%d revocable=%d at=%s\n",
				ev.Seq, ev.Kind, ev.Task.String(), ev.Tag, ev.Bytes, ev.ReservedBytes, ev.ReservedRevocableBytes, ev.At.Format(time.RFC3339Nano))
		}
	}
	return nil
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bexprquery lets operational tooling (dashboards, CLI
// debugging) filter a memory pool's reservation snapshot with a single
// boolean expression string instead of hand-writing Go predicates, e.g.
// `bytes > 1000000 and tag == "hash-build"`. It is a thin wrapper around
// github.com/hashicorp/go-bexpr.
package bexprquery

import (
	"github.com/hashicorp/go-bexpr"

	"github.com/skyquery/querymem/pool"
)

// Row is one (query, task, tag) reservation line, the unit bexpr
// expressions are evaluated against.
type Row struct {
	Query string `bexpr:"query"`
	Task  string `bexpr:"task"`
	Tag   string `bexpr:"tag"`
	Bytes uint64 `bexpr:"bytes"`
}

// RowsFromSnapshot flattens a pool.Snapshot's tagged allocations into
// filterable rows. Task is always empty, since a Snapshot only carries
// query-level aggregates; use RowsFromTagLedger for task-level detail.
func RowsFromSnapshot(snap pool.Snapshot) []Row {
	rows := make([]Row, 0, len(snap.TaggedAllocations))
	for query, tags := range snap.TaggedAllocations {
		for tag, bytes := range tags {
			rows = append(rows, Row{Query: string(query), Tag: string(tag), Bytes: bytes})
		}
	}
	return rows
}

// RowsFromTagLedger flattens GetTaggedMemoryAllocations-shaped data
// together with the owning task, for callers that kept the per-task
// detail (the pool itself only exposes the query-merged view).
func RowsFromTagLedger(byTask map[pool.TaskKey]map[pool.Tag]uint64) []Row {
	rows := make([]Row, 0, len(byTask))
	for task, tags := range byTask {
		for tag, bytes := range tags {
			rows = append(rows, Row{
				Query: string(task.QueryID),
				Task:  task.String(),
				Tag:   string(tag),
				Bytes: bytes,
			})
		}
	}
	return rows
}

// Filter evaluates expr against every row and returns those that match.
// expr uses go-bexpr syntax, e.g. `bytes > 1048576`, `tag == "sort-run"`,
// `query == "q-1" and bytes > 0`.
func Filter(expr string, rows []Row) ([]Row, error) {
	eval, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, r := range rows {
		matched, err := eval.Evaluate(r)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, r)
		}
	}
	return out, nil
}

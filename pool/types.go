// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "fmt"

// QueryID identifies a query submitted to the engine. A query contains
// many tasks; the pool aggregates task reservations into query totals.
type QueryID string

// Tag is a caller-supplied short string naming an allocation site, e.g.
// "hash-build" or "sort-run". The pool never interprets it.
type Tag string

// TaskKey is an opaque value identifying a single task attempt. The pool
// only inspects QueryID, to aggregate task reservations into query
// totals; StageIndex, TaskIndex and AttemptIndex exist purely for the
// caller's own bookkeeping and equality comparisons.
type TaskKey struct {
	QueryID      QueryID
	StageIndex   int
	TaskIndex    int
	AttemptIndex int
}

// String renders the key in "query/stage.task#attempt" form, used in log
// lines and panic messages.
func (k TaskKey) String() string {
	return fmt.Sprintf("%s/%d.%d#%d", k.QueryID, k.StageIndex, k.TaskIndex, k.AttemptIndex)
}

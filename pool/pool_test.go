// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func taskA(attempt int) TaskKey {
	return TaskKey{QueryID: "q-a", StageIndex: 0, TaskIndex: 0, AttemptIndex: attempt}
}

func TestNewPoolRejectsZeroCapacity(t *testing.T) {
	require.Panics(t, func() { NewPool(0) })
}

func TestReserveFitsImmediately(t *testing.T) {
	p := NewPool(1024)
	task := taskA(0)

	res := p.Reserve(task, "scan", 256)
	require.True(t, res.Done())
	require.Equal(t, uint64(256), p.GetReservedBytes())
	require.Equal(t, uint64(256), p.GetTaskMemoryReservation(task))
	require.Equal(t, uint64(256), p.GetQueryMemoryReservation(task.QueryID))
	require.EqualValues(t, 768, p.GetFreeBytes())
}

func TestReserveQueuesWhenOverCapacity(t *testing.T) {
	p := NewPool(100)
	first := taskA(0)
	second := TaskKey{QueryID: "q-b", StageIndex: 0, TaskIndex: 0}

	r1 := p.Reserve(first, "scan", 80)
	require.True(t, r1.Done())

	r2 := p.Reserve(second, "scan", 50)
	require.False(t, r2.Done())

	// Freeing the first reservation must drain the waiter FIFO.
	require.NoError(t, p.Free(first, "scan", 80))
	require.True(t, r2.Done())
	require.Equal(t, uint64(50), p.GetReservedBytes())
}

func TestTryReserveDoesNotMutateOnFailure(t *testing.T) {
	p := NewPool(100)
	task := taskA(0)

	require.True(t, p.TryReserve(task, "scan", 90))
	require.False(t, p.TryReserve(task, "scan", 20))
	require.Equal(t, uint64(90), p.GetReservedBytes())
	require.Equal(t, uint64(90), p.GetTaskMemoryReservation(task))
}

func TestFreeRejectsOverFree(t *testing.T) {
	p := NewPool(100)
	task := taskA(0)

	p.Reserve(task, "scan", 40)
	err := p.Free(task, "scan", 41)
	require.ErrorIs(t, err, ErrOverFreeTask)
	require.Equal(t, uint64(40), p.GetReservedBytes())

	err = p.Free(task, "other-tag", 1)
	require.ErrorIs(t, err, ErrOverFreeTask)
}

func TestFreeDeletesZeroedLedgerEntries(t *testing.T) {
	p := NewPool(100)
	task := taskA(0)

	p.Reserve(task, "scan", 40)
	require.NoError(t, p.Free(task, "scan", 40))

	require.Equal(t, uint64(0), p.GetTaskMemoryReservation(task))
	require.Empty(t, p.GetTaskMemoryReservations())
	require.Empty(t, p.GetQueryMemoryReservations())
	require.Empty(t, p.GetTaggedMemoryAllocations())
}

func TestTaggedAllocationsMergePerQuery(t *testing.T) {
	p := NewPool(1000)
	task1 := TaskKey{QueryID: "q", TaskIndex: 0}
	task2 := TaskKey{QueryID: "q", TaskIndex: 1}

	p.Reserve(task1, "scan", 10)
	p.Reserve(task2, "scan", 20)
	p.Reserve(task1, "hash-build", 5)

	tagged := p.GetTaggedMemoryAllocations()
	require.Equal(t, uint64(30), tagged["q"]["scan"])
	require.Equal(t, uint64(5), tagged["q"]["hash-build"])
}

func TestReservationAwaitRespectsContext(t *testing.T) {
	p := NewPool(10)
	first := taskA(0)
	second := TaskKey{QueryID: "q-b"}

	p.Reserve(first, "scan", 10)
	res := p.Reserve(second, "scan", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := res.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReservationCancelUnsupported(t *testing.T) {
	p := NewPool(10)
	res := p.Reserve(taskA(0), "scan", 1)
	require.ErrorIs(t, res.Cancel(), ErrCancellationUnsupported)
}

func TestSnapshotReflectsLedgerState(t *testing.T) {
	p := NewPool(1000)
	task := taskA(0)
	p.Reserve(task, "scan", 100)
	p.ReserveRevocable(task, 50)

	snap := p.Snapshot()
	require.Equal(t, uint64(1000), snap.CapacityBytes)
	require.Equal(t, uint64(100), snap.ReservedBytes)
	require.Equal(t, uint64(50), snap.ReservedRevocableBytes)
	require.EqualValues(t, 850, snap.FreeBytes)
	require.Equal(t, uint64(100), snap.QueryReservations["q-a"])
	require.Equal(t, uint64(50), snap.QueryRevocable["q-a"])
}

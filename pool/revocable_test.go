// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReserveRevocableNeverBlocks(t *testing.T) {
	p := NewPool(100)
	task := taskA(0)

	p.ReserveRevocable(task, 500) // far over capacity, still succeeds
	require.Equal(t, uint64(500), p.GetReservedRevocableBytes())
	require.Equal(t, uint64(500), p.GetTaskRevocableReservations()[task])
	require.EqualValues(t, -400, p.GetFreeBytes())
}

func TestGlobalRevocableBlocksNonRevocableReserve(t *testing.T) {
	p := NewPool(100)

	require.True(t, p.TryReserveRevocable(90))
	require.Equal(t, uint64(90), p.GetGlobalRevocableBytes())

	// Only 10 bytes of headroom remain once revocable is accounted for.
	require.False(t, p.TryReserve(taskA(0), "scan", 20))
	require.True(t, p.TryReserve(taskA(0), "scan", 10))
}

func TestFreeRevocableDrainsWaiters(t *testing.T) {
	p := NewPool(100)
	task := taskA(0)

	p.ReserveRevocable(task, 90)
	waiterTask := TaskKey{QueryID: "q-b"}
	res := p.Reserve(waiterTask, "scan", 20)
	require.False(t, res.Done())

	require.NoError(t, p.FreeRevocable(task, 90))
	require.True(t, res.Done())
}

func TestFreeRevocableRejectsOverFree(t *testing.T) {
	p := NewPool(100)
	task := taskA(0)
	p.ReserveRevocable(task, 10)

	err := p.FreeRevocable(task, 11)
	require.ErrorIs(t, err, ErrOverFreeRevocable)
	require.Equal(t, uint64(10), p.GetTaskRevocableReservations()[task])
}

func TestFreeGlobalRevocableRoundTrip(t *testing.T) {
	p := NewPool(100)
	require.True(t, p.TryReserveRevocable(40))
	require.NoError(t, p.FreeGlobalRevocable(40))
	require.Equal(t, uint64(0), p.GetGlobalRevocableBytes())
	require.Equal(t, uint64(0), p.GetReservedRevocableBytes())

	err := p.FreeGlobalRevocable(1)
	require.ErrorIs(t, err, ErrOverFreeRevocable)
}

func TestRequestRevokePublishesOnFeed(t *testing.T) {
	p := NewPool(100)
	ch, unsubscribe := p.RevokeFeed().Subscribe(1)
	defer unsubscribe()

	p.RequestRevoke(taskA(0), 50)

	select {
	case req := <-ch:
		require.Equal(t, taskA(0), req.Task)
		require.Equal(t, uint64(50), req.Bytes)
	default:
		t.Fatal("expected a revoke request on the feed")
	}
}

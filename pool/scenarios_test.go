// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	"github.com/stretchr/testify/require"
)

var _ = Describe("tagged allocation accounting", func() {
	It("tracks tag totals through interleaved reserve/free", func() {
		r := require.New(GinkgoT())
		p := NewPool(1000)
		task := TaskKey{QueryID: "q", TaskIndex: 0}

		p.Reserve(task, "a", 10)
		r.Equal(map[Tag]uint64{"a": 10}, p.GetTaggedMemoryAllocations()["q"])

		r.NoError(p.Free(task, "a", 5))
		r.Equal(map[Tag]uint64{"a": 5}, p.GetTaggedMemoryAllocations()["q"])

		p.Reserve(task, "b", 20)
		r.Equal(map[Tag]uint64{"a": 5, "b": 20}, p.GetTaggedMemoryAllocations()["q"])

		r.NoError(p.Free(task, "a", 5))
		r.Equal(map[Tag]uint64{"b": 20}, p.GetTaggedMemoryAllocations()["q"])

		r.NoError(p.Free(task, "b", 20))
		_, present := p.GetTaggedMemoryAllocations()["q"]
		r.False(present)
	})
})

var _ = Describe("per-task rollup", func() {
	It("keeps query totals consistent with task totals and rejects over-free", func() {
		r := require.New(GinkgoT())
		p := NewPool(1000)
		q1t1 := TaskKey{QueryID: "query1", TaskIndex: 1}
		q1t2 := TaskKey{QueryID: "query1", TaskIndex: 2}
		q2t1 := TaskKey{QueryID: "query2", TaskIndex: 1}

		p.Reserve(q1t1, "x", 10)
		p.Reserve(q1t2, "x", 7)
		p.Reserve(q2t1, "x", 9)

		r.Equal(uint64(17), p.GetQueryMemoryReservation("query1"))
		r.Equal(uint64(9), p.GetQueryMemoryReservation("query2"))
		r.Len(p.GetTaskMemoryReservations(), 3)

		p.Reserve(q1t1, "x", 3)
		r.Equal(uint64(20), p.GetQueryMemoryReservation("query1"))
		r.Equal(uint64(13), p.GetTaskMemoryReservation(q1t1))

		r.NoError(p.Free(q1t1, "x", 5))
		r.Equal(uint64(15), p.GetQueryMemoryReservation("query1"))
		r.Equal(uint64(8), p.GetTaskMemoryReservation(q1t1))

		before := p.GetTaskMemoryReservation(q1t1)
		err := p.Free(q1t1, "x", 9)
		r.ErrorIs(err, ErrOverFreeTask)
		r.Equal(before, p.GetTaskMemoryReservation(q1t1))

		r.NoError(p.Free(q1t1, "x", 8))
		_, present := p.GetTaskMemoryReservations()[q1t1]
		r.False(present)
		r.Equal(uint64(7), p.GetQueryMemoryReservation("query1"))
	})
})

var _ = Describe("waiter FIFO and wake", func() {
	It("queues a reserve that exceeds capacity and wakes it once enough is freed", func() {
		r := require.New(GinkgoT())
		const mb = 1 << 20
		p := NewPool(10 * mb)
		task := TaskKey{QueryID: "q"}

		r.True(p.TryReserve(task, "hold", 10*mb-2))

		pending := p.Reserve(task, "hold", 10*mb)
		r.False(pending.Done())

		r.ErrorIs(pending.Cancel(), ErrCancellationUnsupported)

		r.NoError(p.Free(task, "hold", 10*mb-2))
		r.True(pending.Done())
		r.Equal(uint64(10*mb), p.GetReservedBytes())
	})
})

var _ = Describe("global revocable blocks non-revocable", func() {
	It("lets free_revocable unblock a pending non-revocable reserve", func() {
		r := require.New(GinkgoT())
		p := NewPool(1000)

		r.True(p.TryReserveRevocable(999))
		r.False(p.TryReserveRevocable(2))

		task := TaskKey{QueryID: "q"}
		pending := p.Reserve(task, "tag", 2)
		r.False(pending.Done())

		r.NoError(p.FreeGlobalRevocable(999))
		r.True(pending.Done())
		r.Equal(uint64(2), p.GetReservedBytes())
		r.Equal(uint64(0), p.GetReservedRevocableBytes())
	})
})

var _ = Describe("revocable-to-free transition via revoke", func() {
	It("drains an operator's revocable pages in response to revoke requests", func() {
		r := require.New(GinkgoT())
		const mb = 1 << 20
		p := NewPool(10 * mb)
		testTask := TaskKey{QueryID: "test"}
		operatorTask := TaskKey{QueryID: "operator"}

		r.True(p.TryReserve(testTask, "test", 10*mb-2))

		const pageSize = 1
		pagesGranted := 0
		for i := 0; i < 8; i++ {
			p.ReserveRevocable(operatorTask, pageSize)
			pagesGranted++
		}

		ch, unsubscribe := p.RevokeFeed().Subscribe(1)
		defer unsubscribe()

		p.RequestRevoke(operatorTask, uint64(pagesGranted))

		select {
		case req := <-ch:
			r.NoError(p.FreeRevocable(req.Task, req.Bytes))
		case <-time.After(time.Second):
			r.Fail("expected a revoke request")
		}

		r.EqualValues(2, p.GetFreeBytes())
	})
})

var _ = Describe("listener notification", func() {
	It("observes reserved_bytes at the moment reserve fires", func() {
		r := require.New(GinkgoT())
		p := NewPool(1000)

		observed := make(chan uint64, 1)
		p.Listen(EventMemoryReserved, ListenerFunc(func(_ EventKind, observedPool *Pool) {
			// OnEvent fires under the pool's lock, so read the field
			// directly rather than through a locking accessor.
			observed <- observedPool.reservedBytes
		}))

		p.Reserve(TaskKey{QueryID: "q"}, "test", 3)

		select {
		case bytes := <-observed:
			r.Equal(uint64(3), bytes)
		case <-time.After(time.Second):
			r.Fail("listener was never invoked")
		}
	})
})

var _ = Describe("reservation context cancellation", func() {
	It("does not complete a waiter just because its caller gave up", func() {
		r := require.New(GinkgoT())
		p := NewPool(10)
		p.Reserve(TaskKey{QueryID: "blocker"}, "x", 10)
		pending := p.Reserve(TaskKey{QueryID: "q"}, "x", 1)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		r.ErrorIs(pending.Await(ctx), context.DeadlineExceeded)
		r.False(pending.Done())
	})
})

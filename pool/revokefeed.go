// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "sync"

// RevokeRequest is sent on a Pool's RevokeFeed when the pool (or a policy
// built on top of it) wants a task's revocable bytes back. Task is the
// zero TaskKey when the request targets the task-less global revocable
// pool rather than a specific task.
type RevokeRequest struct {
	Task  TaskKey
	Bytes uint64
}

// RevokeFeed is a minimal multi-subscriber fan-out for
// memory-revoking-requested notifications, in the spirit of the
// teacher's event.Feed (core/txpool/txpool.go: reorgFeed), implemented
// locally so the spill-subsystem collaborator can observe revoke
// requests from its own goroutine without synchronous coupling to the
// Pool's lock. Unlike the Listener registry, Send never runs under the
// pool mutex and delivery is asynchronous per subscriber.
type RevokeFeed struct {
	mu   sync.Mutex
	subs map[int]chan RevokeRequest
	next int
}

func newRevokeFeed() *RevokeFeed {
	return &RevokeFeed{subs: make(map[int]chan RevokeRequest)}
}

// Subscribe returns a channel that receives every RevokeRequest sent
// after this call, and an unsubscribe function. The channel is buffered
// so a slow subscriber cannot stall the sender; a subscriber that falls
// more than bufferSize requests behind drops the oldest pending request
// rather than blocking Send.
func (f *RevokeFeed) Subscribe(bufferSize int) (ch <-chan RevokeRequest, unsubscribe func()) {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	f.mu.Lock()
	id := f.next
	f.next++
	c := make(chan RevokeRequest, bufferSize)
	f.subs[id] = c
	f.mu.Unlock()

	return c, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
}

// Send delivers req to every current subscriber and returns the number
// of subscribers it was delivered to. A subscriber whose buffer is full
// has its oldest pending request dropped to make room, so Send never
// blocks on a slow consumer.
func (f *RevokeFeed) Send(req RevokeRequest) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for _, c := range f.subs {
		select {
		case c <- req:
			delivered++
		default:
			select {
			case <-c:
			default:
			}
			select {
			case c <- req:
				delivered++
			default:
			}
		}
	}
	return delivered
}

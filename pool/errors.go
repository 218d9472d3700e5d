// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "errors"

// Contractual error strings. Tests (and callers in other languages ported
// against the same specification) check these literally, so the wording
// must not drift.
var (
	// ErrOverFreeTask is returned by Free when bytes exceeds what is
	// reserved for the given task/tag.
	ErrOverFreeTask = errors.New("tried to free more memory than is reserved by task")

	// ErrOverFreeRevocable is returned by FreeRevocable when bytes exceeds
	// what is reserved, revocably, for the given task.
	ErrOverFreeRevocable = errors.New("tried to free more revocable memory than is reserved by task")

	// ErrCancellationUnsupported is returned by Reservation.Cancel. A
	// reservation is applied to the ledger the moment Reserve is called;
	// allowing cancellation mid-queue would desynchronize the ledger from
	// reality, so it is refused unconditionally.
	ErrCancellationUnsupported = errors.New("cancellation is not supported")
)

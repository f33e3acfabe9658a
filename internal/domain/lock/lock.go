package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock is held by another request")

// Locker hands out named mutual-exclusion leases that hold across processes.
type Locker interface {
	// Acquire blocks until the lease is taken, the wait budget runs out
	// (ErrNotAcquired) or ctx is done. Release is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// BorrowerKey is the lease name serializing one borrower's loan operations.
func BorrowerKey(borrowerID string) string { return "lock:borrower:" + borrowerID }

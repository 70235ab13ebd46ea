// Package locking serializes mutations of a workflow across goroutines and processes.
package locking

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when the lock could not be acquired before the context ended.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker acquires exclusive per-key locks. The returned release function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Package locker provides short-lived exclusive locks keyed by string.
package locker

import (
	"context"
	"errors"
	"time"
)

// ErrNotOwner is returned by Unlock when the key is held under another value.
var ErrNotOwner = errors.New("lock not owned by this client")

type Locker interface {
	// TryLock attempts to take key without waiting. On success it returns the
	// value that must be passed to Unlock.
	TryLock(ctx context.Context, key string, expiration time.Duration) (bool, string, error)
	// Unlock releases key only if it is still held under lockValue. Releasing
	// an expired lock is not an error.
	Unlock(ctx context.Context, key, lockValue string) error
}

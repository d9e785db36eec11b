package locker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type localEntry struct {
	value   string
	expires time.Time
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localEntry
	now   func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, expiration time.Duration) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, held := l.locks[key]; held && now.Before(entry.expires) {
		return false, "", nil
	}

	value := uuid.NewString()
	l.locks[key] = localEntry{value: value, expires: now.Add(expiration)}
	return true, value, nil
}

func (l *LocalLocker) Unlock(ctx context.Context, key, lockValue string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, held := l.locks[key]
	if !held {
		return nil
	}
	if entry.value != lockValue {
		if l.now().Before(entry.expires) {
			return ErrNotOwner
		}
		return nil
	}
	delete(l.locks, key)
	return nil
}

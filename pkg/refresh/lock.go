package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Lock is a held named lock.
type Lock interface {
	Key() string
}

// Locker is a named, non-blocking mutual-exclusion primitive. TryLock never
// waits: ok is false when someone else holds the key.
type Locker interface {
	TryLock(ctx context.Context, key string) (lock Lock, ok bool, err error)
	Unlock(ctx context.Context, lock Lock) error
}

// SnapshotLockKey names the lock that serialises snapshot construction.
func SnapshotLockKey(tf Timeframe, slotStart time.Time) string {
	return fmt.Sprintf("snapshot:%s:%d", tf, slotStart.UTC().Unix())
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker returns an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

type memoryLock string

func (l memoryLock) Key() string { return string(l) }

func (m *MemoryLocker) TryLock(ctx context.Context, key string) (Lock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, false, nil
	}
	m.held[key] = struct{}{}
	return memoryLock(key), true, nil
}

func (m *MemoryLocker) Unlock(ctx context.Context, lock Lock) error {
	if lock == nil {
		return errors.New("refresh: unlock nil lock")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[lock.Key()]; !ok {
		return fmt.Errorf("refresh: lock %s not held", lock.Key())
	}
	delete(m.held, lock.Key())
	return nil
}

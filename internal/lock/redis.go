package lock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"nof0-refresh/internal/cache"
	"nof0-refresh/pkg/refresh"
)

const defaultLease = 30 * time.Second

var _ refresh.Locker = (*RedisLocker)(nil)

// RedisLocker hands out leased Redis locks. A holder that dies releases the
// key when the lease expires.
type RedisLocker struct {
	store *redis.Redis
	lease int
}

// NewRedisLocker builds a RedisLocker. Leases are rounded up to whole seconds.
func NewRedisLocker(store *redis.Redis, lease time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("lock: redis store is required")
	}
	if lease <= 0 {
		lease = defaultLease
	}
	return &RedisLocker{
		store: store,
		lease: int(math.Ceil(lease.Seconds())),
	}, nil
}

type redisLock struct {
	key  string
	lock *redis.RedisLock
}

func (l *redisLock) Key() string { return l.key }

func (r *RedisLocker) TryLock(ctx context.Context, key string) (refresh.Lock, bool, error) {
	rl := redis.NewRedisLock(r.store, cache.RefreshLockKey(key))
	rl.SetExpire(r.lease)
	ok, err := rl.AcquireCtx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLock{key: key, lock: rl}, true, nil
}

func (r *RedisLocker) Unlock(ctx context.Context, l refresh.Lock) error {
	held, ok := l.(*redisLock)
	if !ok || held == nil {
		return fmt.Errorf("lock: foreign lock %T", l)
	}
	released, err := held.lock.ReleaseCtx(ctx)
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", held.key, err)
	}
	if !released {
		// Lease ran out and the key may already belong to someone else.
		logx.WithContext(ctx).Infof("lock: %s expired before release", held.key)
	}
	return nil
}

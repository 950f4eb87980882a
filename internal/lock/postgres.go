package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"nof0-refresh/internal/cache"
	"nof0-refresh/pkg/refresh"
)

var _ refresh.Locker = (*AdvisoryLocker)(nil)

// AdvisoryLocker maps lock keys onto Postgres session advisory locks. Each
// held lock pins one pooled connection until it is released.
type AdvisoryLocker struct {
	conn sqlx.SqlConn
}

// NewAdvisoryLocker builds an AdvisoryLocker on top of a go-zero connection.
func NewAdvisoryLocker(conn sqlx.SqlConn) (*AdvisoryLocker, error) {
	if conn == nil {
		return nil, errors.New("lock: sql connection is required")
	}
	return &AdvisoryLocker{conn: conn}, nil
}

type advisoryLock struct {
	key  string
	name string
	conn *sql.Conn
}

func (l *advisoryLock) Key() string { return l.key }

func (a *AdvisoryLocker) TryLock(ctx context.Context, key string) (refresh.Lock, bool, error) {
	db, err := a.conn.RawDB()
	if err != nil {
		return nil, false, fmt.Errorf("lock: raw db: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("lock: pin connection: %w", err)
	}

	name := cache.RefreshLockKey(key)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "select pg_try_advisory_lock(hashtext($1))", name).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("lock: try %s: %w", key, err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}
	return &advisoryLock{key: key, name: name, conn: conn}, true, nil
}

func (a *AdvisoryLocker) Unlock(ctx context.Context, l refresh.Lock) error {
	held, ok := l.(*advisoryLock)
	if !ok || held == nil {
		return fmt.Errorf("lock: foreign lock %T", l)
	}
	defer held.conn.Close()

	var released bool
	if err := held.conn.QueryRowContext(ctx, "select pg_advisory_unlock(hashtext($1))", held.name).Scan(&released); err != nil {
		// Discard the session so Postgres drops the lock with it.
		logx.WithContext(ctx).Errorf("lock: unlock %s: %v", held.key, err)
		_ = held.conn.Raw(func(any) error { return driver.ErrBadConn })
		return fmt.Errorf("lock: unlock %s: %w", held.key, err)
	}
	if !released {
		return fmt.Errorf("lock: %s was not held by this session", held.key)
	}
	return nil
}

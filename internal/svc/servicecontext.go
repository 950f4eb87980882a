package svc

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	keys "nof0-refresh/internal/cache"
	"nof0-refresh/internal/config"
	"nof0-refresh/internal/lock"
	"nof0-refresh/internal/model"
	assetspersist "nof0-refresh/internal/persistence/assets"
	refreshpersist "nof0-refresh/internal/persistence/refresh"
	"nof0-refresh/internal/queue"
	"nof0-refresh/internal/symbols"
	"nof0-refresh/pkg/confkit"
	"nof0-refresh/pkg/journal"
	refreshpkg "nof0-refresh/pkg/refresh"
)

type ServiceContext struct {
	Config config.Config
	TTL    keys.TTLSet

	// Optional backends, present only when configured.
	DBConn        sqlx.SqlConn
	Redis         *redis.Redis
	UniverseCache cache.Cache
	Assets        *assetspersist.Service

	Store        refreshpkg.Store
	Orchestrator *refreshpkg.Orchestrator
	Journal      *journal.Writer
}

func MustNewServiceContext(c config.Config) *ServiceContext {
	svc, err := NewServiceContext(c)
	if err != nil {
		logx.Must(err)
	}
	return svc
}

func NewServiceContext(c config.Config) (*ServiceContext, error) {
	rc := c.Refresh.Value
	if rc == nil {
		return nil, fmt.Errorf("svc: refresh section is not loaded")
	}
	svc := &ServiceContext{
		Config: c,
		TTL:    keys.NewTTLSet(c.TTL),
	}

	if c.Postgres.DSN != "" {
		svc.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		if db, err := svc.DBConn.RawDB(); err == nil {
			db.SetMaxOpenConns(c.Postgres.MaxOpen)
			db.SetMaxIdleConns(c.Postgres.MaxIdle)
		}
	}
	if c.Redis.Host != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return nil, fmt.Errorf("svc: redis: %w", err)
		}
		svc.Redis = rds
		svc.UniverseCache = cache.New(svc.cacheConf(), syncx.NewSingleFlight(), cache.NewStat("refresh_universe"),
			model.ErrNotFound, cache.WithExpiry(keys.UniverseTTL(svc.TTL)))
	}
	if svc.DBConn != nil {
		assets, err := assetspersist.NewService(assetspersist.Config{SQLConn: svc.DBConn, Cache: svc.UniverseCache})
		if err != nil {
			return nil, err
		}
		svc.Assets = assets
	}

	store, err := svc.buildStore(rc)
	if err != nil {
		return nil, err
	}
	svc.Store = store

	deps := refreshpkg.Deps{Store: store}
	if deps.Locker, err = svc.buildLocker(rc); err != nil {
		return nil, err
	}
	if deps.Universe, err = svc.buildUniverse(rc); err != nil {
		return nil, err
	}
	if deps.Watchlist, err = svc.buildWatchlist(rc); err != nil {
		return nil, err
	}
	if deps.Blacklist, err = svc.buildBlacklist(rc); err != nil {
		return nil, err
	}
	if deps.Submitter, deps.Notifier, err = svc.buildQueues(rc); err != nil {
		return nil, err
	}

	opts := []refreshpkg.Option{
		refreshpkg.WithCallbackURL(rc.CallbackURL),
		refreshpkg.WithAwaitParent(rc.AwaitParent),
	}
	if rc.JournalDir != "" {
		w, err := journal.NewWriter(confkit.ResolvePath(c.BaseDir(), rc.JournalDir))
		if err != nil {
			return nil, err
		}
		svc.Journal = w
		opts = append(opts, refreshpkg.WithCompletionHook(w.Hook()))
	}

	orch, err := refreshpkg.NewOrchestrator(deps, opts...)
	if err != nil {
		return nil, err
	}
	svc.Orchestrator = orch
	return svc, nil
}

func (s *ServiceContext) buildStore(rc *refreshpkg.Config) (refreshpkg.Store, error) {
	switch rc.Store {
	case refreshpkg.StoreBackendMemory:
		return refreshpkg.NewMemoryStore(), nil
	default:
		if s.DBConn == nil {
			return nil, fmt.Errorf("svc: postgres store requires a DSN")
		}
		return refreshpersist.NewStore(refreshpersist.Config{SQLConn: s.DBConn})
	}
}

func (s *ServiceContext) buildLocker(rc *refreshpkg.Config) (refreshpkg.Locker, error) {
	switch rc.Locker {
	case refreshpkg.LockerBackendMemory:
		return refreshpkg.NewMemoryLocker(), nil
	case refreshpkg.LockerBackendPostgres:
		return lock.NewAdvisoryLocker(s.DBConn)
	default:
		return lock.NewRedisLocker(s.Redis, rc.LockTTL)
	}
}

func (s *ServiceContext) cacheConf() cache.CacheConf {
	return cache.CacheConf{{RedisConf: s.Config.Redis, Weight: 100}}
}

func (s *ServiceContext) buildUniverse(rc *refreshpkg.Config) (refreshpkg.Universe, error) {
	if rc.Universe.Source == refreshpkg.SourceStatic {
		return refreshpkg.StaticSymbols(rc.Universe.Symbols), nil
	}
	if s.DBConn == nil {
		return nil, fmt.Errorf("svc: postgres universe requires a DSN")
	}
	if s.UniverseCache == nil {
		return nil, fmt.Errorf("svc: postgres universe requires redis for its cache")
	}
	assets := model.NewMarketAssetsModel(s.DBConn, s.cacheConf(), cache.WithExpiry(keys.UniverseTTL(s.TTL)))
	return symbols.NewCachedUniverse(assets, s.UniverseCache, rc.Universe.Provider)
}

func (s *ServiceContext) buildWatchlist(rc *refreshpkg.Config) (refreshpkg.Watchlist, error) {
	if rc.Watchlist.Source == refreshpkg.SourceStatic {
		return refreshpkg.StaticSymbols(rc.Watchlist.Symbols), nil
	}
	return symbols.NewRedisWatchlist(s.Redis, rc.Watchlist.Key)
}

func (s *ServiceContext) buildBlacklist(rc *refreshpkg.Config) (refreshpkg.Blacklist, error) {
	if rc.Blacklist.Source == refreshpkg.SourceStatic {
		return refreshpkg.NewStaticBlacklist(rc.Blacklist.Symbols...), nil
	}
	return symbols.NewRedisBlacklist(s.Redis, rc.Blacklist.Key)
}

// buildQueues wires the Redis job and notify lists. Without Redis (dev and
// test only) jobs are logged and must be settled by hand via the callback API.
func (s *ServiceContext) buildQueues(rc *refreshpkg.Config) (refreshpkg.JobSubmitter, refreshpkg.Notifier, error) {
	if s.Redis == nil {
		submit := refreshpkg.JobSubmitterFunc(func(ctx context.Context, job refreshpkg.FetchJob) error {
			logx.WithContext(ctx).Infof("svc: no job queue, dropping %s %s run=%d", job.Timeframe, job.Symbol, job.RunID)
			return nil
		})
		return submit, nil, nil
	}
	jobs, err := queue.NewJobQueue(s.Redis, rc.JobQueue)
	if err != nil {
		return nil, nil, err
	}
	ready, err := queue.NewNotifyQueue(s.Redis, rc.NotifyQueue)
	if err != nil {
		return nil, nil, err
	}
	return jobs, ready, nil
}

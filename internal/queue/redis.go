package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"nof0-refresh/pkg/refresh"
)

var (
	_ refresh.JobSubmitter = (*JobQueue)(nil)
	_ refresh.Notifier     = (*NotifyQueue)(nil)
)

// list is a Redis list carrying msgpack frames. Producers LPUSH, consumers
// BRPOP, so frames are delivered oldest first.
type list struct {
	store *redis.Redis
	key   string
}

func newList(store *redis.Redis, key string) (list, error) {
	if store == nil {
		return list{}, errors.New("queue: redis store is required")
	}
	if strings.TrimSpace(key) == "" {
		return list{}, errors.New("queue: list key is required")
	}
	return list{store: store, key: key}, nil
}

func (l list) push(ctx context.Context, frame any) error {
	data, err := msgpack.Marshal(frame)
	if err != nil {
		return fmt.Errorf("queue: encode frame: %w", err)
	}
	if _, err := l.store.LpushCtx(ctx, l.key, string(data)); err != nil {
		return fmt.Errorf("queue: lpush %s: %w", l.key, err)
	}
	return nil
}

// JobQueue submits fetch jobs to the worker pool's Redis list.
type JobQueue struct {
	list
}

func NewJobQueue(store *redis.Redis, key string) (*JobQueue, error) {
	l, err := newList(store, key)
	if err != nil {
		return nil, err
	}
	return &JobQueue{list: l}, nil
}

func (q *JobQueue) Submit(ctx context.Context, job refresh.FetchJob) error {
	if err := q.push(ctx, job); err != nil {
		return err
	}
	logx.WithContext(ctx).Debugf("queue: submitted %s %s run=%d", job.Timeframe, job.Symbol, job.RunID)
	return nil
}

// NotifyQueue publishes "ready for analysis" events for the decision engine.
type NotifyQueue struct {
	list
}

func NewNotifyQueue(store *redis.Redis, key string) (*NotifyQueue, error) {
	l, err := newList(store, key)
	if err != nil {
		return nil, err
	}
	return &NotifyQueue{list: l}, nil
}

func (q *NotifyQueue) NotifyReady(ctx context.Context, n refresh.AnalysisNotification) error {
	return q.push(ctx, n)
}

// DecodeJob parses a frame produced by JobQueue.
func DecodeJob(frame []byte) (refresh.FetchJob, error) {
	var job refresh.FetchJob
	if err := msgpack.Unmarshal(frame, &job); err != nil {
		return refresh.FetchJob{}, fmt.Errorf("queue: decode job: %w", err)
	}
	return job, nil
}

// DecodeNotification parses a frame produced by NotifyQueue.
func DecodeNotification(frame []byte) (refresh.AnalysisNotification, error) {
	var n refresh.AnalysisNotification
	if err := msgpack.Unmarshal(frame, &n); err != nil {
		return refresh.AnalysisNotification{}, fmt.Errorf("queue: decode notification: %w", err)
	}
	return n, nil
}

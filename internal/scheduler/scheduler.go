package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/zeromicro/go-zero/core/logx"

	"nof0-refresh/pkg/refresh"
)

const defaultFireTimeout = 2 * time.Minute

// Trigger starts or resumes the cycle of a timeframe.
type Trigger interface {
	AskForRefresh(ctx context.Context, tf refresh.Timeframe) (*refresh.Run, error)
}

// Scheduler fires one cron job per configured timeframe. A job whose
// previous invocation is still running is skipped rather than queued.
type Scheduler struct {
	cron    *gocron.Scheduler
	trigger Trigger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers a job for every timeframe that has a schedule in cfg.
func New(trigger Trigger, cfg *refresh.Config, timeout time.Duration) (*Scheduler, error) {
	if trigger == nil {
		return nil, errors.New("scheduler: trigger is required")
	}
	if cfg == nil {
		return nil, errors.New("scheduler: refresh config is required")
	}
	if timeout <= 0 {
		timeout = defaultFireTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		trigger: trigger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cron.SingletonModeAll()

	for _, tf := range refresh.Timeframes() {
		expr, ok := cfg.ScheduleFor(tf)
		if !ok {
			continue
		}
		if _, err := s.cron.Cron(expr).Tag(tf.String()).Do(s.Fire, tf); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduler: register %s (%q): %w", tf, expr, err)
		}
	}
	if len(s.cron.Jobs()) == 0 {
		cancel()
		return nil, errors.New("scheduler: no timeframe has a schedule")
	}
	return s, nil
}

// Timeframes lists the timeframes that have a registered job.
func (s *Scheduler) Timeframes() []refresh.Timeframe {
	var out []refresh.Timeframe
	for _, tf := range refresh.Timeframes() {
		if jobs, err := s.cron.FindJobsByTag(tf.String()); err == nil && len(jobs) > 0 {
			out = append(out, tf)
		}
	}
	return out
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	for _, job := range s.cron.Jobs() {
		logx.Infof("scheduler: %v next run %s", job.Tags(), job.NextRun().Format(time.RFC3339))
	}
}

// Stop cancels in-flight triggers and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}

// Fire asks the orchestrator to refresh tf once. Errors are logged; the next
// tick retries the same slot if it is still current.
func (s *Scheduler) Fire(tf refresh.Timeframe) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	run, err := s.trigger.AskForRefresh(ctx, tf)
	if err != nil {
		logx.WithContext(ctx).Errorf("scheduler: refresh %s failed after %s: %v", tf, time.Since(start), err)
		return
	}
	logx.WithContext(ctx).Infof("scheduler: refresh %s run=%d status=%s snapshot=%d took %s",
		tf, run.ID, run.Status, run.SnapshotCount, time.Since(start))
}

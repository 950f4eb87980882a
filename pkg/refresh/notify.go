package refresh

import (
	"context"
	"errors"
)

// JobSubmitter hands one fetch job to the external worker pool.
type JobSubmitter interface {
	Submit(ctx context.Context, job FetchJob) error
}

// JobSubmitterFunc adapts a function to JobSubmitter.
type JobSubmitterFunc func(ctx context.Context, job FetchJob) error

func (f JobSubmitterFunc) Submit(ctx context.Context, job FetchJob) error { return f(ctx, job) }

// Notifier delivers "symbol ready for analysis" events downstream.
type Notifier interface {
	NotifyReady(ctx context.Context, n AnalysisNotification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n AnalysisNotification) error

func (f NotifierFunc) NotifyReady(ctx context.Context, n AnalysisNotification) error { return f(ctx, n) }

// MultiNotifier fans a notification out to every member. A failing member
// does not stop delivery to the others.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyReady(ctx context.Context, n AnalysisNotification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.NotifyReady(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CompletionHook observes a run right after it reached SUCCESS.
type CompletionHook func(ctx context.Context, run *Run, items []RunItem)

type noopNotifier struct{}

func (noopNotifier) NotifyReady(ctx context.Context, n AnalysisNotification) error { return nil }

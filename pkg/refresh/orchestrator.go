package refresh

import (
	"errors"
	"time"
)

// Deps bundles the collaborators an Orchestrator needs.
type Deps struct {
	Store     Store
	Locker    Locker
	Universe  Universe
	Watchlist Watchlist
	Blacklist Blacklist
	Submitter JobSubmitter
	Notifier  Notifier
}

// Orchestrator drives refresh cycles: it dispatches runs, applies worker
// callbacks and cascades finished runs into the next timeframe. All state
// lives in the Store, so any number of Orchestrators may share it.
type Orchestrator struct {
	store     Store
	locker    Locker
	builder   *SnapshotBuilder
	submitter JobSubmitter
	notifier  Notifier

	callbackURL string
	awaitParent bool
	hooks       []CompletionHook
	now         func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithCallbackURL sets the address workers report outcomes to.
func WithCallbackURL(url string) Option {
	return func(o *Orchestrator) { o.callbackURL = url }
}

// WithAwaitParent leaves a finer run CREATED while its parent run for the
// same slot end is still in flight; the parent's completion dispatches it.
func WithAwaitParent(enabled bool) Option {
	return func(o *Orchestrator) { o.awaitParent = enabled }
}

// WithCompletionHook registers a hook called once per completed run.
func WithCompletionHook(hook CompletionHook) Option {
	return func(o *Orchestrator) {
		if hook != nil {
			o.hooks = append(o.hooks, hook)
		}
	}
}

// WithClock overrides the time source used to pick slots.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator validates deps and builds an Orchestrator.
func NewOrchestrator(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("refresh: store is required")
	}
	if deps.Locker == nil {
		return nil, errors.New("refresh: locker is required")
	}
	if deps.Submitter == nil {
		return nil, errors.New("refresh: job submitter is required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	o := &Orchestrator{
		store:     deps.Store,
		locker:    deps.Locker,
		builder:   NewSnapshotBuilder(deps.Store, deps.Universe, deps.Watchlist, deps.Blacklist),
		submitter: deps.Submitter,
		notifier:  notifier,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Store exposes the underlying store for read-only callers.
func (o *Orchestrator) Store() Store { return o.store }

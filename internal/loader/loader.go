// Package loader runs fetches on behalf of a view and keeps only the result of
// the most recent one.
//
// Every Load bumps a generation counter and cancels the context of the fetch
// it supersedes. A result is committed only while its generation is current,
// so a slow response can never overwrite a newer one.
package loader

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"
)

// Fetcher performs one fetch for the given parameters.
type Fetcher[P, T any] func(ctx context.Context, params P) (T, error)

// State is a snapshot of a loader.
type State[P, T any] struct {
	Params     P      `json:"params"`
	Data       T      `json:"data"`
	Err        error  `json:"-"`
	Error      string `json:"error,omitempty"`
	Loading    bool   `json:"loading"`
	Empty      bool   `json:"empty"`
	NotFound   bool   `json:"notFound"`
	Generation uint64 `json:"generation"`
	// Revision increases on every transition, so the loading and committed
	// states of one generation are told apart.
	Revision uint64 `json:"revision"`
}

// Option configures a Loader.
type Option[P, T any] func(*Loader[P, T])

// WithEmpty marks successful results for which empty returns true as Empty.
func WithEmpty[P, T any](empty func(T) bool) Option[P, T] {
	return func(l *Loader[P, T]) { l.isEmpty = empty }
}

// WithNotFound marks errors for which notFound returns true as NotFound.
func WithNotFound[P, T any](notFound func(error) bool) Option[P, T] {
	return func(l *Loader[P, T]) { l.isNotFound = notFound }
}

// WithObserver registers a callback invoked after every state transition.
// It runs outside the loader lock; use Revision to order notifications.
func WithObserver[P, T any](fn func(State[P, T])) Option[P, T] {
	return func(l *Loader[P, T]) { l.observers = append(l.observers, fn) }
}

// WithLogger sets the logger. Failures are logged as errors, stale results at V(1).
func WithLogger[P, T any](log logr.Logger) Option[P, T] {
	return func(l *Loader[P, T]) { l.log = log }
}

// Loader owns the state of one kind of fetch.
type Loader[P, T any] struct {
	fetch      Fetcher[P, T]
	isEmpty    func(T) bool
	isNotFound func(error) bool
	observers  []func(State[P, T])
	log        logr.Logger

	mu     sync.Mutex
	gen    uint64
	rev    uint64
	cancel context.CancelFunc
	state  State[P, T]
}

// New creates a Loader around fetch.
func New[P, T any](name string, fetch Fetcher[P, T], opts ...Option[P, T]) *Loader[P, T] {
	l := &Loader[P, T]{
		fetch: fetch,
		log:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.WithName(name)
	return l
}

// State returns the current state.
func (l *Loader[P, T]) State() State[P, T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Load fetches params, superseding any load in flight. It blocks until the
// fetch returns and reports whether its result was committed. A superseded
// load returns the state that replaced it and false.
func (l *Loader[P, T]) Load(ctx context.Context, params P) (State[P, T], bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	// Page replace: the previous result is discarded as soon as a new load starts.
	l.rev++
	l.state = State[P, T]{Params: params, Loading: true, Generation: gen, Revision: l.rev}
	pending := l.state
	l.mu.Unlock()
	l.notify(pending)

	data, err := l.fetch(ctx, params)

	l.mu.Lock()
	if gen != l.gen {
		current := l.state
		l.mu.Unlock()
		l.log.V(1).Info("dropping stale result", "generation", gen, "current", current.Generation)
		return current, false
	}
	l.cancel = nil
	l.rev++
	next := State[P, T]{Params: params, Generation: gen, Revision: l.rev}
	switch {
	case err != nil:
		next.Err = err
		next.Error = err.Error()
		next.NotFound = l.isNotFound != nil && l.isNotFound(err)
	default:
		next.Data = data
		next.Empty = l.isEmpty != nil && l.isEmpty(data)
	}
	l.state = next
	l.mu.Unlock()

	switch {
	case next.NotFound:
		l.log.V(1).Info("not found", "generation", gen)
	case err != nil && !errors.Is(err, context.Canceled):
		l.log.Error(err, "load failed", "generation", gen)
	}
	l.notify(next)
	return next, true
}

// Reset cancels any load in flight and clears the state.
func (l *Loader[P, T]) Reset() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
	l.rev++
	l.state = State[P, T]{Generation: l.gen, Revision: l.rev}
	cleared := l.state
	l.mu.Unlock()
	l.notify(cleared)
}

func (l *Loader[P, T]) notify(s State[P, T]) {
	for _, fn := range l.observers {
		fn(s)
	}
}

// Package loader accumulates successive pages of one logical query.
//
// The Loader is a small state machine (Idle, Loading, LoadingMore, Ready,
// Error). Every request carries the generation of the query identity it was
// issued for; a response whose generation no longer matches is dropped.
// There is never more than one request in flight. Query changes made while
// a request is outstanding collapse to the latest one, which is fetched as
// soon as the outstanding request resolves.
package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

// ErrClosed is returned by operations on a closed Loader.
var ErrClosed = errors.New("loader closed")

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 5 * time.Second

// State is where the loader is in its lifecycle.
type State int

const (
	Idle State = iota
	Loading
	LoadingMore
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case LoadingMore:
		return "loading-more"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// PageFetcher returns one page of a query.
// Having this as an interface lets the loader run against the in-process
// planner, a remote server, or a test fake.
type PageFetcher interface {
	FetchPage(ctx context.Context, spec domain.QuerySpec) (domain.Page, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc func(ctx context.Context, spec domain.QuerySpec) (domain.Page, error)

func (f FetcherFunc) FetchPage(ctx context.Context, spec domain.QuerySpec) (domain.Page, error) {
	return f(ctx, spec)
}

// View is a copy of the loader's state at one moment.
type View struct {
	State      State
	Spec       domain.QuerySpec
	Records    []domain.CatalogRecord
	Page       int // last page appended
	Total      int
	HasNext    bool
	Err        error
	Generation uint64
}

// request is one fetch tagged with the identity generation it belongs to.
type request struct {
	gen  uint64
	spec domain.QuerySpec
	page int
}

// Loader is the Incremental Loader. It is safe for concurrent use.
type Loader struct {
	fetcher PageFetcher
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	spec     domain.QuerySpec
	gen      uint64
	records  []domain.CatalogRecord
	seen     map[string]struct{}
	page     int
	total    int
	hasNext  bool
	err      error
	failed   int // page that failed, for Retry
	inFlight bool
	closed   bool
	changed  chan struct{}
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithTimeout bounds each page fetch.
func WithTimeout(d time.Duration) Option {
	return func(ld *Loader) { ld.timeout = d }
}

// New creates an idle loader.
func New(fetcher PageFetcher, opts ...Option) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		fetcher: fetcher,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:     ctx,
		cancel:  cancel,
		seen:    map[string]struct{}{},
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ─── Transitions ─────────────────────────────────────────────────────────────

// SetQuery makes spec the active query. A different identity discards every
// loaded record and starts over at page 1. The same identity is a no-op
// unless the loader is Idle or in Error. spec.Page is ignored.
func (l *Loader) SetQuery(spec domain.QuerySpec) error {
	spec.Page = 1

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.state != Idle && l.state != Error && domain.IdentityEqual(spec, l.spec) {
		return nil
	}
	l.spec = spec
	l.reset()
	return nil
}

// LoadMore requests the next page. It returns false (and does nothing)
// unless the loader is Ready and the last page reported more results.
func (l *Loader) LoadMore() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false, ErrClosed
	}
	if l.state != Ready || !l.hasNext || l.inFlight {
		return false, nil
	}
	l.transition(LoadingMore)
	l.start(request{gen: l.gen, spec: l.spec, page: l.page + 1})
	return true, nil
}

// Retry re-issues the request that failed. Records loaded before a failed
// LoadMore are kept. It returns false unless the loader is in Error.
func (l *Loader) Retry() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false, ErrClosed
	}
	if l.state != Error || l.inFlight {
		return false, nil
	}
	l.err = nil
	if l.failed <= 1 {
		l.transition(Loading)
	} else {
		l.transition(LoadingMore)
	}
	l.start(request{gen: l.gen, spec: l.spec, page: max(l.failed, 1)})
	return true, nil
}

// Reload discards everything and loads page 1 of the current query again.
func (l *Loader) Reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.state == Idle {
		return nil
	}
	l.reset()
	return nil
}

// reset starts a new generation at page 1. If a request is still out, the
// new one is issued when it comes back. Must be called with mu held.
func (l *Loader) reset() {
	l.gen++
	l.records = nil
	clear(l.seen)
	l.page, l.total, l.hasNext = 0, 0, false
	l.err, l.failed = nil, 0
	l.transition(Loading)
	if !l.inFlight {
		l.start(request{gen: l.gen, spec: l.spec, page: 1})
	}
}

// transition moves to s and wakes waiters. Must be called with mu held.
func (l *Loader) transition(s State) {
	l.state = s
	close(l.changed)
	l.changed = make(chan struct{})
}

// ─── Requests ────────────────────────────────────────────────────────────────

// start issues req in the background. Must be called with mu held.
func (l *Loader) start(req request) {
	l.inFlight = true
	l.wg.Add(1)
	go l.run(req)
}

func (l *Loader) run(req request) {
	defer l.wg.Done()

	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	page, err := l.fetcher.FetchPage(ctx, req.spec.WithPage(req.page))
	cancel()

	l.complete(req, page, err)
}

// complete applies a response if it still belongs to the active generation.
func (l *Loader) complete(req request, page domain.Page, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
	if l.closed {
		return
	}

	if req.gen != l.gen {
		l.logger.Debug("stale response dropped", "gen", req.gen, "current", l.gen, "page", req.page)
		// The active query changed while this was out; fetch it now.
		l.start(request{gen: l.gen, spec: l.spec, page: 1})
		return
	}

	if err != nil {
		l.logger.Warn("page fetch failed", "page", req.page, "error", err)
		l.err = err
		l.failed = req.page
		l.transition(Error)
		return
	}

	added := 0
	for _, rec := range page.Items {
		if _, dup := l.seen[rec.ID]; dup {
			l.logger.Debug("duplicate record skipped", "id", rec.ID, "page", req.page)
			continue
		}
		l.seen[rec.ID] = struct{}{}
		l.records = append(l.records, rec)
		added++
	}
	l.page = req.page
	l.total = page.Total
	l.hasNext = page.HasNext
	l.logger.Debug("page loaded", "page", req.page, "added", added, "total", page.Total)
	l.transition(Ready)
}

// ─── Observation ─────────────────────────────────────────────────────────────

// State returns a snapshot of the loader.
func (l *Loader) State() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view()
}

func (l *Loader) view() View {
	spec := l.spec
	spec.Page = max(l.page, 1)
	return View{
		State:      l.state,
		Spec:       spec,
		Records:    slices.Clone(l.records),
		Page:       l.page,
		Total:      l.total,
		HasNext:    l.hasNext,
		Err:        l.err,
		Generation: l.gen,
	}
}

// Wait blocks until no request is in flight and returns the settled view.
func (l *Loader) Wait(ctx context.Context) (View, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return View{}, ErrClosed
		}
		if !l.inFlight && l.state != Loading && l.state != LoadingMore {
			v := l.view()
			l.mu.Unlock()
			return v, nil
		}
		ch := l.changed
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return View{}, ctx.Err()
		case <-ch:
		}
	}
}

// Close cancels any outstanding request and waits for it to return.
// Further calls return ErrClosed.
func (l *Loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.cancel()
	close(l.changed)
	l.changed = make(chan struct{})
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

// Package reconcile derives the roster in effect as of a gazette by walking back
// through earlier gazettes until one has a committed snapshot.
package reconcile

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/metrics"
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

// ErrNoGazette is returned when the requested position does not exist.
var ErrNoGazette = errors.New("gazette not found")

// Ref identifies a gazette in a timeline together with its cached snapshot and
// the generation the snapshot was read at.
type Ref struct {
	Number     string
	Date       string
	State      *roster.Snapshot
	Generation uint64
}

// Timeline is the view of one scope's presidents and gazettes the engine walks.
// Implementations guard their own state; the engine never holds a lock while it
// waits on the backend.
type Timeline interface {
	Scope() roster.Scope
	Presidents() int
	Gazettes(president int) int
	Gazette(president, gazette int) (Ref, bool)
	// StoreState caches snap on the gazette unless its generation moved on.
	StoreState(president, gazette int, generation uint64, snap *roster.Snapshot) bool
}

// StateFetcher loads the backend's committed roster as of a gazette.
type StateFetcher interface {
	FetchState(ctx context.Context, scope roster.Scope, date, number string) (*roster.Snapshot, error)
}

// SnapshotCache is an optional read-through cache in front of the fetcher.
type SnapshotCache interface {
	Get(ctx context.Context, scope roster.Scope, number string) (*roster.Snapshot, bool)
	Put(ctx context.Context, scope roster.Scope, number string, snap *roster.Snapshot)
}

type Engine struct {
	fetcher StateFetcher
	cache   SnapshotCache
	log     *logrus.Entry
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithCache(cache SnapshotCache) Option {
	return func(e *Engine) { e.cache = cache }
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(fetcher StateFetcher, opts ...Option) *Engine {
	e := &Engine{fetcher: fetcher}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.NewEntry(logrus.StandardLogger())
	}
	e.log = e.log.WithField("component", "reconcile")
	e.metrics = metrics.OrDiscard(e.metrics)
	return e
}

// Resolve returns the roster in effect as of gazette g of president p:
//
//  1. the gazette's cached snapshot, if any;
//  2. the backend's committed snapshot, if non-empty;
//  3. the snapshot of gazette g-1 of the same president;
//  4. the snapshot of the last gazette of the nearest earlier president that has one;
//  5. an empty roster.
//
// Whatever is found is cached on the gazette. The result is always a private copy.
// Backend failures in step 2 are logged and treated as "no snapshot".
func (e *Engine) Resolve(ctx context.Context, tl Timeline, p, g int) (*roster.Snapshot, error) {
	snap, err := e.resolve(ctx, tl, p, g)
	if err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

func (e *Engine) resolve(ctx context.Context, tl Timeline, p, g int) (*roster.Snapshot, error) {
	ref, ok := tl.Gazette(p, g)
	if !ok {
		return nil, errors.Wrapf(ErrNoGazette, "president %d gazette %d", p, g)
	}
	scope := tl.Scope()
	if ref.State != nil {
		e.metrics.Resolutions.WithLabelValues(string(scope), "memo").Inc()
		return ref.State, nil
	}

	if snap := e.fetch(ctx, scope, ref); snap != nil {
		return e.keep(tl, p, g, ref, snap, "backend"), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if g > 0 {
		prev, err := e.resolve(ctx, tl, p, g-1)
		if err != nil {
			return nil, err
		}
		return e.keep(tl, p, g, ref, prev.Clone(), "previous_gazette"), nil
	}

	for pp := p - 1; pp >= 0; pp-- {
		n := tl.Gazettes(pp)
		if n == 0 {
			continue
		}
		prev, err := e.resolve(ctx, tl, pp, n-1)
		if err != nil {
			return nil, err
		}
		return e.keep(tl, p, g, ref, prev.Clone(), "previous_president"), nil
	}

	return e.keep(tl, p, g, ref, roster.EmptySnapshot(), "empty"), nil
}

func (e *Engine) fetch(ctx context.Context, scope roster.Scope, ref Ref) *roster.Snapshot {
	if e.cache != nil {
		if snap, ok := e.cache.Get(ctx, scope, ref.Number); ok && snap.Len(scope) > 0 {
			return snap
		}
	}
	snap, err := e.fetcher.FetchState(ctx, scope, ref.Date, ref.Number)
	if err != nil {
		if ctx.Err() == nil {
			e.log.WithFields(logrus.Fields{
				"scope":   scope,
				"gazette": ref.Number,
				"date":    ref.Date,
			}).WithError(err).Warn("failed to fetch committed state, falling back to earlier gazettes")
		}
		return nil
	}
	if snap.Len(scope) == 0 {
		return nil
	}
	if e.cache != nil {
		e.cache.Put(ctx, scope, ref.Number, snap)
	}
	return snap
}

func (e *Engine) keep(tl Timeline, p, g int, ref Ref, snap *roster.Snapshot, source string) *roster.Snapshot {
	e.metrics.Resolutions.WithLabelValues(string(tl.Scope()), source).Inc()
	if !tl.StoreState(p, g, ref.Generation, snap.Clone()) {
		e.log.WithFields(logrus.Fields{"gazette": ref.Number, "source": source}).Debug("discarded stale roster resolution")
	}
	return snap
}

package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sehansi-9/gztprocessor/internal/archive"
	"github.com/sehansi-9/gztprocessor/internal/backend"
	"github.com/sehansi-9/gztprocessor/internal/commit"
	"github.com/sehansi-9/gztprocessor/internal/gitrepo"
	"github.com/sehansi-9/gztprocessor/internal/logging"
	"github.com/sehansi-9/gztprocessor/internal/metrics"
	"github.com/sehansi-9/gztprocessor/internal/reconcile"
	"github.com/sehansi-9/gztprocessor/internal/roster"
	"github.com/sehansi-9/gztprocessor/internal/store"
)

type fakeBackend struct {
	fetchRawFn   func(context.Context, roster.Scope, roster.Format, string, string) (json.RawMessage, error)
	fetchDraftFn func(context.Context, string) (json.RawMessage, error)
	saveDraftFn  func(context.Context, string, []byte) error
	fetchMetaFn  func(context.Context, roster.Scope, string, string) ([]backend.GazetteMeta, error)

	mu    sync.Mutex
	saved map[string][]byte
}

func (f *fakeBackend) FetchRaw(ctx context.Context, scope roster.Scope, format roster.Format, date, number string) (json.RawMessage, error) {
	if f.fetchRawFn != nil {
		return f.fetchRawFn(ctx, scope, format, date, number)
	}
	return json.RawMessage(`null`), nil
}

func (f *fakeBackend) FetchDraft(ctx context.Context, number string) (json.RawMessage, error) {
	if f.fetchDraftFn != nil {
		return f.fetchDraftFn(ctx, number)
	}
	return json.RawMessage(`null`), nil
}

func (f *fakeBackend) SaveDraft(ctx context.Context, number string, body []byte) error {
	if f.saveDraftFn != nil {
		if err := f.saveDraftFn(ctx, number, body); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[number] = body
	return nil
}

func (f *fakeBackend) FetchGazettesMeta(ctx context.Context, scope roster.Scope, start, end string) ([]backend.GazetteMeta, error) {
	if f.fetchMetaFn != nil {
		return f.fetchMetaFn(ctx, scope, start, end)
	}
	return nil, nil
}

func (f *fakeBackend) DownloadURL(number, date string, scope roster.Scope, kind string) string {
	return "http://backend.test/download/" + number + "/" + date + "/" + string(scope) + "/" + kind
}

type fakeResolver struct {
	resolveFn func(context.Context, reconcile.Timeline, int, int) (*roster.Snapshot, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, tl reconcile.Timeline, p, g int) (*roster.Snapshot, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, tl, p, g)
	}
	return roster.EmptySnapshot(), nil
}

type fakeSender struct {
	commitFn func(context.Context, roster.Scope, roster.Format, string, string, any) error
	calls    int
}

func (f *fakeSender) Commit(ctx context.Context, scope roster.Scope, format roster.Format, date, number string, payload any) error {
	f.calls++
	if f.commitFn != nil {
		return f.commitFn(ctx, scope, format, date, number, payload)
	}
	return nil
}

type fakeCascade struct {
	numbers  []string
	warnings []bool
	index    int
	calls    int
}

func (f *fakeCascade) PersistCascade(numbers []string, warnings []bool, i int) {
	f.calls++
	f.numbers, f.warnings, f.index = numbers, warnings, i
}

type fakeJournal struct {
	recordFn    func(roster.Scope, string, gitrepo.Content, string, string) (gitrepo.Entry, bool, error)
	historyFn   func(roster.Scope, string, int) ([]gitrepo.Entry, error)
	contentAtFn func(roster.Scope, string, string) (gitrepo.Content, error)
	recorded    []gitrepo.Content
}

func (f *fakeJournal) Record(scope roster.Scope, number string, content gitrepo.Content, author, message string) (gitrepo.Entry, bool, error) {
	f.recorded = append(f.recorded, content)
	if f.recordFn != nil {
		return f.recordFn(scope, number, content, author, message)
	}
	return gitrepo.Entry{Hash: "abc1234", Message: message, Author: author, CreatedAt: time.Now()}, true, nil
}

func (f *fakeJournal) History(scope roster.Scope, number string, limit int) ([]gitrepo.Entry, error) {
	if f.historyFn != nil {
		return f.historyFn(scope, number, limit)
	}
	return nil, nil
}

func (f *fakeJournal) ContentAt(scope roster.Scope, number, hash string) (gitrepo.Content, error) {
	if f.contentAtFn != nil {
		return f.contentAtFn(scope, number, hash)
	}
	return gitrepo.Content{}, gitrepo.ErrNoJournal
}

type fakeCache struct {
	invalidated []string
	err         error
}

func (f *fakeCache) Invalidate(_ context.Context, _ roster.Scope, numbers ...string) error {
	f.invalidated = append(f.invalidated, numbers...)
	return f.err
}

type fakeArchive struct {
	entries []archive.Entry
	err     error
}

func (f *fakeArchive) Put(_ context.Context, e archive.Entry, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.entries = append(f.entries, e)
	return archive.Key(e), nil
}

type harness struct {
	svc      *Service
	backend  *fakeBackend
	resolver *fakeResolver
	sender   *fakeSender
	cascade  *fakeCascade
	journal  *fakeJournal
	registry *store.MemoryStore
	cache    *fakeCache
	archive  *fakeArchive
}

var testPresidents = []store.President{
	{ID: "gotabaya-rajapaksa", Name: "Gotabaya Rajapaksa", StartDate: "2019-11-18", EndDate: "2022-07-14"},
	{ID: "ranil-wickremesinghe", Name: "Ranil Wickremesinghe", StartDate: "2022-07-21"},
}

func fixedNow() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) }

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend:  &fakeBackend{},
		resolver: &fakeResolver{},
		sender:   &fakeSender{},
		cascade:  &fakeCascade{},
		journal:  &fakeJournal{},
		registry: store.NewMemoryStore(testPresidents),
		cache:    &fakeCache{},
		archive:  &fakeArchive{},
	}
	m := metrics.Discard()
	h.svc = New(Deps{
		Backend:  h.backend,
		Engine:   h.resolver,
		Pipeline: commit.NewPipeline(h.sender, commit.WithClock(fixedNow), commit.WithLogger(logging.Nop()), commit.WithMetrics(m)),
		Cascade:  h.cascade,
		Registry: h.registry,
		Journal:  h.journal,
		Cache:    h.cache,
		Archive:  h.archive,
		Logger:   logging.Nop(),
		Metrics:  m,
		Now:      fixedNow,
	})
	if err := h.svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	t.Cleanup(h.svc.Close)
	return h
}

// withGazettes makes the backend report metas for every president.
func (h *harness) withGazettes(metas ...backend.GazetteMeta) *harness {
	h.backend.fetchMetaFn = func(context.Context, roster.Scope, string, string) ([]backend.GazetteMeta, error) {
		return metas, nil
	}
	return h
}

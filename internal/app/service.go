package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/archive"
	"github.com/sehansi-9/gztprocessor/internal/backend"
	"github.com/sehansi-9/gztprocessor/internal/commit"
	"github.com/sehansi-9/gztprocessor/internal/draft"
	"github.com/sehansi-9/gztprocessor/internal/gitrepo"
	"github.com/sehansi-9/gztprocessor/internal/metrics"
	"github.com/sehansi-9/gztprocessor/internal/reconcile"
	"github.com/sehansi-9/gztprocessor/internal/roster"
	"github.com/sehansi-9/gztprocessor/internal/search"
	"github.com/sehansi-9/gztprocessor/internal/store"
	"github.com/sehansi-9/gztprocessor/internal/workspace"
)

const dateLayout = "2006-01-02"

type backendAPI interface {
	FetchRaw(ctx context.Context, scope roster.Scope, format roster.Format, date, number string) (json.RawMessage, error)
	FetchDraft(ctx context.Context, number string) (json.RawMessage, error)
	SaveDraft(ctx context.Context, number string, body []byte) error
	FetchGazettesMeta(ctx context.Context, scope roster.Scope, start, end string) ([]backend.GazetteMeta, error)
	DownloadURL(number, date string, scope roster.Scope, kind string) string
}

type resolver interface {
	Resolve(ctx context.Context, tl reconcile.Timeline, p, g int) (*roster.Snapshot, error)
}

type committer interface {
	Run(ctx context.Context, req commit.Request) (*commit.Result, error)
}

type cascadeWriter interface {
	PersistCascade(numbers []string, warnings []bool, i int)
}

type journal interface {
	Record(scope roster.Scope, number string, content gitrepo.Content, author, message string) (gitrepo.Entry, bool, error)
	History(scope roster.Scope, number string, limit int) ([]gitrepo.Entry, error)
	ContentAt(scope roster.Scope, number, hash string) (gitrepo.Content, error)
}

type registry interface {
	Ping(ctx context.Context) error
	ListPresidents(ctx context.Context) ([]store.President, error)
	RecordCommit(ctx context.Context, rec store.CommitRecord) (store.CommitRecord, error)
	ListCommits(ctx context.Context, filter store.CommitFilter) ([]store.CommitRecord, error)
}

type snapshotInvalidator interface {
	Invalidate(ctx context.Context, scope roster.Scope, numbers ...string) error
}

type payloadArchive interface {
	Put(ctx context.Context, e archive.Entry, payload []byte) (string, error)
}

// Deps wires the service. Journal, Cache, Archive and Meili are optional.
type Deps struct {
	Backend  backendAPI
	Engine   resolver
	Pipeline committer
	Cascade  cascadeWriter
	Registry registry
	Journal  journal
	Cache    snapshotInvalidator
	Archive  payloadArchive
	Meili    *search.Meili
	Logger   *logrus.Entry
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Service owns the shared editing workspace: one store per scope, built from
// the president registry by Bootstrap.
type Service struct {
	backend  backendAPI
	engine   resolver
	pipeline committer
	cascade  cascadeWriter
	registry registry
	journal  journal
	cache    snapshotInvalidator
	archive  payloadArchive
	search   *search.Service
	log      *logrus.Entry
	metrics  *metrics.Metrics
	now      func() time.Time

	mu         sync.RWMutex
	workspaces map[roster.Scope]*workspace.Store
}

func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	s := &Service{
		backend:    deps.Backend,
		engine:     deps.Engine,
		pipeline:   deps.Pipeline,
		cascade:    deps.Cascade,
		registry:   deps.Registry,
		journal:    deps.Journal,
		cache:      deps.Cache,
		archive:    deps.Archive,
		log:        log.WithField("component", "app"),
		metrics:    metrics.OrDiscard(deps.Metrics),
		now:        now,
		workspaces: make(map[roster.Scope]*workspace.Store),
	}
	s.search = search.NewService(deps.Meili, search.NewLocal(s), log)
	return s
}

// Bootstrap loads the president registry into a fresh workspace per scope.
func (s *Service) Bootstrap(ctx context.Context) error {
	rows, err := s.registry.ListPresidents(ctx)
	if err != nil {
		return errors.Wrap(err, "load presidents")
	}
	presidents := make([]workspace.President, len(rows))
	for i, p := range rows {
		presidents[i] = workspace.President{ID: p.ID, Name: p.Name, StartDate: p.StartDate, EndDate: p.EndDate, ImageURL: p.ImageURL}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, scope := range []roster.Scope{roster.ScopeOrg, roster.ScopePerson} {
		s.workspaces[scope] = workspace.New(scope, presidents)
	}
	s.log.WithField("presidents", len(presidents)).Info("workspace ready")
	return nil
}

// Close waits for pending search index writes.
func (s *Service) Close() {
	s.search.Close()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.registry.Ping(ctx)
}

func (s *Service) workspace(scope roster.Scope) (*workspace.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[scope]
	if !ok {
		return nil, errNotReady
	}
	return ws, nil
}

// GazetteDetail is a gazette with its draft rendered in the persisted draft
// document shape.
type GazetteDetail struct {
	workspace.GazetteView
	Kind  draft.Kind      `json:"kind"`
	Draft json.RawMessage `json:"draft"`
}

func detail(scope roster.Scope, v workspace.GazetteView) (GazetteDetail, error) {
	out := GazetteDetail{GazetteView: v, Kind: draft.KindFor(scope, v.Format), Draft: json.RawMessage(`null`)}
	if v.Draft != nil {
		body, err := draft.Encode(v.Draft)
		if err != nil {
			return GazetteDetail{}, err
		}
		out.Draft = body
	}
	return out, nil
}

func (s *Service) ListPresidents(scope roster.Scope) ([]workspace.PresidentSummary, error) {
	ws, err := s.workspace(scope)
	if err != nil {
		return nil, err
	}
	return ws.ListPresidents(), nil
}

type GazetteList struct {
	President workspace.President     `json:"president"`
	Gazettes  []workspace.GazetteView `json:"gazettes"`
	Warnings  []bool                  `json:"warnings"`
}

// LoadGazettes returns a president's gazettes, fetching their metadata from the
// backend the first time. The range runs from the start of tenure to its end,
// or today for a sitting president.
func (s *Service) LoadGazettes(ctx context.Context, scope roster.Scope, p int) (GazetteList, error) {
	ws, err := s.workspace(scope)
	if err != nil {
		return GazetteList{}, err
	}
	if err := s.ensureLoaded(ctx, ws, p); err != nil {
		return GazetteList{}, err
	}
	pres, _, err := ws.President(p)
	if err != nil {
		return GazetteList{}, err
	}
	views, err := ws.List(p)
	if err != nil {
		return GazetteList{}, err
	}
	warnings, err := ws.Warnings(p)
	if err != nil {
		return GazetteList{}, err
	}
	return GazetteList{President: pres, Gazettes: views, Warnings: warnings}, nil
}

// tenure returns the scope's workspace with president p's gazettes loaded.
func (s *Service) tenure(ctx context.Context, scope roster.Scope, p int) (*workspace.Store, error) {
	ws, err := s.workspace(scope)
	if err != nil {
		return nil, err
	}
	if err := s.ensureLoaded(ctx, ws, p); err != nil {
		return nil, err
	}
	return ws, nil
}

// timeline is tenure plus every earlier president, so a resolution that walks
// back past p's first gazette sees their gazettes. Earlier tenures that fail
// to load are logged and walked as empty.
func (s *Service) timeline(ctx context.Context, scope roster.Scope, p int) (*workspace.Store, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return nil, err
	}
	for earlier := p - 1; earlier >= 0; earlier-- {
		if err := s.ensureLoaded(ctx, ws, earlier); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"scope": scope, "president": earlier}).Warn("load earlier gazettes")
		}
	}
	return ws, nil
}

func (s *Service) ensureLoaded(ctx context.Context, ws *workspace.Store, p int) error {
	pres, loaded, err := ws.President(p)
	if err != nil || loaded {
		return err
	}
	end := pres.EndDate
	if end == "" {
		end = s.now().Format(dateLayout)
	}
	metas, err := s.backend.FetchGazettesMeta(ctx, ws.Scope(), pres.StartDate, end)
	if err != nil {
		return backendFailure("load gazettes", err)
	}
	items := make([]workspace.Meta, len(metas))
	for i, m := range metas {
		items[i] = workspace.Meta{Number: m.Number, Date: m.Date, Format: m.Format, Committed: m.Committed, Warning: m.Warning}
	}
	if applied, err := ws.SetGazettes(p, items); err != nil {
		return err
	} else if applied {
		s.log.WithFields(logrus.Fields{"scope": ws.Scope(), "president": pres.Name, "gazettes": len(items)}).Info("gazettes loaded")
	}
	return nil
}

type AddGazetteInput struct {
	Number string `json:"number"`
	Date   string `json:"date"`
	Format string `json:"format"`
}

// AddGazette registers a gazette the backend has extracted but nobody has
// opened yet, seeding its draft from the raw transactions.
func (s *Service) AddGazette(ctx context.Context, scope roster.Scope, p int, input AddGazetteInput) (GazetteDetail, error) {
	ws, err := s.workspace(scope)
	if err != nil {
		return GazetteDetail{}, err
	}
	number := strings.TrimSpace(input.Number)
	date := strings.TrimSpace(input.Date)
	if number == "" {
		return GazetteDetail{}, validationError("number is required")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return GazetteDetail{}, validationError("date must be YYYY-MM-DD")
	}
	format, err := roster.ParseFormat(strings.TrimSpace(input.Format))
	if err != nil {
		return GazetteDetail{}, validationError(err.Error())
	}
	if scope == roster.ScopePerson {
		format = roster.FormatNone
	}
	if err := s.ensureLoaded(ctx, ws, p); err != nil {
		return GazetteDetail{}, err
	}

	kind := draft.KindFor(scope, format)
	d := draft.New(kind)
	if scope == roster.ScopePerson || format != roster.FormatNone {
		raw, err := s.backend.FetchRaw(ctx, scope, format, date, number)
		if err != nil {
			return GazetteDetail{}, backendFailure("fetch transactions", err)
		}
		if d, err = draft.DecodeRaw(kind, raw); err != nil {
			return GazetteDetail{}, domainError(http.StatusBadGateway, "BACKEND_ERROR", "Could not read gazette transactions", map[string]any{"reason": err.Error()})
		}
	}

	g, err := ws.Add(p, workspace.Meta{Number: number, Date: date, Format: format}, d)
	if err != nil {
		return GazetteDetail{}, err
	}
	s.log.WithFields(logrus.Fields{"scope": scope, "gazette": number, "format": format}).Info("gazette added")
	v, err := ws.View(p, g)
	if err != nil {
		return GazetteDetail{}, err
	}
	return detail(scope, v)
}

// ViewGazette returns the gazette with its draft, fetching the saved draft on
// first view.
func (s *Service) ViewGazette(ctx context.Context, scope roster.Scope, p, g int) (GazetteDetail, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return GazetteDetail{}, err
	}
	v, err := s.loadDraft(ctx, ws, p, g)
	if err != nil {
		return GazetteDetail{}, err
	}
	return detail(scope, v)
}

func (s *Service) loadDraft(ctx context.Context, ws *workspace.Store, p, g int) (workspace.GazetteView, error) {
	v, err := ws.View(p, g)
	if err != nil || v.DraftLoaded {
		return v, err
	}
	d, err := s.fetchSavedDraft(ctx, ws.Scope(), v)
	if err != nil {
		return workspace.GazetteView{}, err
	}
	// A concurrent edit or load that landed first wins.
	if err := ws.SetDraft(p, g, v.Generation, d); err != nil && !errors.Is(err, workspace.ErrStale) {
		return workspace.GazetteView{}, err
	}
	return ws.View(p, g)
}

// fetchSavedDraft reads the draft-persistence document. A gazette that was never
// saved yields an empty draft.
func (s *Service) fetchSavedDraft(ctx context.Context, scope roster.Scope, v workspace.GazetteView) (draft.Draft, error) {
	kind := draft.KindFor(scope, v.Format)
	raw, err := s.backend.FetchDraft(ctx, v.Number)
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
		return draft.New(kind), nil
	}
	if err != nil {
		return nil, backendFailure("fetch draft", err)
	}
	d, err := draft.Decode(kind, raw)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "BACKEND_ERROR", "Could not read saved draft", map[string]any{"reason": err.Error()})
	}
	return d, nil
}

type RosterView struct {
	Gazette string           `json:"gazette"`
	Date    string           `json:"date"`
	Scope   roster.Scope     `json:"scope"`
	Query   string           `json:"query,omitempty"`
	Roster  *roster.Snapshot `json:"roster"`
}

// Roster resolves the roster in effect as of the gazette, optionally narrowed
// to entries matching query.
func (s *Service) Roster(ctx context.Context, scope roster.Scope, p, g int, query string) (RosterView, error) {
	ws, err := s.timeline(ctx, scope, p)
	if err != nil {
		return RosterView{}, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return RosterView{}, err
	}
	snap, err := s.engine.Resolve(ctx, ws, p, g)
	if err != nil {
		return RosterView{}, err
	}
	s.search.IndexRoster(search.RecordFor(scope, v.Number, v.Date, snap))
	if strings.TrimSpace(query) != "" {
		snap = snap.Filter(scope, query)
	}
	return RosterView{Gazette: v.Number, Date: v.Date, Scope: scope, Query: strings.TrimSpace(query), Roster: snap}, nil
}

type LatestState struct {
	RosterView
	Overwritten bool `json:"overwritten"`
}

// PullForwardLatestState copies the roster of the preceding gazette into this
// one, replacing whatever was cached. The first gazette of a president gets an
// empty roster.
func (s *Service) PullForwardLatestState(ctx context.Context, scope roster.Scope, p, g int) (LatestState, error) {
	ws, err := s.timeline(ctx, scope, p)
	if err != nil {
		return LatestState{}, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return LatestState{}, err
	}
	snap := roster.EmptySnapshot()
	if g > 0 {
		if snap, err = s.engine.Resolve(ctx, ws, p, g-1); err != nil {
			return LatestState{}, err
		}
	}
	overwritten, err := ws.ReplaceState(p, g, snap)
	if err != nil {
		return LatestState{}, err
	}
	s.log.WithFields(logrus.Fields{"scope": scope, "gazette": v.Number, "overwritten": overwritten}).Info("pulled forward latest state")
	s.search.IndexRoster(search.RecordFor(scope, v.Number, v.Date, snap))
	return LatestState{
		RosterView:  RosterView{Gazette: v.Number, Date: v.Date, Scope: scope, Roster: snap},
		Overwritten: overwritten,
	}, nil
}

// Dispatch applies one draft action. The draft is loaded first when needed.
func (s *Service) Dispatch(ctx context.Context, scope roster.Scope, p, g int, body []byte) (GazetteDetail, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return GazetteDetail{}, err
	}
	action, err := draft.DecodeAction(body)
	if err != nil {
		return GazetteDetail{}, err
	}
	v, err := s.loadDraft(ctx, ws, p, g)
	if err != nil {
		return GazetteDetail{}, err
	}
	kind := draft.KindFor(scope, v.Format)
	_, err = ws.UpdateDraft(p, g, func(current draft.Draft) (draft.Draft, error) {
		if current == nil {
			current = draft.New(kind)
		}
		return draft.Apply(current, action)
	})
	s.metrics.DraftActions.WithLabelValues(action.Name(), metrics.Outcome(err)).Inc()
	if err != nil {
		return GazetteDetail{}, err
	}
	v, err = ws.View(p, g)
	if err != nil {
		return GazetteDetail{}, err
	}
	return detail(scope, v)
}

type SaveResult struct {
	Gazette string         `json:"gazette"`
	Journal *gitrepo.Entry `json:"journal,omitempty"`
	Changed bool           `json:"changed"`
}

// SaveDraft persists the draft to the backend and journals it.
func (s *Service) SaveDraft(ctx context.Context, scope roster.Scope, p, g int, author string) (SaveResult, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return SaveResult{}, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return SaveResult{}, err
	}
	d := v.Draft
	if d == nil {
		d = draft.New(draft.KindFor(scope, v.Format))
	}
	body, err := draft.Encode(d)
	if err != nil {
		return SaveResult{}, err
	}
	if err := s.backend.SaveDraft(ctx, v.Number, body); err != nil {
		return SaveResult{}, backendFailure("save draft", err)
	}
	entry, changed := s.record(scope, v, d.Kind(), body, author, "Save draft "+v.Number)
	return SaveResult{Gazette: v.Number, Journal: entry, Changed: changed}, nil
}

// record journals a draft. Journal failures never fail the caller; the backend
// copy is the one of record.
func (s *Service) record(scope roster.Scope, v workspace.GazetteView, kind draft.Kind, body []byte, author, message string) (*gitrepo.Entry, bool) {
	if s.journal == nil {
		return nil, false
	}
	entry, changed, err := s.journal.Record(scope, v.Number, gitrepo.Content{Kind: kind, Date: v.Date, Draft: body}, author, message)
	if err != nil {
		s.log.WithError(err).WithField("gazette", v.Number).Warn("journal draft")
		return nil, false
	}
	return &entry, changed
}

// FetchDraft discards local edits and reloads the saved draft.
func (s *Service) FetchDraft(ctx context.Context, scope roster.Scope, p, g int) (GazetteDetail, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return GazetteDetail{}, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return GazetteDetail{}, err
	}
	d, err := s.fetchSavedDraft(ctx, scope, v)
	if err != nil {
		return GazetteDetail{}, err
	}
	return s.replaceDraft(scope, ws, p, g, v.Generation, d)
}

// RefreshDraft replaces the draft with the backend's extracted transactions.
// Move annotations of an initial draft are cleared.
func (s *Service) RefreshDraft(ctx context.Context, scope roster.Scope, p, g int) (GazetteDetail, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return GazetteDetail{}, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return GazetteDetail{}, err
	}
	if scope == roster.ScopeOrg && v.Format == roster.FormatNone {
		return GazetteDetail{}, validationError("gazette has no format to refresh from")
	}
	raw, err := s.backend.FetchRaw(ctx, scope, v.Format, v.Date, v.Number)
	if err != nil {
		return GazetteDetail{}, backendFailure("fetch transactions", err)
	}
	d, err := draft.DecodeRaw(draft.KindFor(scope, v.Format), raw)
	if err != nil {
		return GazetteDetail{}, domainError(http.StatusBadGateway, "BACKEND_ERROR", "Could not read gazette transactions", map[string]any{"reason": err.Error()})
	}
	return s.replaceDraft(scope, ws, p, g, v.Generation, d)
}

func (s *Service) replaceDraft(scope roster.Scope, ws *workspace.Store, p, g int, generation uint64, d draft.Draft) (GazetteDetail, error) {
	if err := ws.SetDraft(p, g, generation, d); err != nil {
		return GazetteDetail{}, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return GazetteDetail{}, err
	}
	return detail(scope, v)
}

type HistoryView struct {
	Gazette string          `json:"gazette"`
	Items   []gitrepo.Entry `json:"items"`
}

func (s *Service) History(ctx context.Context, scope roster.Scope, p, g, limit int) (HistoryView, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return HistoryView{}, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return HistoryView{}, err
	}
	if s.journal == nil {
		return HistoryView{Gazette: v.Number, Items: []gitrepo.Entry{}}, nil
	}
	items, err := s.journal.History(scope, v.Number, limit)
	if err != nil {
		return HistoryView{}, err
	}
	if items == nil {
		items = []gitrepo.Entry{}
	}
	return HistoryView{Gazette: v.Number, Items: items}, nil
}

type JournalDraft struct {
	Gazette string          `json:"gazette"`
	Hash    string          `json:"hash"`
	Kind    draft.Kind      `json:"kind"`
	Date    string          `json:"date"`
	Draft   json.RawMessage `json:"draft"`
}

// HistoryAt returns the draft as it was journaled at hash.
func (s *Service) HistoryAt(ctx context.Context, scope roster.Scope, p, g int, hash string) (JournalDraft, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return JournalDraft{}, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return JournalDraft{}, err
	}
	if s.journal == nil {
		return JournalDraft{}, gitrepo.ErrNoJournal
	}
	content, err := s.journal.ContentAt(scope, v.Number, hash)
	if err != nil {
		return JournalDraft{}, err
	}
	return JournalDraft{Gazette: v.Number, Hash: hash, Kind: content.Kind, Date: content.Date, Draft: content.Draft}, nil
}

var downloadKinds = []string{"add", "move", "terminate"}

// Downloads lists the CSV export links of a gazette.
func (s *Service) Downloads(ctx context.Context, scope roster.Scope, p, g int) (map[string]string, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return nil, err
	}
	v, err := ws.View(p, g)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(downloadKinds))
	for _, kind := range downloadKinds {
		out[kind] = s.backend.DownloadURL(v.Number, v.Date, scope, kind)
	}
	return out, nil
}

func (s *Service) CommitLog(ctx context.Context, filter store.CommitFilter) ([]store.CommitRecord, error) {
	return s.registry.ListCommits(ctx, filter)
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

// Reindex pushes every resolved roster to the search index.
func (s *Service) Reindex() int {
	records := s.RosterRecords()
	s.search.ReindexAll(records)
	return len(records)
}

// RosterRecords lists an index record for every roster resolved in this
// session.
func (s *Service) RosterRecords() []search.RosterRecord {
	s.mu.RLock()
	stores := make([]*workspace.Store, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		stores = append(stores, ws)
	}
	s.mu.RUnlock()

	var out []search.RosterRecord
	for _, ws := range stores {
		for _, c := range ws.CachedRosters() {
			out = append(out, search.RecordFor(ws.Scope(), c.Number, c.Date, c.State))
		}
	}
	return out
}

// Package workspace holds the shared editing session: one scope's presidents,
// their gazettes, lazily loaded drafts and cached rosters.
package workspace

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/sehansi-9/gztprocessor/internal/cascade"
	"github.com/sehansi-9/gztprocessor/internal/draft"
	"github.com/sehansi-9/gztprocessor/internal/reconcile"
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("gazette already exists")
	ErrStale     = errors.New("gazette changed while the request was in flight")
)

type President struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Meta is what the backend knows about a gazette before anything is loaded.
type Meta struct {
	Number    string
	Date      string
	Format    roster.Format
	Committed bool
	Warning   bool
}

type gazette struct {
	Meta
	state       *roster.Snapshot
	draft       draft.Draft
	draftLoaded bool
	generation  uint64
}

func (g *gazette) invalidate() { g.generation++ }

func (g *gazette) dropState() {
	g.state = nil
	g.invalidate()
}

type president struct {
	President
	gazettes []*gazette
	loaded   bool
}

// Store is one scope's view. All methods are safe for concurrent use and never
// block on anything but the store's own mutex.
type Store struct {
	scope roster.Scope

	mu         sync.Mutex
	presidents []*president
}

func New(scope roster.Scope, presidents []President) *Store {
	s := &Store{scope: scope, presidents: make([]*president, len(presidents))}
	for i, p := range presidents {
		s.presidents[i] = &president{President: p}
	}
	return s
}

func (s *Store) lookup(p, g int) (*gazette, error) {
	if p < 0 || p >= len(s.presidents) {
		return nil, errors.Wrapf(ErrNotFound, "president %d", p)
	}
	gs := s.presidents[p].gazettes
	if g < 0 || g >= len(gs) {
		return nil, errors.Wrapf(ErrNotFound, "president %d gazette %d", p, g)
	}
	return gs[g], nil
}

// Scope, Presidents, Gazettes, Gazette and StoreState make a Store the timeline
// the reconcile engine walks.

func (s *Store) Scope() roster.Scope { return s.scope }

func (s *Store) Presidents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.presidents)
}

func (s *Store) Gazettes(p int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p < 0 || p >= len(s.presidents) {
		return 0
	}
	return len(s.presidents[p].gazettes)
}

func (s *Store) Gazette(p, g int) (reconcile.Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gz, err := s.lookup(p, g)
	if err != nil {
		return reconcile.Ref{}, false
	}
	return reconcile.Ref{Number: gz.Number, Date: gz.Date, State: gz.state, Generation: gz.generation}, true
}

func (s *Store) StoreState(p, g int, generation uint64, snap *roster.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	gz, err := s.lookup(p, g)
	if err != nil || gz.generation != generation {
		return false
	}
	gz.state = snap
	return true
}

type PresidentSummary struct {
	Index int `json:"index"`
	President
	Gazettes int  `json:"gazettes"`
	Loaded   bool `json:"loaded"`
}

func (s *Store) ListPresidents() []PresidentSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PresidentSummary, len(s.presidents))
	for i, p := range s.presidents {
		out[i] = PresidentSummary{Index: i, President: p.President, Gazettes: len(p.gazettes), Loaded: p.loaded}
	}
	return out
}

func (s *Store) President(p int) (President, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p < 0 || p >= len(s.presidents) {
		return President{}, false, errors.Wrapf(ErrNotFound, "president %d", p)
	}
	return s.presidents[p].President, s.presidents[p].loaded, nil
}

// SetGazettes installs the loaded gazette list of a president. A list that was
// already loaded is kept; the return value reports whether metas were applied.
func (s *Store) SetGazettes(p int, metas []Meta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p < 0 || p >= len(s.presidents) {
		return false, errors.Wrapf(ErrNotFound, "president %d", p)
	}
	pr := s.presidents[p]
	if pr.loaded {
		return false, nil
	}
	pr.gazettes = make([]*gazette, len(metas))
	for i, m := range metas {
		pr.gazettes[i] = &gazette{Meta: m}
	}
	pr.loaded = true
	return true, nil
}

// GazetteView is a detached copy of one gazette.
type GazetteView struct {
	Index       int              `json:"index"`
	Number      string           `json:"number"`
	Date        string           `json:"date"`
	Format      roster.Format    `json:"format"`
	Committed   bool             `json:"committed"`
	Warning     bool             `json:"warning"`
	DraftLoaded bool             `json:"draft_loaded"`
	Draft       draft.Draft      `json:"-"`
	State       *roster.Snapshot `json:"-"`
	Generation  uint64           `json:"-"`
}

func (g *gazette) view(i int) GazetteView {
	v := GazetteView{
		Index:       i,
		Number:      g.Number,
		Date:        g.Date,
		Format:      g.Format,
		Committed:   g.Committed,
		Warning:     g.Warning,
		DraftLoaded: g.draftLoaded,
		State:       g.state.Clone(),
		Generation:  g.generation,
	}
	if g.draft != nil {
		v.Draft = draft.Clone(g.draft)
	}
	return v
}

func (s *Store) View(p, g int) (GazetteView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gz, err := s.lookup(p, g)
	if err != nil {
		return GazetteView{}, err
	}
	return gz.view(g), nil
}

func (s *Store) List(p int) ([]GazetteView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p < 0 || p >= len(s.presidents) {
		return nil, errors.Wrapf(ErrNotFound, "president %d", p)
	}
	gs := s.presidents[p].gazettes
	out := make([]GazetteView, len(gs))
	for i, gz := range gs {
		out[i] = gz.view(i)
		out[i].Draft = nil
		out[i].State = nil
	}
	return out, nil
}

// Warnings returns the president's flag vector in gazette order.
func (s *Store) Warnings(p int) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p < 0 || p >= len(s.presidents) {
		return nil, errors.Wrapf(ErrNotFound, "president %d", p)
	}
	return s.warnings(p), nil
}

func (s *Store) warnings(p int) []bool {
	gs := s.presidents[p].gazettes
	out := make([]bool, len(gs))
	for i, gz := range gs {
		out[i] = gz.Warning
	}
	return out
}

// Add appends a gazette created in this session. It starts flagged when any
// sibling is flagged and carries d as an already loaded draft.
func (s *Store) Add(p int, m Meta, d draft.Draft) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p < 0 || p >= len(s.presidents) {
		return 0, errors.Wrapf(ErrNotFound, "president %d", p)
	}
	pr := s.presidents[p]
	for _, gz := range pr.gazettes {
		if gz.Number == m.Number {
			return 0, errors.Wrapf(ErrDuplicate, "gazette %s", m.Number)
		}
	}
	m.Committed = false
	m.Warning = cascade.InitialWarning(s.warnings(p))
	pr.gazettes = append(pr.gazettes, &gazette{Meta: m, draft: d, draftLoaded: d != nil})
	return len(pr.gazettes) - 1, nil
}

// SetDraft replaces the draft unless the gazette changed since generation was
// read. Replacing a draft invalidates in-flight work on the gazette.
func (s *Store) SetDraft(p, g int, generation uint64, d draft.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gz, err := s.lookup(p, g)
	if err != nil {
		return err
	}
	if gz.generation != generation {
		return errors.Wrapf(ErrStale, "gazette %s", gz.Number)
	}
	gz.draft = d
	gz.draftLoaded = true
	gz.invalidate()
	return nil
}

// UpdateDraft applies fn to the current draft under the lock. fn must not block.
func (s *Store) UpdateDraft(p, g int, fn func(draft.Draft) (draft.Draft, error)) (draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gz, err := s.lookup(p, g)
	if err != nil {
		return nil, err
	}
	next, err := fn(gz.draft)
	if err != nil {
		return nil, err
	}
	gz.draft = next
	gz.draftLoaded = true
	gz.invalidate()
	return draft.Clone(next), nil
}

// Committed is the outcome of MarkCommitted: the president's gazette numbers
// and the flag vector after the cascade.
type Committed struct {
	Numbers  []string
	Warnings []bool
	Index    int
}

// MarkCommitted flags gazette g committed and applies the warning cascade to
// its siblings. Every roster resolved as of g or a later gazette, including
// those of later presidents, was derived from the old chain and is dropped.
func (s *Store) MarkCommitted(p, g int) (Committed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gz, err := s.lookup(p, g)
	if err != nil {
		return Committed{}, err
	}
	gz.Committed = true

	gs := s.presidents[p].gazettes
	for _, later := range gs[g:] {
		later.dropState()
	}
	for _, pr := range s.presidents[p+1:] {
		for _, later := range pr.gazettes {
			later.dropState()
		}
	}

	next := cascade.OnCommitted(s.warnings(p), g)
	numbers := make([]string, len(gs))
	for i, sib := range gs {
		sib.Warning = next[i]
		numbers[i] = sib.Number
	}
	return Committed{Numbers: numbers, Warnings: next, Index: g}, nil
}

// ReplaceState overwrites the gazette's roster with snap. It reports whether a
// roster was already cached.
func (s *Store) ReplaceState(p, g int, snap *roster.Snapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gz, err := s.lookup(p, g)
	if err != nil {
		return false, err
	}
	overwritten := gz.state != nil
	gz.invalidate()
	gz.state = snap.Clone()
	return overwritten, nil
}

// CachedRoster is a roster some gazette has already resolved.
type CachedRoster struct {
	Number string
	Date   string
	State  *roster.Snapshot
}

// CachedRosters lists every resolved roster across presidents in timeline
// order. Gazettes whose roster is unresolved are skipped.
func (s *Store) CachedRosters() []CachedRoster {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CachedRoster
	for _, p := range s.presidents {
		for _, gz := range p.gazettes {
			if gz.state == nil {
				continue
			}
			out = append(out, CachedRoster{Number: gz.Number, Date: gz.Date, State: gz.state.Clone()})
		}
	}
	return out
}

package search

import (
	"context"
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

type staticSource []RosterRecord

func (s staticSource) RosterRecords() []RosterRecord { return s }

func orgSnapshot() *roster.Snapshot {
	return &roster.Snapshot{Ministers: []roster.MinisterState{
		{Name: "Minister of Defence", Departments: []string{"Sri Lanka Army", "Sri Lanka Navy"}},
		{Name: "Minister of Health", Departments: []string{"Medical Supplies Division"}},
	}}
}

func TestRecordFor(t *testing.T) {
	rec := RecordFor(roster.ScopeOrg, "2289/43", "2022-07-22", orgSnapshot())
	assert.Equal(t, "mindep_2289_43", rec.ID)
	assert.Equal(t, []string{"Minister of Defence", "Minister of Health"}, rec.Names)
	assert.Len(t, rec.Details, 3)

	person := RecordFor(roster.ScopePerson, "1", "2022-01-01", &roster.Snapshot{Persons: []roster.PersonState{
		{PersonName: "A. B. Perera", Portfolios: []roster.Portfolio{{Position: "Minister", MinistryName: "Finance"}}},
	}})
	assert.Equal(t, []string{"Minister - Finance"}, person.Details)

	empty := RecordFor(roster.ScopeOrg, "x", "", nil)
	assert.NotNil(t, empty.Names)
}

func TestLocalSearch(t *testing.T) {
	src := staticSource{
		RecordFor(roster.ScopeOrg, "b", "2022-02-01", orgSnapshot()),
		RecordFor(roster.ScopeOrg, "a", "2022-01-01", orgSnapshot()),
		RecordFor(roster.ScopePerson, "p", "2022-01-05", &roster.Snapshot{Persons: []roster.PersonState{{PersonName: "Navy Fernando"}}}),
	}
	l := NewLocal(src)

	results, total, err := l.Search(context.Background(), Query{Text: "navy", Scope: roster.ScopeOrg})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "a", results[0].Gazette)
	assert.Equal(t, []string{"Sri Lanka Navy"}, results[0].Matches)

	results, total, err = l.Search(context.Background(), Query{Text: "NAVY", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, results, 1)

	results, _, _ = l.Search(context.Background(), Query{Text: "   "})
	assert.Empty(t, results)
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	svc := NewService(nil, NewLocal(staticSource{RecordFor(roster.ScopeOrg, "a", "2022-01-01", orgSnapshot())}), nil)
	defer svc.Close()

	resp := svc.Search(context.Background(), Query{Text: "health"})
	assert.Equal(t, "local", resp.Engine)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "health", resp.Query)

	svc.IndexRoster(RosterRecord{ID: "x"})
	svc.DeleteRoster(RosterRecord{ID: "x"})
	svc.ReindexAll(nil)
}

func TestServiceWithoutAnySearcher(t *testing.T) {
	resp := NewService(nil, nil, nil).Search(context.Background(), Query{Text: "x"})
	assert.Equal(t, []Result{}, resp.Results)
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"gazette": json.RawMessage(`"2289/43"`),
		"date":    json.RawMessage(`"2022-07-22"`),
		"scope":   json.RawMessage(`"mindep"`),
		"_formatted": json.RawMessage(`{
			"names":["Minister of <mark>Defence</mark>","Minister of Health"],
			"details":["Sri Lanka Army"]
		}`),
	}
	r := hitToResult(hit)
	assert.Equal(t, Result{Scope: roster.ScopeOrg, Gazette: "2289/43", Date: "2022-07-22", Matches: []string{"Minister of Defence"}}, r)
}

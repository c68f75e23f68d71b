// Package search finds the gazettes whose roster mentions a minister,
// department, person or portfolio.
package search

import (
	"context"
	"strings"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Scope   roster.Scope `json:"scope"`
	Gazette string       `json:"gazette"`
	Date    string       `json:"date"`
	Matches []string     `json:"matches"`
}

// Query describes a search request.
type Query struct {
	Text  string
	Scope roster.Scope // empty = both scopes
	Limit int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Searcher can execute a roster search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// RosterRecord is what we index per gazette: the names on its roster and the
// departments or portfolios under them.
type RosterRecord struct {
	ID      string       `json:"id"`
	Scope   roster.Scope `json:"scope"`
	Gazette string       `json:"gazette"`
	Date    string       `json:"date"`
	Names   []string     `json:"names"`
	Details []string     `json:"details"`
}

// RecordFor flattens a snapshot into its index record.
func RecordFor(scope roster.Scope, gazette, date string, snap *roster.Snapshot) RosterRecord {
	rec := RosterRecord{
		ID:      recordID(scope, gazette),
		Scope:   scope,
		Gazette: gazette,
		Date:    date,
		Names:   []string{},
		Details: []string{},
	}
	if snap == nil {
		return rec
	}
	if scope == roster.ScopePerson {
		for _, p := range snap.Persons {
			rec.Names = append(rec.Names, p.PersonName)
			for _, pf := range p.Portfolios {
				rec.Details = append(rec.Details, pf.Position+" - "+pf.MinistryName)
			}
		}
		return rec
	}
	for _, m := range snap.Ministers {
		rec.Names = append(rec.Names, m.Name)
		rec.Details = append(rec.Details, m.Departments...)
	}
	return rec
}

// recordID maps scope and gazette number onto the characters Meilisearch
// accepts in a primary key.
func recordID(scope roster.Scope, gazette string) string {
	var b strings.Builder
	b.WriteString(string(scope))
	b.WriteByte('_')
	for _, r := range gazette {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

// matches returns the names and details of rec containing text, case-insensitively.
func (rec RosterRecord) matches(text string) []string {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}
	var out []string
	for _, list := range [][]string{rec.Names, rec.Details} {
		for _, v := range list {
			if strings.Contains(strings.ToLower(v), needle) {
				out = append(out, v)
			}
		}
	}
	return out
}

func scopeOf(raw string) roster.Scope {
	if s, err := roster.ParseScope(raw); err == nil {
		return s
	}
	return roster.Scope(raw)
}

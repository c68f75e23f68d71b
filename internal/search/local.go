package search

import (
	"context"
	"sort"
)

// RecordSource lists the rosters known to this process.
type RecordSource interface {
	RosterRecords() []RosterRecord
}

// Local scans in-process rosters with a case-insensitive substring match. It is
// the fallback when Meilisearch is not configured or unhealthy.
type Local struct {
	source RecordSource
}

func NewLocal(source RecordSource) *Local {
	return &Local{source: source}
}

func (l *Local) Search(_ context.Context, q Query) ([]Result, int, error) {
	var results []Result
	for _, rec := range l.source.RosterRecords() {
		if q.Scope != "" && rec.Scope != q.Scope {
			continue
		}
		m := rec.matches(q.Text)
		if len(m) == 0 {
			continue
		}
		results = append(results, Result{Scope: rec.Scope, Gazette: rec.Gazette, Date: rec.Date, Matches: m})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Date < results[j].Date })
	total := len(results)
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, total, nil
}

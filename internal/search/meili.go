package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const idxRosters = "gztp_rosters"

const (
	highlightPre  = "<mark>"
	highlightPost = "</mark>"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	log     *logrus.Entry
}

// NewMeili creates a Meilisearch client and configures the roster index. The
// client is returned even when the first health check fails; a background loop
// picks it up once the server answers.
func NewMeili(url, apiKey string, log *logrus.Entry) *Meili {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
		log:    log.WithField("component", "search"),
	}

	if _, err := m.client.Health(); err != nil {
		m.log.WithError(err).WithField("url", url).Warn("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxRosters,
		PrimaryKey: "id",
	}); err != nil {
		m.log.WithError(err).Debug("create roster index (may already exist)")
	}

	index := m.client.Index(idxRosters)
	filterable := []interface{}{"scope", "gazette", "date"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.log.WithError(err).Warn("update filterable attributes")
	}
	searchable := []string{"names", "details"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.WithError(err).Warn("update searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	sr := &meili.SearchRequest{
		IndexUID:              idxRosters,
		Query:                 q.Text,
		Limit:                 limit,
		AttributesToHighlight: []string{"names", "details"},
		HighlightPreTag:       highlightPre,
		HighlightPostTag:      highlightPost,
	}
	if q.Scope != "" {
		sr.Filter = []string{fmt.Sprintf("scope = %q", string(q.Scope))}
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, res := range resp.Results {
		total += int(res.EstimatedTotalHits)
		for _, hit := range res.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		Gazette: decodeString(hit, "gazette"),
		Date:    decodeString(hit, "date"),
	}
	r.Scope = scopeOf(decodeString(hit, "scope"))
	r.Matches = highlighted(hit)
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// highlighted returns the list entries Meilisearch marked as matching, with the
// highlight tags removed.
func highlighted(hit meili.Hit) []string {
	raw, ok := hit["_formatted"]
	if !ok {
		return nil
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return nil
	}
	var out []string
	for _, key := range []string{"names", "details"} {
		var values []string
		if err := json.Unmarshal(formatted[key], &values); err != nil {
			continue
		}
		for _, v := range values {
			if strings.Contains(v, highlightPre) {
				v = strings.ReplaceAll(v, highlightPre, "")
				out = append(out, strings.ReplaceAll(v, highlightPost, ""))
			}
		}
	}
	return out
}

// IndexRoster adds or replaces a gazette's roster record.
func (m *Meili) IndexRoster(rec RosterRecord) error {
	_, err := m.client.Index(idxRosters).AddDocuments([]RosterRecord{rec}, nil)
	return err
}

// DeleteRoster removes a gazette's roster record.
func (m *Meili) DeleteRoster(id string) error {
	_, err := m.client.Index(idxRosters).DeleteDocument(id, nil)
	return err
}

// IndexRosters bulk-indexes roster records.
func (m *Meili) IndexRosters(records []RosterRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxRosters).AddDocuments(records, nil)
	return err
}

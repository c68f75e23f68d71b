package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

// CommittedRef is one entry of the committed gazette list.
type CommittedRef struct {
	Number string `json:"gazette_number"`
	Date   string `json:"date"`
}

// DraftInfo is one entry of the draft metadata list.
type DraftInfo struct {
	Number  string   `json:"gazette_number"`
	Date    string   `json:"date"`
	Warning FlexBool `json:"warning"`
	Format  string   `json:"gazette_format"`
}

// GazetteMeta is the merged view of a gazette known to the backend.
type GazetteMeta struct {
	Number    string
	Date      string
	Committed bool
	Warning   bool
	Format    roster.Format
}

// FlexBool decodes booleans stored as bool, number or numeric string. Anything
// that does not parse as a non-zero number is false.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "true":
		*b = true
	case raw == "false" || raw == "null" || raw == "":
		*b = false
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = FlexBool(nonZero(strings.TrimSpace(s)))
	default:
		*b = FlexBool(nonZero(raw))
	}
	return nil
}

func nonZero(s string) bool {
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f != 0
}

func (c *Client) FetchCommitted(ctx context.Context, scope roster.Scope, start, end string) ([]CommittedRef, error) {
	raw, err := c.do(ctx, "fetch_committed", http.MethodGet, c.endpoint(string(scope), "state", "gazettes", start, end), nil)
	if err != nil {
		return nil, err
	}
	var refs []CommittedRef
	if err := decodeList(raw, &refs); err != nil {
		return nil, errors.Wrap(err, "fetch_committed: decode")
	}
	return refs, nil
}

func (c *Client) FetchDraftInfo(ctx context.Context, scope roster.Scope, start, end string) ([]DraftInfo, error) {
	raw, err := c.do(ctx, "fetch_draft_info", http.MethodGet, c.endpoint("info", string(scope), start, end), nil)
	if err != nil {
		return nil, err
	}
	var infos []DraftInfo
	if err := decodeList(raw, &infos); err != nil {
		return nil, errors.Wrap(err, "fetch_draft_info: decode")
	}
	return infos, nil
}

// FetchGazettesMeta loads the committed and draft lists for a date range in
// parallel and merges them with MergeMeta.
func (c *Client) FetchGazettesMeta(ctx context.Context, scope roster.Scope, start, end string) ([]GazetteMeta, error) {
	var committed []CommittedRef
	var drafts []DraftInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		committed, err = c.FetchCommitted(gctx, scope, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		drafts, err = c.FetchDraftInfo(gctx, scope, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MergeMeta(committed, drafts), nil
}

// MergeMeta combines both lists. Committed gazettes take the warning and format
// of a matching draft entry, drafts that were already committed are dropped, and
// the result is ordered by date with committed entries first on ties.
func MergeMeta(committed []CommittedRef, drafts []DraftInfo) []GazetteMeta {
	byNumber := make(map[string]DraftInfo, len(drafts))
	for _, d := range drafts {
		if _, seen := byNumber[d.Number]; !seen {
			byNumber[d.Number] = d
		}
	}

	out := make([]GazetteMeta, 0, len(committed)+len(drafts))
	committedNumbers := make(map[string]struct{}, len(committed))
	for _, c := range committed {
		meta := GazetteMeta{Number: c.Number, Date: c.Date, Committed: true}
		if d, ok := byNumber[c.Number]; ok {
			meta.Warning = bool(d.Warning)
			meta.Format = parseFormat(d.Format)
		}
		committedNumbers[c.Number] = struct{}{}
		out = append(out, meta)
	}
	for _, d := range drafts {
		if _, done := committedNumbers[d.Number]; done {
			continue
		}
		out = append(out, GazetteMeta{
			Number:  d.Number,
			Date:    d.Date,
			Warning: bool(d.Warning),
			Format:  parseFormat(d.Format),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func parseFormat(raw string) roster.Format {
	f, err := roster.ParseFormat(strings.TrimSpace(raw))
	if err != nil {
		return roster.FormatNone
	}
	return f
}

func decodeList[T any](raw []byte, target *[]T) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*target = []T{}
		return nil
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return err
	}
	if *target == nil {
		*target = []T{}
	}
	return nil
}

// Package roster holds the gazette data model shared by the draft, reconciliation
// and commit layers.
package roster

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Scope selects which roster a timeline tracks.
type Scope string

const (
	ScopeOrg    Scope = "mindep"
	ScopePerson Scope = "person"
)

// ParseScope accepts the path segment used by the backend.
func ParseScope(raw string) (Scope, error) {
	switch Scope(raw) {
	case ScopeOrg, ScopePerson:
		return Scope(raw), nil
	}
	return "", fmt.Errorf("unknown scope %q", raw)
}

// Format is the gazette format of an organizational gazette. Personnel gazettes
// carry FormatNone.
type Format string

const (
	FormatNone      Format = ""
	FormatInitial   Format = "initial"
	FormatAmendment Format = "amendment"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatInitial, FormatAmendment:
		return Format(raw), nil
	case FormatNone, "-", "person":
		return FormatNone, nil
	}
	return "", fmt.Errorf("unknown gazette format %q", raw)
}

// CompositeKey joins two identities as secondary::primary. Keys are compared
// verbatim: no trimming, no case folding.
func CompositeKey(primary, secondary string) string {
	return secondary + "::" + primary
}

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

type Department struct {
	Name                       string `json:"name"`
	PreviousMinistry           string `json:"previous_ministry"`
	ShowPreviousMinistryEditor bool   `json:"show_previous_ministry"`
}

type Minister struct {
	Name        string       `json:"name"`
	Departments []Department `json:"departments"`
}

// MoveAnnotation marks a department as transferred in from PreviousMinistry.
type MoveAnnotation struct {
	MinisterName     string `json:"mName"`
	DepartmentName   string `json:"dName"`
	PreviousMinistry string `json:"prevMinistry"`
}

func (m MoveAnnotation) Key() string {
	return CompositeKey(m.MinisterName, m.DepartmentName)
}

// CloneMinisters copies ministers and their department slices.
func CloneMinisters(in []Minister) []Minister {
	if in == nil {
		return nil
	}
	out := make([]Minister, len(in))
	for i, m := range in {
		out[i] = Minister{Name: m.Name, Departments: append([]Department(nil), m.Departments...)}
	}
	return out
}

// Position is an ordinal typed as free text while editing. It decodes from either
// a JSON string or a JSON number.
type Position string

func (p *Position) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*p = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Position(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("position: %w", err)
		}
		*p = Position(n.String())
	}
	return nil
}

// Organizational amendment records. Positions are kept as typed text until the
// commit payload coerces them.

type OrgAdd struct {
	Department string   `json:"department"`
	ToMinistry string   `json:"to_ministry"`
	Position   Position `json:"position"`
}

type OrgMove struct {
	Department   string   `json:"department"`
	FromMinistry string   `json:"from_ministry"`
	ToMinistry   string   `json:"to_ministry"`
	Position     Position `json:"position"`
}

type OrgTerminate struct {
	Department   string `json:"department"`
	FromMinistry string `json:"from_ministry"`
}

// Personnel records.

type SuggestedTerminate struct {
	ExistingPerson   string `json:"existing_person"`
	ExistingMinistry string `json:"existing_ministry"`
	ExistingPosition string `json:"existing_position"`
	Mark             bool   `json:"mark"`
}

type PersonAdd struct {
	NewPerson           string               `json:"new_person"`
	NewMinistry         string               `json:"new_ministry"`
	NewPosition         string               `json:"new_position"`
	Date                string               `json:"date"`
	SuggestedTerminates []SuggestedTerminate `json:"suggested_terminates"`
}

type PersonMove struct {
	Name         string `json:"name"`
	FromMinistry string `json:"from_ministry"`
	FromPosition string `json:"from_position"`
	ToMinistry   string `json:"to_ministry"`
	ToPosition   string `json:"to_position"`
	Date         string `json:"date"`
}

type PersonTerminate struct {
	Name     string `json:"name"`
	Ministry string `json:"ministry"`
	Position string `json:"position"`
	Date     string `json:"date"`
}

// Matches reports whether the suggestion refers to the same office holder as t.
func (s SuggestedTerminate) Matches(t PersonTerminate) bool {
	return s.ExistingPerson == t.Name && s.ExistingMinistry == t.Ministry && s.ExistingPosition == t.Position
}

// Package commit turns a gazette draft into the backend's commit payload and
// sends it.
package commit

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sehansi-9/gztprocessor/internal/draft"
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// "filled" rejects strings that are empty after trimming whitespace.
	_ = v.RegisterValidation("filled", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

type InitialDepartment struct {
	Name             string `json:"name"`
	PreviousMinistry string `json:"previous_ministry,omitempty"`
}

type InitialMinister struct {
	Name        string              `json:"name" validate:"filled"`
	Departments []InitialDepartment `json:"departments"`
}

type OrgAddRecord struct {
	Type       string `json:"type"`
	Department string `json:"department" validate:"filled"`
	ToMinistry string `json:"to_ministry" validate:"filled"`
	Position   int    `json:"position"`
}

type OrgMoveRecord struct {
	Type         string `json:"type"`
	Department   string `json:"department" validate:"filled"`
	FromMinistry string `json:"from_ministry" validate:"filled"`
	ToMinistry   string `json:"to_ministry" validate:"filled"`
	Position     int    `json:"position"`
}

type OrgTerminateRecord struct {
	Type         string `json:"type"`
	Department   string `json:"department" validate:"filled"`
	FromMinistry string `json:"from_ministry" validate:"filled"`
}

type PersonAddRecord struct {
	Type        string `json:"type"`
	NewPerson   string `json:"new_person" validate:"filled"`
	NewMinistry string `json:"new_ministry" validate:"filled"`
	NewPosition string `json:"new_position" validate:"filled"`
	Date        string `json:"date"`
}

type PersonMoveRecord struct {
	Type         string `json:"type"`
	Name         string `json:"name" validate:"filled"`
	FromMinistry string `json:"from_ministry" validate:"filled"`
	ToMinistry   string `json:"to_ministry" validate:"filled"`
	FromPosition string `json:"from_position" validate:"filled"`
	ToPosition   string `json:"to_position" validate:"filled"`
	Date         string `json:"date"`
}

type PersonTerminateRecord struct {
	Type     string `json:"type"`
	Name     string `json:"name" validate:"filled"`
	Ministry string `json:"ministry" validate:"filled"`
	Position string `json:"position" validate:"filled"`
	Date     string `json:"date"`
}

// Transactions is the body shared by amendment and personnel commits.
type Transactions[A, M, T any] struct {
	Adds       []A `json:"adds"`
	Moves      []M `json:"moves"`
	Terminates []T `json:"terminates"`
}

type Envelope[A, M, T any] struct {
	Transactions Transactions[A, M, T] `json:"transactions"`
}

type (
	OrgAmendmentPayload = Envelope[OrgAddRecord, OrgMoveRecord, OrgTerminateRecord]
	PersonnelPayload    = Envelope[PersonAddRecord, PersonMoveRecord, PersonTerminateRecord]
)

// Payload is a shaped commit body with the number of records it carries.
type Payload struct {
	Body    any
	Records int
}

// BuildOrgInitial drops ministers with a blank name and attaches a department's
// previous ministry only when the department is annotated as moved and the value
// is filled in.
func BuildOrgInitial(d *draft.Initial) []InitialMinister {
	moved := make(map[string]struct{}, len(d.Moves))
	for _, m := range d.Moves {
		moved[m.Key()] = struct{}{}
	}
	out := make([]InitialMinister, 0, len(d.Ministers))
	for _, m := range d.Ministers {
		rec := InitialMinister{Name: m.Name, Departments: make([]InitialDepartment, 0, len(m.Departments))}
		if validate.Struct(rec) != nil {
			continue
		}
		for _, dep := range m.Departments {
			shaped := InitialDepartment{Name: dep.Name}
			if _, ok := moved[roster.CompositeKey(m.Name, dep.Name)]; ok && !roster.Blank(dep.PreviousMinistry) {
				shaped.PreviousMinistry = dep.PreviousMinistry
			}
			rec.Departments = append(rec.Departments, shaped)
		}
		out = append(out, rec)
	}
	return out
}

func BuildOrgAmendment(d *draft.Amendment) OrgAmendmentPayload {
	var p OrgAmendmentPayload
	p.Transactions.Adds = keep(d.Adds, func(a roster.OrgAdd) OrgAddRecord {
		return OrgAddRecord{Type: "ADD", Department: a.Department, ToMinistry: a.ToMinistry, Position: position(a.Position)}
	})
	p.Transactions.Moves = keep(d.Moves, func(m roster.OrgMove) OrgMoveRecord {
		return OrgMoveRecord{Type: "MOVE", Department: m.Department, FromMinistry: m.FromMinistry, ToMinistry: m.ToMinistry, Position: position(m.Position)}
	})
	p.Transactions.Terminates = keep(d.Terminates, func(t roster.OrgTerminate) OrgTerminateRecord {
		return OrgTerminateRecord{Type: "TERMINATE", Department: t.Department, FromMinistry: t.FromMinistry}
	})
	return p
}

// BuildPersonnel stamps every record without a date with today's date.
func BuildPersonnel(d *draft.Personnel, now time.Time) PersonnelPayload {
	today := now.Format(dateLayout)
	dated := func(date string) string {
		if roster.Blank(date) {
			return today
		}
		return date
	}
	var p PersonnelPayload
	p.Transactions.Adds = keep(d.Adds, func(a roster.PersonAdd) PersonAddRecord {
		return PersonAddRecord{Type: "ADD", NewPerson: a.NewPerson, NewMinistry: a.NewMinistry, NewPosition: a.NewPosition, Date: dated(a.Date)}
	})
	p.Transactions.Moves = keep(d.Moves, func(m roster.PersonMove) PersonMoveRecord {
		return PersonMoveRecord{
			Type:         "MOVE",
			Name:         m.Name,
			FromMinistry: m.FromMinistry,
			ToMinistry:   m.ToMinistry,
			FromPosition: m.FromPosition,
			ToPosition:   m.ToPosition,
			Date:         dated(m.Date),
		}
	})
	p.Transactions.Terminates = keep(d.Terminates, func(t roster.PersonTerminate) PersonTerminateRecord {
		return PersonTerminateRecord{Type: "TERMINATE", Name: t.Name, Ministry: t.Ministry, Position: t.Position, Date: dated(t.Date)}
	})
	return p
}

// Build shapes any draft variant.
func Build(d draft.Draft, now time.Time) (Payload, error) {
	switch v := d.(type) {
	case *draft.Initial:
		body := BuildOrgInitial(v)
		return Payload{Body: body, Records: len(body)}, nil
	case *draft.Amendment:
		body := BuildOrgAmendment(v)
		return Payload{Body: body, Records: body.Transactions.count()}, nil
	case *draft.Personnel:
		body := BuildPersonnel(v, now)
		return Payload{Body: body, Records: body.Transactions.count()}, nil
	}
	return Payload{}, ErrNoDraft
}

func (t Transactions[A, M, T]) count() int {
	return len(t.Adds) + len(t.Moves) + len(t.Terminates)
}

// keep shapes each record and drops the ones missing a required field.
func keep[In, Out any](items []In, shape func(In) Out) []Out {
	out := make([]Out, 0, len(items))
	for _, item := range items {
		rec := shape(item)
		if validate.Struct(rec) != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// position parses a typed ordinal; anything that is not an integer becomes 0.
func position(p roster.Position) int {
	n, err := strconv.Atoi(strings.TrimSpace(string(p)))
	if err != nil {
		return 0
	}
	return n
}

// Package draft implements the per-gazette transaction draft and the closed set
// of edits that can be applied to it.
//
// Drafts are values: Apply never mutates its input, it returns a new draft that
// shares every slice the edit did not touch.
package draft

import (
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

type Kind string

const (
	KindInitial   Kind = "initial"
	KindAmendment Kind = "amendment"
	KindPersonnel Kind = "personnel"
)

// Draft is one of *Initial, *Amendment or *Personnel.
type Draft interface {
	Kind() Kind
	Empty() bool
}

// Initial restates the whole ministry roster.
type Initial struct {
	Ministers []roster.Minister
	Moves     []roster.MoveAnnotation
}

// Amendment lists incremental organizational transactions.
type Amendment struct {
	Adds       []roster.OrgAdd
	Moves      []roster.OrgMove
	Terminates []roster.OrgTerminate
}

// Personnel lists office-holder transactions.
type Personnel struct {
	Adds       []roster.PersonAdd
	Moves      []roster.PersonMove
	Terminates []roster.PersonTerminate
}

func (*Initial) Kind() Kind   { return KindInitial }
func (*Amendment) Kind() Kind { return KindAmendment }
func (*Personnel) Kind() Kind { return KindPersonnel }

func (d *Initial) Empty() bool { return len(d.Ministers) == 0 && len(d.Moves) == 0 }
func (d *Amendment) Empty() bool {
	return len(d.Adds) == 0 && len(d.Moves) == 0 && len(d.Terminates) == 0
}
func (d *Personnel) Empty() bool {
	return len(d.Adds) == 0 && len(d.Moves) == 0 && len(d.Terminates) == 0
}

// KindFor picks the draft variant for a gazette. Organizational gazettes without
// a known format are treated as amendments.
func KindFor(scope roster.Scope, format roster.Format) Kind {
	if scope == roster.ScopePerson {
		return KindPersonnel
	}
	if format == roster.FormatInitial {
		return KindInitial
	}
	return KindAmendment
}

// New returns an empty draft of the given kind.
func New(kind Kind) Draft {
	switch kind {
	case KindInitial:
		return &Initial{Ministers: []roster.Minister{}, Moves: []roster.MoveAnnotation{}}
	case KindPersonnel:
		return &Personnel{Adds: []roster.PersonAdd{}, Moves: []roster.PersonMove{}, Terminates: []roster.PersonTerminate{}}
	default:
		return &Amendment{Adds: []roster.OrgAdd{}, Moves: []roster.OrgMove{}, Terminates: []roster.OrgTerminate{}}
	}
}

// IsMoved reports whether the department under the minister carries a move
// annotation.
func (d *Initial) IsMoved(ministerName, departmentName string) bool {
	key := roster.CompositeKey(ministerName, departmentName)
	for _, m := range d.Moves {
		if m.Key() == key {
			return true
		}
	}
	return false
}

// Normalize opens the previous-ministry editor on every department that already
// has a value. Used after a draft is loaded from the backend.
func Normalize(d Draft) Draft {
	in, ok := d.(*Initial)
	if !ok {
		return d
	}
	out := &Initial{Ministers: roster.CloneMinisters(in.Ministers), Moves: in.Moves}
	for i := range out.Ministers {
		for j := range out.Ministers[i].Departments {
			dep := &out.Ministers[i].Departments[j]
			if !roster.Blank(dep.PreviousMinistry) {
				dep.ShowPreviousMinistryEditor = true
			}
		}
	}
	return out
}

// Clone deep-copies a draft.
func Clone(d Draft) Draft {
	switch v := d.(type) {
	case *Initial:
		return &Initial{Ministers: roster.CloneMinisters(v.Ministers), Moves: append([]roster.MoveAnnotation(nil), v.Moves...)}
	case *Amendment:
		return &Amendment{
			Adds:       append([]roster.OrgAdd(nil), v.Adds...),
			Moves:      append([]roster.OrgMove(nil), v.Moves...),
			Terminates: append([]roster.OrgTerminate(nil), v.Terminates...),
		}
	case *Personnel:
		adds := make([]roster.PersonAdd, len(v.Adds))
		for i, a := range v.Adds {
			a.SuggestedTerminates = append([]roster.SuggestedTerminate(nil), a.SuggestedTerminates...)
			adds[i] = a
		}
		return &Personnel{
			Adds:       adds,
			Moves:      append([]roster.PersonMove(nil), v.Moves...),
			Terminates: append([]roster.PersonTerminate(nil), v.Terminates...),
		}
	}
	return d
}

func removeMoves(moves []roster.MoveAnnotation, keys map[string]struct{}) []roster.MoveAnnotation {
	out := make([]roster.MoveAnnotation, 0, len(moves))
	for _, m := range moves {
		if _, drop := keys[m.Key()]; drop {
			continue
		}
		out = append(out, m)
	}
	return out
}

package draft

import (
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

var orgAddFields = map[string]func(*roster.OrgAdd, string){
	"department":  func(r *roster.OrgAdd, v string) { r.Department = v },
	"to_ministry": func(r *roster.OrgAdd, v string) { r.ToMinistry = v },
	"position":    func(r *roster.OrgAdd, v string) { r.Position = roster.Position(v) },
}

var orgMoveFields = map[string]func(*roster.OrgMove, string){
	"department":    func(r *roster.OrgMove, v string) { r.Department = v },
	"from_ministry": func(r *roster.OrgMove, v string) { r.FromMinistry = v },
	"to_ministry":   func(r *roster.OrgMove, v string) { r.ToMinistry = v },
	"position":      func(r *roster.OrgMove, v string) { r.Position = roster.Position(v) },
}

var orgTerminateFields = map[string]func(*roster.OrgTerminate, string){
	"department":    func(r *roster.OrgTerminate, v string) { r.Department = v },
	"from_ministry": func(r *roster.OrgTerminate, v string) { r.FromMinistry = v },
}

var personAddFields = map[string]func(*roster.PersonAdd, string){
	"new_person":   func(r *roster.PersonAdd, v string) { r.NewPerson = v },
	"new_ministry": func(r *roster.PersonAdd, v string) { r.NewMinistry = v },
	"new_position": func(r *roster.PersonAdd, v string) { r.NewPosition = v },
	"date":         func(r *roster.PersonAdd, v string) { r.Date = v },
}

var personMoveFields = map[string]func(*roster.PersonMove, string){
	"name":          func(r *roster.PersonMove, v string) { r.Name = v },
	"from_ministry": func(r *roster.PersonMove, v string) { r.FromMinistry = v },
	"from_position": func(r *roster.PersonMove, v string) { r.FromPosition = v },
	"to_ministry":   func(r *roster.PersonMove, v string) { r.ToMinistry = v },
	"to_position":   func(r *roster.PersonMove, v string) { r.ToPosition = v },
	"date":          func(r *roster.PersonMove, v string) { r.Date = v },
}

var personTerminateFields = map[string]func(*roster.PersonTerminate, string){
	"name":     func(r *roster.PersonTerminate, v string) { r.Name = v },
	"ministry": func(r *roster.PersonTerminate, v string) { r.Ministry = v },
	"position": func(r *roster.PersonTerminate, v string) { r.Position = v },
	"date":     func(r *roster.PersonTerminate, v string) { r.Date = v },
}

var suggestionFields = map[string]func(*roster.SuggestedTerminate, string){
	"existing_person":   func(r *roster.SuggestedTerminate, v string) { r.ExistingPerson = v },
	"existing_ministry": func(r *roster.SuggestedTerminate, v string) { r.ExistingMinistry = v },
	"existing_position": func(r *roster.SuggestedTerminate, v string) { r.ExistingPosition = v },
}

// setField copies list, applies the named setter to list[index] and returns the copy.
func setField[T any](action Action, list []T, index int, setters map[string]func(*T, string), field, value string) ([]T, error) {
	if !inRange(index, len(list)) {
		return nil, outOfRange(action, "entry", index)
	}
	set, ok := setters[field]
	if !ok {
		return nil, invalid(action.Name(), "unknown field %q", field)
	}
	out := append([]T(nil), list...)
	set(&out[index], value)
	return out, nil
}

func appendBlank[T any](list []T, blank T) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, list...)
	return append(out, blank)
}

func removeAt[T any](action Action, list []T, index int) ([]T, error) {
	if !inRange(index, len(list)) {
		return nil, outOfRange(action, "entry", index)
	}
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:index]...)
	return append(out, list[index+1:]...), nil
}

func applyAmendment(d *Amendment, action Action) (Draft, error) {
	out := *d
	var err error
	switch a := action.(type) {
	case ChangeField:
		switch a.Section {
		case SectionAdds:
			out.Adds, err = setField(a, d.Adds, a.Index, orgAddFields, a.Field, a.Value)
		case SectionMoves:
			out.Moves, err = setField(a, d.Moves, a.Index, orgMoveFields, a.Field, a.Value)
		case SectionTerminates:
			out.Terminates, err = setField(a, d.Terminates, a.Index, orgTerminateFields, a.Field, a.Value)
		default:
			err = unknownSection(a, a.Section)
		}
	case AddEntry:
		switch a.Section {
		case SectionAdds:
			out.Adds = appendBlank(d.Adds, roster.OrgAdd{})
		case SectionMoves:
			out.Moves = appendBlank(d.Moves, roster.OrgMove{})
		case SectionTerminates:
			out.Terminates = appendBlank(d.Terminates, roster.OrgTerminate{})
		default:
			err = unknownSection(a, a.Section)
		}
	case RemoveEntry:
		switch a.Section {
		case SectionAdds:
			out.Adds, err = removeAt(a, d.Adds, a.Index)
		case SectionMoves:
			out.Moves, err = removeAt(a, d.Moves, a.Index)
		case SectionTerminates:
			out.Terminates, err = removeAt(a, d.Terminates, a.Index)
		default:
			err = unknownSection(a, a.Section)
		}
	default:
		return d, invalid(action.Name(), "not applicable to an amendment draft")
	}
	if err != nil {
		return d, err
	}
	return &out, nil
}

func applyPersonnel(d *Personnel, action Action) (Draft, error) {
	out := *d
	var err error
	switch a := action.(type) {
	case ChangeField:
		switch a.Section {
		case SectionAdds:
			out.Adds, err = setField(a, d.Adds, a.Index, personAddFields, a.Field, a.Value)
		case SectionMoves:
			out.Moves, err = setField(a, d.Moves, a.Index, personMoveFields, a.Field, a.Value)
		case SectionTerminates:
			out.Terminates, err = setField(a, d.Terminates, a.Index, personTerminateFields, a.Field, a.Value)
		default:
			err = unknownSection(a, a.Section)
		}
	case AddEntry:
		switch a.Section {
		case SectionAdds:
			out.Adds = appendBlank(d.Adds, roster.PersonAdd{SuggestedTerminates: []roster.SuggestedTerminate{}})
		case SectionMoves:
			out.Moves = appendBlank(d.Moves, roster.PersonMove{})
		case SectionTerminates:
			out.Terminates = appendBlank(d.Terminates, roster.PersonTerminate{})
		default:
			err = unknownSection(a, a.Section)
		}
	case RemoveEntry:
		switch a.Section {
		case SectionAdds:
			out.Adds, err = removeAt(a, d.Adds, a.Index)
		case SectionMoves:
			out.Moves, err = removeAt(a, d.Moves, a.Index)
		case SectionTerminates:
			if !inRange(a.Index, len(d.Terminates)) {
				return d, outOfRange(a, "entry", a.Index)
			}
			removed := d.Terminates[a.Index]
			out.Terminates, err = removeAt(a, d.Terminates, a.Index)
			out.Adds = unmarkSuggestions(d.Adds, removed)
		default:
			err = unknownSection(a, a.Section)
		}
	case ToggleSuggestedTerminateMark:
		return toggleSuggestion(d, a)
	case ChangeSuggestedTerminateField:
		if !inRange(a.AddIndex, len(d.Adds)) {
			return d, outOfRange(a, "add", a.AddIndex)
		}
		suggestions, serr := setField(a, d.Adds[a.AddIndex].SuggestedTerminates, a.SuggestionIndex, suggestionFields, a.Field, a.Value)
		if serr != nil {
			return d, serr
		}
		out.Adds = append([]roster.PersonAdd(nil), d.Adds...)
		out.Adds[a.AddIndex].SuggestedTerminates = suggestions
	case DissolveMove:
		return dissolveMove(d, a)
	default:
		return d, invalid(action.Name(), "not applicable to a personnel draft")
	}
	if err != nil {
		return d, err
	}
	return &out, nil
}

// unmarkSuggestions clears Mark on every suggestion that mirrors t. Adds are
// copied only when something changes.
func unmarkSuggestions(adds []roster.PersonAdd, t roster.PersonTerminate) []roster.PersonAdd {
	var out []roster.PersonAdd
	for i, add := range adds {
		copied := false
		for j, s := range add.SuggestedTerminates {
			if !s.Mark || !s.Matches(t) {
				continue
			}
			if out == nil {
				out = append([]roster.PersonAdd(nil), adds...)
			}
			if !copied {
				out[i].SuggestedTerminates = append([]roster.SuggestedTerminate(nil), add.SuggestedTerminates...)
				copied = true
			}
			out[i].SuggestedTerminates[j].Mark = false
		}
	}
	if out == nil {
		return adds
	}
	return out
}

func toggleSuggestion(d *Personnel, a ToggleSuggestedTerminateMark) (Draft, error) {
	if !inRange(a.AddIndex, len(d.Adds)) {
		return d, outOfRange(a, "add", a.AddIndex)
	}
	if !inRange(a.SuggestionIndex, len(d.Adds[a.AddIndex].SuggestedTerminates)) {
		return d, outOfRange(a, "suggestion", a.SuggestionIndex)
	}
	out := *d
	out.Adds = append([]roster.PersonAdd(nil), d.Adds...)
	suggestions := append([]roster.SuggestedTerminate(nil), d.Adds[a.AddIndex].SuggestedTerminates...)
	s := &suggestions[a.SuggestionIndex]
	s.Mark = !s.Mark
	out.Adds[a.AddIndex].SuggestedTerminates = suggestions

	if s.Mark {
		for _, t := range d.Terminates {
			if s.Matches(t) {
				return &out, nil
			}
		}
		out.Terminates = appendBlank(d.Terminates, roster.PersonTerminate{
			Name:     s.ExistingPerson,
			Ministry: s.ExistingMinistry,
			Position: s.ExistingPosition,
		})
		return &out, nil
	}

	kept := make([]roster.PersonTerminate, 0, len(d.Terminates))
	for _, t := range d.Terminates {
		if !s.Matches(t) {
			kept = append(kept, t)
		}
	}
	out.Terminates = kept
	return &out, nil
}

func dissolveMove(d *Personnel, a DissolveMove) (Draft, error) {
	if !inRange(a.Index, len(d.Moves)) {
		return d, outOfRange(a, "move", a.Index)
	}
	m := d.Moves[a.Index]
	if m.Name == "" || m.FromMinistry == "" || m.FromPosition == "" || m.ToMinistry == "" || m.ToPosition == "" {
		return d, ErrIncompleteMove
	}
	moves, err := removeAt(a, d.Moves, a.Index)
	if err != nil {
		return d, err
	}
	return &Personnel{
		Adds: appendBlank(d.Adds, roster.PersonAdd{
			NewPerson:           m.Name,
			NewMinistry:         m.ToMinistry,
			NewPosition:         m.ToPosition,
			Date:                m.Date,
			SuggestedTerminates: []roster.SuggestedTerminate{},
		}),
		Moves: moves,
		Terminates: appendBlank(d.Terminates, roster.PersonTerminate{
			Name:     m.Name,
			Ministry: m.FromMinistry,
			Position: m.FromPosition,
			Date:     m.Date,
		}),
	}, nil
}

func unknownSection(action Action, section Section) error {
	return invalid(action.Name(), "unknown section %q", section)
}

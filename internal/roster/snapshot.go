package roster

import "strings"

// MinisterState is the backend's committed view of one minister.
type MinisterState struct {
	Name        string   `json:"name"`
	Departments []string `json:"departments"`
}

type Portfolio struct {
	Position     string `json:"position"`
	MinistryName string `json:"name"`
}

// PersonState is the backend's committed view of one office holder.
type PersonState struct {
	PersonName string      `json:"person_name"`
	Portfolios []Portfolio `json:"portfolios"`
}

// Snapshot is the roster in effect as of a gazette. Only the list matching the
// timeline's scope is meaningful.
type Snapshot struct {
	Ministers []MinisterState `json:"ministers,omitempty"`
	Persons   []PersonState   `json:"persons,omitempty"`
}

// EmptySnapshot returns a resolved snapshot with no entries.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Ministers: []MinisterState{}, Persons: []PersonState{}}
}

// Len counts the entries relevant to scope.
func (s *Snapshot) Len(scope Scope) int {
	if s == nil {
		return 0
	}
	if scope == ScopePerson {
		return len(s.Persons)
	}
	return len(s.Ministers)
}

// Clone returns a deep copy; the result never shares backing arrays with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Ministers: make([]MinisterState, len(s.Ministers)),
		Persons:   make([]PersonState, len(s.Persons)),
	}
	for i, m := range s.Ministers {
		out.Ministers[i] = MinisterState{Name: m.Name, Departments: append([]string{}, m.Departments...)}
	}
	for i, p := range s.Persons {
		out.Persons[i] = PersonState{PersonName: p.PersonName, Portfolios: append([]Portfolio{}, p.Portfolios...)}
	}
	return out
}

// Filter keeps entries whose names contain query, ignoring case. Ministers match
// on their own name or any department; persons on their name or any portfolio.
func (s *Snapshot) Filter(scope Scope, query string) *Snapshot {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || s == nil {
		return s.Clone()
	}
	out := EmptySnapshot()
	contains := func(v string) bool { return strings.Contains(strings.ToLower(v), q) }
	if scope == ScopePerson {
		for _, p := range s.Persons {
			hit := contains(p.PersonName)
			for _, pf := range p.Portfolios {
				hit = hit || contains(pf.Position) || contains(pf.MinistryName)
			}
			if hit {
				out.Persons = append(out.Persons, PersonState{PersonName: p.PersonName, Portfolios: append([]Portfolio{}, p.Portfolios...)})
			}
		}
		return out
	}
	for _, m := range s.Ministers {
		hit := contains(m.Name)
		for _, d := range m.Departments {
			hit = hit || contains(d)
		}
		if hit {
			out.Ministers = append(out.Ministers, MinisterState{Name: m.Name, Departments: append([]string{}, m.Departments...)})
		}
	}
	return out
}

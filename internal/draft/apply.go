package draft

import (
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

// Apply returns the draft that results from applying action to d. The input is
// left untouched. A rejected action returns d and a *ValidationError.
func Apply(d Draft, action Action) (Draft, error) {
	switch v := d.(type) {
	case *Initial:
		return applyInitial(v, action)
	case *Amendment:
		return applyAmendment(v, action)
	case *Personnel:
		return applyPersonnel(v, action)
	case nil:
		return d, invalid(action.Name(), "no draft loaded")
	}
	return d, invalid(action.Name(), "unsupported draft %T", d)
}

func applyInitial(d *Initial, action Action) (Draft, error) {
	switch a := action.(type) {
	case RenameMinister:
		if !inRange(a.Index, len(d.Ministers)) {
			return d, outOfRange(a, "minister", a.Index)
		}
		out := d.withMinisters()
		out.Ministers[a.Index].Name = a.NewName
		return out, nil

	case RenameDepartment:
		return d.editDepartment(a, a.MinisterIndex, a.DepartmentIndex, func(_ *Initial, dep *roster.Department) {
			dep.Name = a.NewName
		})

	case SetPreviousMinistry:
		return d.editDepartment(a, a.MinisterIndex, a.DepartmentIndex, func(_ *Initial, dep *roster.Department) {
			dep.PreviousMinistry = a.Value
		})

	case ShowPreviousMinistryEditor:
		return d.editDepartment(a, a.MinisterIndex, a.DepartmentIndex, func(_ *Initial, dep *roster.Department) {
			dep.ShowPreviousMinistryEditor = true
		})

	case HidePreviousMinistryEditor:
		return d.editDepartment(a, a.MinisterIndex, a.DepartmentIndex, func(out *Initial, dep *roster.Department) {
			key := roster.CompositeKey(out.Ministers[a.MinisterIndex].Name, dep.Name)
			dep.ShowPreviousMinistryEditor = false
			dep.PreviousMinistry = ""
			out.Moves = removeMoves(out.Moves, map[string]struct{}{key: {}})
		})

	case InsertMinister:
		if a.AfterIndex < -1 || a.AfterIndex >= len(d.Ministers) {
			return d, outOfRange(a, "minister", a.AfterIndex)
		}
		at := a.AfterIndex + 1
		ministers := make([]roster.Minister, 0, len(d.Ministers)+1)
		ministers = append(ministers, d.Ministers[:at]...)
		ministers = append(ministers, roster.Minister{Departments: []roster.Department{{}}})
		ministers = append(ministers, d.Ministers[at:]...)
		return &Initial{Ministers: ministers, Moves: d.Moves}, nil

	case RemoveMinister:
		if !inRange(a.Index, len(d.Ministers)) {
			return d, outOfRange(a, "minister", a.Index)
		}
		if len(d.Ministers) <= 1 {
			return d, nil
		}
		removed := d.Ministers[a.Index]
		keys := make(map[string]struct{}, len(removed.Departments))
		for _, dep := range removed.Departments {
			keys[roster.CompositeKey(removed.Name, dep.Name)] = struct{}{}
		}
		ministers := make([]roster.Minister, 0, len(d.Ministers)-1)
		ministers = append(ministers, d.Ministers[:a.Index]...)
		ministers = append(ministers, d.Ministers[a.Index+1:]...)
		return &Initial{Ministers: ministers, Moves: removeMoves(d.Moves, keys)}, nil

	case InsertDepartment:
		if !inRange(a.MinisterIndex, len(d.Ministers)) {
			return d, outOfRange(a, "minister", a.MinisterIndex)
		}
		deps := d.Ministers[a.MinisterIndex].Departments
		if a.AfterIndex < -1 || a.AfterIndex >= len(deps) {
			return d, outOfRange(a, "department", a.AfterIndex)
		}
		at := len(deps)
		if a.AfterIndex >= 0 {
			at = a.AfterIndex + 1
		}
		next := make([]roster.Department, 0, len(deps)+1)
		next = append(next, deps[:at]...)
		next = append(next, roster.Department{})
		next = append(next, deps[at:]...)
		out := d.withMinisters()
		out.Ministers[a.MinisterIndex].Departments = next
		return out, nil

	case RemoveDepartment:
		if !inRange(a.MinisterIndex, len(d.Ministers)) {
			return d, outOfRange(a, "minister", a.MinisterIndex)
		}
		minister := d.Ministers[a.MinisterIndex]
		if !inRange(a.DepartmentIndex, len(minister.Departments)) {
			return d, outOfRange(a, "department", a.DepartmentIndex)
		}
		key := roster.CompositeKey(minister.Name, minister.Departments[a.DepartmentIndex].Name)
		next := make([]roster.Department, 0, len(minister.Departments)-1)
		next = append(next, minister.Departments[:a.DepartmentIndex]...)
		next = append(next, minister.Departments[a.DepartmentIndex+1:]...)
		out := d.withMinisters()
		out.Ministers[a.MinisterIndex].Departments = next
		out.Moves = removeMoves(d.Moves, map[string]struct{}{key: {}})
		return out, nil

	case ToggleMove:
		if roster.Blank(a.MinisterName) || roster.Blank(a.DepartmentName) {
			return d, nil
		}
		if d.IsMoved(a.MinisterName, a.DepartmentName) {
			key := roster.CompositeKey(a.MinisterName, a.DepartmentName)
			return &Initial{Ministers: d.Ministers, Moves: removeMoves(d.Moves, map[string]struct{}{key: {}})}, nil
		}
		moves := make([]roster.MoveAnnotation, 0, len(d.Moves)+1)
		moves = append(moves, d.Moves...)
		moves = append(moves, roster.MoveAnnotation{
			MinisterName:     a.MinisterName,
			DepartmentName:   a.DepartmentName,
			PreviousMinistry: a.PreviousMinistry,
		})
		return &Initial{Ministers: d.Ministers, Moves: moves}, nil

	case RemoveMoveAnnotation:
		key := roster.CompositeKey(a.MinisterName, a.DepartmentName)
		return &Initial{Ministers: d.Ministers, Moves: removeMoves(d.Moves, map[string]struct{}{key: {}})}, nil
	}
	return d, invalid(action.Name(), "not applicable to an initial draft")
}

// withMinisters copies the minister list so one entry can be edited in place.
func (d *Initial) withMinisters() *Initial {
	return &Initial{Ministers: roster.CloneMinisters(d.Ministers), Moves: d.Moves}
}

func (d *Initial) editDepartment(action Action, mIdx, dIdx int, edit func(*Initial, *roster.Department)) (Draft, error) {
	if !inRange(mIdx, len(d.Ministers)) {
		return d, outOfRange(action, "minister", mIdx)
	}
	if !inRange(dIdx, len(d.Ministers[mIdx].Departments)) {
		return d, outOfRange(action, "department", dIdx)
	}
	out := d.withMinisters()
	edit(out, &out.Ministers[mIdx].Departments[dIdx])
	return out, nil
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

func outOfRange(action Action, what string, index int) error {
	return invalid(action.Name(), "%s index %d out of range", what, index)
}

package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehansi-9/gztprocessor/internal/roster"
)

func initialFixture() *Initial {
	return &Initial{
		Ministers: []roster.Minister{
			{Name: "Finance", Departments: []roster.Department{{Name: "Trade", PreviousMinistry: "Commerce"}, {Name: "Treasury"}}},
			{Name: "Health", Departments: []roster.Department{{Name: "Hospitals"}}},
		},
		Moves: []roster.MoveAnnotation{},
	}
}

func mustApply(t *testing.T, d Draft, a Action) Draft {
	t.Helper()
	out, err := Apply(d, a)
	require.NoError(t, err)
	return out
}

func TestToggleMoveTwiceRestoresSet(t *testing.T) {
	d := initialFixture()
	toggle := ToggleMove{MinisterName: "Finance", DepartmentName: "Trade", PreviousMinistry: "Commerce"}

	once := mustApply(t, d, toggle).(*Initial)
	require.Len(t, once.Moves, 1)
	assert.True(t, once.IsMoved("Finance", "Trade"))
	assert.Equal(t, "Commerce", once.Moves[0].PreviousMinistry)

	twice := mustApply(t, once, toggle).(*Initial)
	assert.Empty(t, twice.Moves)
	assert.False(t, twice.IsMoved("Finance", "Trade"))
	assert.Empty(t, d.Moves, "input draft must not change")
}

func TestToggleMoveIgnoresBlankNames(t *testing.T) {
	d := initialFixture()
	out := mustApply(t, d, ToggleMove{MinisterName: "  ", DepartmentName: "Trade"}).(*Initial)
	assert.Empty(t, out.Moves)
	out = mustApply(t, d, ToggleMove{MinisterName: "Finance", DepartmentName: ""}).(*Initial)
	assert.Empty(t, out.Moves)
}

func TestRemoveMinisterPurgesItsAnnotations(t *testing.T) {
	d := initialFixture()
	d.Moves = []roster.MoveAnnotation{
		{MinisterName: "Finance", DepartmentName: "Trade", PreviousMinistry: "Commerce"},
		{MinisterName: "Finance", DepartmentName: "Treasury", PreviousMinistry: "Planning"},
		{MinisterName: "Health", DepartmentName: "Hospitals", PreviousMinistry: "Welfare"},
	}

	out := mustApply(t, d, RemoveMinister{Index: 0}).(*Initial)
	require.Len(t, out.Ministers, 1)
	assert.Equal(t, "Health", out.Ministers[0].Name)
	require.Len(t, out.Moves, 1)
	assert.Equal(t, "Hospitals::Health", out.Moves[0].Key())
	assert.Len(t, d.Ministers, 2)
}

func TestRemoveLastMinisterIsNoop(t *testing.T) {
	d := &Initial{Ministers: []roster.Minister{{Name: "Only", Departments: []roster.Department{{}}}}}
	out := mustApply(t, d, RemoveMinister{Index: 0}).(*Initial)
	assert.Len(t, out.Ministers, 1)
}

func TestInsertMinisterAddsBlankAfterIndex(t *testing.T) {
	out := mustApply(t, initialFixture(), InsertMinister{AfterIndex: 0}).(*Initial)
	require.Len(t, out.Ministers, 3)
	assert.Equal(t, "", out.Ministers[1].Name)
	assert.Equal(t, []roster.Department{{}}, out.Ministers[1].Departments)
	assert.Equal(t, "Health", out.Ministers[2].Name)

	_, err := Apply(initialFixture(), InsertMinister{AfterIndex: 5})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestInsertDepartment(t *testing.T) {
	d := initialFixture()
	out := mustApply(t, d, InsertDepartment{MinisterIndex: 0, AfterIndex: 0}).(*Initial)
	names := []string{}
	for _, dep := range out.Ministers[0].Departments {
		names = append(names, dep.Name)
	}
	assert.Equal(t, []string{"Trade", "", "Treasury"}, names)

	empty := &Initial{Ministers: []roster.Minister{{Name: "New", Departments: []roster.Department{}}}}
	out = mustApply(t, empty, InsertDepartment{MinisterIndex: 0, AfterIndex: -1}).(*Initial)
	assert.Len(t, out.Ministers[0].Departments, 1)
	assert.Empty(t, empty.Ministers[0].Departments)
}

func TestRemoveDepartmentPurgesAnnotation(t *testing.T) {
	d := initialFixture()
	d.Moves = []roster.MoveAnnotation{{MinisterName: "Finance", DepartmentName: "Trade", PreviousMinistry: "Commerce"}}
	out := mustApply(t, d, RemoveDepartment{MinisterIndex: 0, DepartmentIndex: 0}).(*Initial)
	assert.Len(t, out.Ministers[0].Departments, 1)
	assert.Empty(t, out.Moves)
	assert.Len(t, d.Ministers[0].Departments, 2)
}

func TestPreviousMinistryEditor(t *testing.T) {
	d := initialFixture()
	d.Moves = []roster.MoveAnnotation{{MinisterName: "Finance", DepartmentName: "Treasury", PreviousMinistry: "Planning"}}

	shown := mustApply(t, d, ShowPreviousMinistryEditor{MinisterIndex: 0, DepartmentIndex: 1}).(*Initial)
	dep := shown.Ministers[0].Departments[1]
	assert.True(t, dep.ShowPreviousMinistryEditor)
	assert.Equal(t, "", dep.PreviousMinistry)

	set := mustApply(t, shown, SetPreviousMinistry{MinisterIndex: 0, DepartmentIndex: 1, Value: "Planning"}).(*Initial)
	assert.Equal(t, "Planning", set.Ministers[0].Departments[1].PreviousMinistry)

	hidden := mustApply(t, set, HidePreviousMinistryEditor{MinisterIndex: 0, DepartmentIndex: 1}).(*Initial)
	dep = hidden.Ministers[0].Departments[1]
	assert.False(t, dep.ShowPreviousMinistryEditor)
	assert.Equal(t, "", dep.PreviousMinistry)
	assert.Empty(t, hidden.Moves)
	assert.Equal(t, "Planning", set.Ministers[0].Departments[1].PreviousMinistry)
}

func TestRenameDoesNotAliasInput(t *testing.T) {
	d := initialFixture()
	out := mustApply(t, d, RenameMinister{Index: 1, NewName: "Health and Nutrition"}).(*Initial)
	out = mustApply(t, out, RenameDepartment{MinisterIndex: 1, DepartmentIndex: 0, NewName: "Teaching Hospitals"}).(*Initial)
	assert.Equal(t, "Health and Nutrition", out.Ministers[1].Name)
	assert.Equal(t, "Teaching Hospitals", out.Ministers[1].Departments[0].Name)
	assert.Equal(t, "Health", d.Ministers[1].Name)
	assert.Equal(t, "Hospitals", d.Ministers[1].Departments[0].Name)
}

func TestRemoveMoveAnnotationIsUnconditional(t *testing.T) {
	d := initialFixture()
	d.Moves = []roster.MoveAnnotation{{MinisterName: "Ghost", DepartmentName: "Gone"}}
	out := mustApply(t, d, RemoveMoveAnnotation{MinisterName: "Ghost", DepartmentName: "Gone"}).(*Initial)
	assert.Empty(t, out.Moves)
	out = mustApply(t, out, RemoveMoveAnnotation{MinisterName: "Ghost", DepartmentName: "Gone"}).(*Initial)
	assert.Empty(t, out.Moves)
}

func TestSectionActionRejectedOnInitialDraft(t *testing.T) {
	d := initialFixture()
	out, err := Apply(d, AddEntry{Section: SectionAdds})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Same(t, d, out)
}

func TestAmendmentSections(t *testing.T) {
	var d Draft = New(KindAmendment)
	d = mustApply(t, d, AddEntry{Section: SectionMoves})
	d = mustApply(t, d, ChangeField{Section: SectionMoves, Index: 0, Field: "department", Value: "Trade"})
	d = mustApply(t, d, ChangeField{Section: SectionMoves, Index: 0, Field: "position", Value: "4"})

	a := d.(*Amendment)
	require.Len(t, a.Moves, 1)
	assert.Equal(t, "Trade", a.Moves[0].Department)
	assert.Equal(t, roster.Position("4"), a.Moves[0].Position)

	_, err := Apply(d, ChangeField{Section: SectionMoves, Index: 0, Field: "colour", Value: "x"})
	assert.Error(t, err)
	_, err = Apply(d, RemoveEntry{Section: SectionAdds, Index: 0})
	assert.Error(t, err)

	d = mustApply(t, d, RemoveEntry{Section: SectionMoves, Index: 0})
	assert.Empty(t, d.(*Amendment).Moves)
	assert.Len(t, a.Moves, 1)
}

func personnelFixture() *Personnel {
	return &Personnel{
		Adds: []roster.PersonAdd{{
			NewPerson:   "A. Perera",
			NewMinistry: "Health",
			NewPosition: "Minister",
			SuggestedTerminates: []roster.SuggestedTerminate{
				{ExistingPerson: "B. Silva", ExistingMinistry: "Health", ExistingPosition: "Minister"},
			},
		}},
		Moves:      []roster.PersonMove{},
		Terminates: []roster.PersonTerminate{},
	}
}

func TestSuggestedTerminateMarkMirrorsIntoTerminates(t *testing.T) {
	d := personnelFixture()
	toggle := ToggleSuggestedTerminateMark{AddIndex: 0, SuggestionIndex: 0}

	marked := mustApply(t, d, toggle).(*Personnel)
	require.Len(t, marked.Terminates, 1)
	assert.Equal(t, roster.PersonTerminate{Name: "B. Silva", Ministry: "Health", Position: "Minister"}, marked.Terminates[0])
	assert.True(t, marked.Adds[0].SuggestedTerminates[0].Mark)
	assert.False(t, d.Adds[0].SuggestedTerminates[0].Mark)

	unmarked := mustApply(t, marked, toggle).(*Personnel)
	assert.Empty(t, unmarked.Terminates)
	assert.False(t, unmarked.Adds[0].SuggestedTerminates[0].Mark)
}

func TestSuggestedTerminateMarkDedupes(t *testing.T) {
	d := personnelFixture()
	d.Terminates = []roster.PersonTerminate{{Name: "B. Silva", Ministry: "Health", Position: "Minister", Date: "2022-07-22"}}
	out := mustApply(t, d, ToggleSuggestedTerminateMark{AddIndex: 0, SuggestionIndex: 0}).(*Personnel)
	assert.Len(t, out.Terminates, 1)
}

func TestRemoveTerminateClearsMark(t *testing.T) {
	d := mustApply(t, personnelFixture(), ToggleSuggestedTerminateMark{AddIndex: 0, SuggestionIndex: 0}).(*Personnel)
	require.True(t, d.Adds[0].SuggestedTerminates[0].Mark)

	out := mustApply(t, d, RemoveEntry{Section: SectionTerminates, Index: 0}).(*Personnel)
	assert.Empty(t, out.Terminates)
	assert.False(t, out.Adds[0].SuggestedTerminates[0].Mark)
	assert.True(t, d.Adds[0].SuggestedTerminates[0].Mark)
}

func TestChangeSuggestedTerminateField(t *testing.T) {
	d := personnelFixture()
	out := mustApply(t, d, ChangeSuggestedTerminateField{AddIndex: 0, SuggestionIndex: 0, Field: "existing_position", Value: "Deputy Minister"}).(*Personnel)
	assert.Equal(t, "Deputy Minister", out.Adds[0].SuggestedTerminates[0].ExistingPosition)
	assert.Equal(t, "Minister", d.Adds[0].SuggestedTerminates[0].ExistingPosition)
}

func TestDissolveMove(t *testing.T) {
	d := personnelFixture()
	d.Adds = []roster.PersonAdd{}
	d.Moves = []roster.PersonMove{{
		Name: "C. Fernando", FromMinistry: "Trade", FromPosition: "Minister",
		ToMinistry: "Finance", ToPosition: "State Minister", Date: "2022-08-01",
	}}

	out := mustApply(t, d, DissolveMove{Index: 0}).(*Personnel)
	assert.Empty(t, out.Moves)
	require.Len(t, out.Adds, 1)
	assert.Equal(t, roster.PersonAdd{
		NewPerson: "C. Fernando", NewMinistry: "Finance", NewPosition: "State Minister",
		Date: "2022-08-01", SuggestedTerminates: []roster.SuggestedTerminate{},
	}, out.Adds[0])
	require.Len(t, out.Terminates, 1)
	assert.Equal(t, roster.PersonTerminate{Name: "C. Fernando", Ministry: "Trade", Position: "Minister", Date: "2022-08-01"}, out.Terminates[0])
}

func TestDissolveIncompleteMoveIsRejected(t *testing.T) {
	d := personnelFixture()
	d.Moves = []roster.PersonMove{{Name: "C. Fernando", FromMinistry: "Trade", FromPosition: "Minister", ToMinistry: "Finance"}}

	out, err := Apply(d, DissolveMove{Index: 0})
	assert.ErrorIs(t, err, ErrIncompleteMove)
	assert.Same(t, d, out)
	assert.Len(t, d.Moves, 1)
	assert.Len(t, d.Adds, 1)
	assert.Empty(t, d.Terminates)
}

func TestApplyWithoutDraft(t *testing.T) {
	_, err := Apply(nil, AddEntry{Section: SectionAdds})
	assert.Error(t, err)
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction([]byte(`{"action":"toggleMove","ministerName":"Finance","departmentName":"Trade","previousMinistry":"Commerce"}`))
	require.NoError(t, err)
	assert.Equal(t, ToggleMove{MinisterName: "Finance", DepartmentName: "Trade", PreviousMinistry: "Commerce"}, a)

	a, err = DecodeAction([]byte(`{"action":"insertDepartment","ministerIndex":2,"afterIndex":-1}`))
	require.NoError(t, err)
	assert.Equal(t, InsertDepartment{MinisterIndex: 2, AfterIndex: -1}, a)

	a, err = DecodeAction([]byte(`{"action":"renameDepartment","ministerIndex":1,"departmentIndex":0,"name":"Teaching Hospitals"}`))
	require.NoError(t, err)
	assert.Equal(t, RenameDepartment{MinisterIndex: 1, DepartmentIndex: 0, NewName: "Teaching Hospitals"}, a)
	assert.Equal(t, "renameDepartment", a.Name())

	_, err = DecodeAction([]byte(`{"action":"explode"}`))
	assert.Error(t, err)
	_, err = DecodeAction([]byte(`not json`))
	assert.Error(t, err)
}

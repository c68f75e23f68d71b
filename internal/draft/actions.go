package draft

import (
	"encoding/json"
	"fmt"
)

// Action is one edit accepted by Apply.
type Action interface {
	Name() string
}

// Section names a transaction list of an amendment or personnel draft.
type Section string

const (
	SectionAdds       Section = "adds"
	SectionMoves      Section = "moves"
	SectionTerminates Section = "terminates"
)

type RenameMinister struct {
	Index   int    `json:"index"`
	NewName string `json:"name"`
}

type RenameDepartment struct {
	MinisterIndex   int    `json:"ministerIndex"`
	DepartmentIndex int    `json:"departmentIndex"`
	NewName         string `json:"name"`
}

type SetPreviousMinistry struct {
	MinisterIndex   int    `json:"ministerIndex"`
	DepartmentIndex int    `json:"departmentIndex"`
	Value           string `json:"value"`
}

type ShowPreviousMinistryEditor struct {
	MinisterIndex   int `json:"ministerIndex"`
	DepartmentIndex int `json:"departmentIndex"`
}

type HidePreviousMinistryEditor struct {
	MinisterIndex   int `json:"ministerIndex"`
	DepartmentIndex int `json:"departmentIndex"`
}

type InsertMinister struct {
	AfterIndex int `json:"afterIndex"`
}

type RemoveMinister struct {
	Index int `json:"index"`
}

// InsertDepartment adds a blank department after AfterIndex. -1 appends
// (on an empty list the new department is also the first).
type InsertDepartment struct {
	MinisterIndex int `json:"ministerIndex"`
	AfterIndex    int `json:"afterIndex"`
}

type RemoveDepartment struct {
	MinisterIndex   int `json:"ministerIndex"`
	DepartmentIndex int `json:"departmentIndex"`
}

type ToggleMove struct {
	MinisterName     string `json:"ministerName"`
	DepartmentName   string `json:"departmentName"`
	PreviousMinistry string `json:"previousMinistry"`
}

type RemoveMoveAnnotation struct {
	MinisterName   string `json:"ministerName"`
	DepartmentName string `json:"departmentName"`
}

type ChangeField struct {
	Section Section `json:"section"`
	Index   int     `json:"index"`
	Field   string  `json:"field"`
	Value   string  `json:"value"`
}

type AddEntry struct {
	Section Section `json:"section"`
}

type RemoveEntry struct {
	Section Section `json:"section"`
	Index   int     `json:"index"`
}

type ToggleSuggestedTerminateMark struct {
	AddIndex        int `json:"addIndex"`
	SuggestionIndex int `json:"suggestionIndex"`
}

type ChangeSuggestedTerminateField struct {
	AddIndex        int    `json:"addIndex"`
	SuggestionIndex int    `json:"suggestionIndex"`
	Field           string `json:"field"`
	Value           string `json:"value"`
}

type DissolveMove struct {
	Index int `json:"index"`
}

func (RenameMinister) Name() string                { return "renameMinister" }
func (RenameDepartment) Name() string              { return "renameDepartment" }
func (SetPreviousMinistry) Name() string           { return "setPreviousMinistry" }
func (ShowPreviousMinistryEditor) Name() string    { return "showPreviousMinistryEditor" }
func (HidePreviousMinistryEditor) Name() string    { return "hidePreviousMinistryEditor" }
func (InsertMinister) Name() string                { return "insertMinister" }
func (RemoveMinister) Name() string                { return "removeMinister" }
func (InsertDepartment) Name() string              { return "insertDepartment" }
func (RemoveDepartment) Name() string              { return "removeDepartment" }
func (ToggleMove) Name() string                    { return "toggleMove" }
func (RemoveMoveAnnotation) Name() string          { return "removeMoveAnnotation" }
func (ChangeField) Name() string                   { return "changeField" }
func (AddEntry) Name() string                      { return "addEntry" }
func (RemoveEntry) Name() string                   { return "removeEntry" }
func (ToggleSuggestedTerminateMark) Name() string  { return "toggleSuggestedTerminateMark" }
func (ChangeSuggestedTerminateField) Name() string { return "changeSuggestedTerminateField" }
func (DissolveMove) Name() string                  { return "dissolveMove" }

var actionFactories = map[string]func() Action{
	"renameMinister":                func() Action { return &RenameMinister{} },
	"renameDepartment":              func() Action { return &RenameDepartment{} },
	"setPreviousMinistry":           func() Action { return &SetPreviousMinistry{} },
	"showPreviousMinistryEditor":    func() Action { return &ShowPreviousMinistryEditor{} },
	"hidePreviousMinistryEditor":    func() Action { return &HidePreviousMinistryEditor{} },
	"insertMinister":                func() Action { return &InsertMinister{} },
	"removeMinister":                func() Action { return &RemoveMinister{} },
	"insertDepartment":              func() Action { return &InsertDepartment{} },
	"removeDepartment":              func() Action { return &RemoveDepartment{} },
	"toggleMove":                    func() Action { return &ToggleMove{} },
	"removeMoveAnnotation":          func() Action { return &RemoveMoveAnnotation{} },
	"changeField":                   func() Action { return &ChangeField{} },
	"addEntry":                      func() Action { return &AddEntry{} },
	"removeEntry":                   func() Action { return &RemoveEntry{} },
	"toggleSuggestedTerminateMark":  func() Action { return &ToggleSuggestedTerminateMark{} },
	"changeSuggestedTerminateField": func() Action { return &ChangeSuggestedTerminateField{} },
	"dissolveMove":                  func() Action { return &DissolveMove{} },
}

// DecodeAction reads an action from a JSON object tagged by its "action" field.
func DecodeAction(data []byte) (Action, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, invalid("", "invalid action body")
	}
	factory, ok := actionFactories[envelope.Action]
	if !ok {
		return nil, invalid(envelope.Action, "unknown action")
	}
	action := factory()
	if err := json.Unmarshal(data, action); err != nil {
		return nil, invalid(envelope.Action, "invalid payload: %v", err)
	}
	return deref(action), nil
}

func deref(a Action) Action {
	switch v := a.(type) {
	case *RenameMinister:
		return *v
	case *RenameDepartment:
		return *v
	case *SetPreviousMinistry:
		return *v
	case *ShowPreviousMinistryEditor:
		return *v
	case *HidePreviousMinistryEditor:
		return *v
	case *InsertMinister:
		return *v
	case *RemoveMinister:
		return *v
	case *InsertDepartment:
		return *v
	case *RemoveDepartment:
		return *v
	case *ToggleMove:
		return *v
	case *RemoveMoveAnnotation:
		return *v
	case *ChangeField:
		return *v
	case *AddEntry:
		return *v
	case *RemoveEntry:
		return *v
	case *ToggleSuggestedTerminateMark:
		return *v
	case *ChangeSuggestedTerminateField:
		return *v
	case *DissolveMove:
		return *v
	}
	panic(fmt.Sprintf("draft: unhandled action %T", a))
}

package draft

import "fmt"

// ValidationError rejects an edit before it touches the draft.
type ValidationError struct {
	Action  string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Action == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// ErrIncompleteMove is returned when a move is dissolved before all five of its
// fields are filled.
var ErrIncompleteMove = &ValidationError{Action: "dissolveMove", Message: "All Move fields must be filled to dissolve."}

func invalid(action, format string, args ...any) error {
	return &ValidationError{Action: action, Message: fmt.Sprintf(format, args...)}
}

package matrix

import "fmt"

// ShapeMismatchError reports incompatible argument shapes detected at
// component construction, before any task runs.
type ShapeMismatchError struct {
	Label  string
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("matrix action %s: %s", e.Label, e.Reason)
}

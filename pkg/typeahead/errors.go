package typeahead

import "fmt"

// SelectError reports a selection of an option that is not rendered.
type SelectError struct {
	Dataset string
	Index   int
}

func (e *SelectError) Error() string {
	return fmt.Sprintf("typeahead: no suggestion %d in dataset %q", e.Index, e.Dataset)
}

// Package dom is the small slice of a document that the typeahead binder needs.
//
// Two implementations exist: an in-memory document used by tests, the CLI and
// the IPC server, and a browser document (js/wasm builds only) backed by
// syscall/js.
package dom

import "strings"

// Event names dispatched to Element handlers.
const (
	EventInput   = "input"
	EventKeyDown = "keydown"
	EventBlur    = "blur"
)

// Event is a DOM event reduced to what handlers look at.
type Event struct {
	Type string
	// Key is set for keydown events, using KeyboardEvent.key names.
	Key string
}

// Element is a text input or any other element found by a selector.
type Element interface {
	Value() string
	SetValue(v string)
	// On registers fn for event and returns a function removing it again.
	On(event string, fn func(Event)) (off func())
	Data(key string) (string, bool)
	SetData(key, value string)
}

// Option is one rendered suggestion.
type Option struct {
	// Label is sanitized HTML.
	Label  string
	Value  string
	Active bool
}

// Section groups the options of one dataset.
type Section struct {
	Name    string
	Options []Option
}

// Menu is the dropdown attached to an input.
// Render and Clear must not call the OnSelect handler synchronously.
type Menu interface {
	Render(sections []Section)
	Clear()
	OnSelect(fn func(dataset string, i int))
}

// Document finds elements and creates menus.
type Document interface {
	// Query returns the first match or nil.
	Query(selector string) Element
	QueryAll(selector string) []Element
	NewMenu(anchor Element) Menu
}

type selector struct {
	id    string
	class string
}

// parseSelector understands "#id" and ".class"; a bare word is treated as an id.
func parseSelector(sel string) selector {
	sel = strings.TrimSpace(sel)
	switch {
	case strings.HasPrefix(sel, "#"):
		return selector{id: sel[1:]}
	case strings.HasPrefix(sel, "."):
		return selector{class: sel[1:]}
	default:
		return selector{id: sel}
	}
}

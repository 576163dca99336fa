package dom

import (
	"fmt"
	"slices"
	"sync"
)

type handler struct {
	fn func(Event)
}

// MemoryElement is an Element that lives only in process memory.
type MemoryElement struct {
	id      string
	classes []string

	mu       sync.Mutex
	value    string
	data     map[string]string
	handlers map[string][]*handler
}

// NewElement creates an element with the given id and classes.
func NewElement(id string, classes ...string) *MemoryElement {
	return &MemoryElement{
		id:       id,
		classes:  classes,
		data:     make(map[string]string),
		handlers: make(map[string][]*handler),
	}
}

func (e *MemoryElement) ID() string {
	return e.id
}

func (e *MemoryElement) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// SetValue changes the value without dispatching an input event, like
// assigning HTMLInputElement.value.
func (e *MemoryElement) SetValue(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = v
}

func (e *MemoryElement) On(event string, fn func(Event)) func() {
	h := &handler{fn: fn}
	e.mu.Lock()
	e.handlers[event] = append(e.handlers[event], h)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.handlers[event] = slices.DeleteFunc(e.handlers[event], func(x *handler) bool { return x == h })
	}
}

func (e *MemoryElement) Data(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.data[key]
	return v, ok
}

func (e *MemoryElement) SetData(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[key] = value
}

// Type replaces the value and dispatches an input event, as a user typing would.
func (e *MemoryElement) Type(text string) {
	e.SetValue(text)
	e.Dispatch(Event{Type: EventInput})
}

// Press dispatches a keydown event for key.
func (e *MemoryElement) Press(key string) {
	e.Dispatch(Event{Type: EventKeyDown, Key: key})
}

// Dispatch calls every handler registered for ev.Type.
func (e *MemoryElement) Dispatch(ev Event) {
	e.mu.Lock()
	hs := slices.Clone(e.handlers[ev.Type])
	e.mu.Unlock()

	for _, h := range hs {
		h.fn(ev)
	}
}

// Listeners reports how many handlers are registered for event.
func (e *MemoryElement) Listeners(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[event])
}

func (e *MemoryElement) matches(sel selector) bool {
	if sel.id != "" {
		return e.id == sel.id
	}
	return sel.class != "" && slices.Contains(e.classes, sel.class)
}

// NewElementFor creates an element matched by selector.
func NewElementFor(selector string) *MemoryElement {
	sel := parseSelector(selector)
	if sel.class != "" {
		return NewElement("", sel.class)
	}
	return NewElement(sel.id)
}

// MemoryDocument holds elements in insertion order.
type MemoryDocument struct {
	mu       sync.Mutex
	elements []*MemoryElement
	menus    []*MemoryMenu
}

func NewDocument(elements ...*MemoryElement) *MemoryDocument {
	return &MemoryDocument{elements: elements}
}

// Append adds elements to the end of the document.
func (d *MemoryDocument) Append(elements ...*MemoryElement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements = append(d.elements, elements...)
}

func (d *MemoryDocument) Query(selector string) Element {
	sel := parseSelector(selector)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.elements {
		if e.matches(sel) {
			return e
		}
	}
	return nil
}

func (d *MemoryDocument) QueryAll(selector string) []Element {
	sel := parseSelector(selector)
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Element
	for _, e := range d.elements {
		if e.matches(sel) {
			out = append(out, e)
		}
	}
	return out
}

func (d *MemoryDocument) NewMenu(anchor Element) Menu {
	m := &MemoryMenu{anchor: anchor}
	d.mu.Lock()
	d.menus = append(d.menus, m)
	d.mu.Unlock()
	return m
}

// Menus returns every menu created so far.
func (d *MemoryDocument) Menus() []*MemoryMenu {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.menus)
}

// MenuFor returns the menu anchored at el, or nil.
func (d *MemoryDocument) MenuFor(el Element) *MemoryMenu {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.menus {
		if m.anchor == el {
			return m
		}
	}
	return nil
}

// MemoryMenu records what was rendered and lets callers pick an option.
type MemoryMenu struct {
	anchor Element

	mu       sync.Mutex
	sections []Section
	renders  int
	onSelect []func(dataset string, i int)
	onRender func(sections []Section)
}

func (m *MemoryMenu) Render(sections []Section) {
	m.mu.Lock()
	m.sections = cloneSections(sections)
	m.renders++
	hook := m.onRender
	m.mu.Unlock()

	if hook != nil {
		hook(cloneSections(sections))
	}
}

func (m *MemoryMenu) Clear() {
	m.mu.Lock()
	m.sections = nil
	hook := m.onRender
	m.mu.Unlock()

	if hook != nil {
		hook(nil)
	}
}

func (m *MemoryMenu) OnSelect(fn func(dataset string, i int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSelect = append(m.onSelect, fn)
}

// OnRender sets a hook observing every render; a clear is reported as nil sections.
func (m *MemoryMenu) OnRender(fn func(sections []Section)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRender = fn
}

// Sections returns the last rendered sections; nil when the menu is closed.
func (m *MemoryMenu) Sections() []Section {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSections(m.sections)
}

// Values flattens the rendered option values.
func (m *MemoryMenu) Values() []string {
	var out []string
	for _, s := range m.Sections() {
		for _, o := range s.Options {
			out = append(out, o.Value)
		}
	}
	return out
}

func (m *MemoryMenu) Renders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders
}

// Choose simulates a click on option i of dataset.
func (m *MemoryMenu) Choose(dataset string, i int) error {
	m.mu.Lock()
	found := false
	for _, s := range m.sections {
		if s.Name == dataset && i >= 0 && i < len(s.Options) {
			found = true
			break
		}
	}
	hs := slices.Clone(m.onSelect)
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("no option %d in dataset %q", i, dataset)
	}
	for _, fn := range hs {
		fn(dataset, i)
	}
	return nil
}

func cloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = Section{Name: s.Name, Options: slices.Clone(s.Options)}
	}
	return out
}

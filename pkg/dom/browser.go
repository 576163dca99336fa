//go:build js && wasm

package dom

import (
	"syscall/js"
)

// BrowserDocument wraps the page's document object.
type BrowserDocument struct {
	doc js.Value
}

// Browser returns the global document.
func Browser() *BrowserDocument {
	return &BrowserDocument{doc: js.Global().Get("document")}
}

func (d *BrowserDocument) Query(selector string) Element {
	v := d.doc.Call("querySelector", selector)
	if v.IsNull() || v.IsUndefined() {
		return nil
	}
	return &browserElement{v: v}
}

func (d *BrowserDocument) QueryAll(selector string) []Element {
	list := d.doc.Call("querySelectorAll", selector)
	n := list.Length()
	out := make([]Element, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &browserElement{v: list.Index(i)})
	}
	return out
}

func (d *BrowserDocument) NewMenu(anchor Element) Menu {
	div := d.doc.Call("createElement", "div")
	div.Set("className", "tt-menu")
	div.Get("style").Set("display", "none")

	if el, ok := anchor.(*browserElement); ok {
		parent := el.v.Get("parentNode")
		if !parent.IsNull() {
			parent.Call("insertBefore", div, el.v.Get("nextSibling"))
		}
	}
	return &browserMenu{doc: d.doc, root: div}
}

type browserElement struct {
	v js.Value
}

func (e *browserElement) Value() string {
	return e.v.Get("value").String()
}

func (e *browserElement) SetValue(v string) {
	e.v.Set("value", v)
}

func (e *browserElement) On(event string, fn func(Event)) func() {
	cb := js.FuncOf(func(this js.Value, args []js.Value) any {
		ev := Event{Type: event}
		if len(args) > 0 {
			if key := args[0].Get("key"); key.Type() == js.TypeString {
				ev.Key = key.String()
			}
		}
		fn(ev)
		return nil
	})
	e.v.Call("addEventListener", event, cb)

	return func() {
		e.v.Call("removeEventListener", event, cb)
		cb.Release()
	}
}

func (e *browserElement) Data(key string) (string, bool) {
	v := e.v.Get("dataset").Get(key)
	if v.Type() != js.TypeString {
		return "", false
	}
	return v.String(), true
}

func (e *browserElement) SetData(key, value string) {
	e.v.Get("dataset").Set(key, value)
}

type browserMenu struct {
	doc      js.Value
	root     js.Value
	funcs    []js.Func
	onSelect []func(dataset string, i int)
}

func (m *browserMenu) Render(sections []Section) {
	m.reset()
	for _, s := range sections {
		sec := m.doc.Call("createElement", "div")
		sec.Set("className", "tt-dataset tt-dataset-"+s.Name)
		for i, o := range s.Options {
			opt := m.doc.Call("createElement", "div")
			class := "tt-suggestion tt-selectable"
			if o.Active {
				class += " tt-cursor"
			}
			opt.Set("className", class)
			opt.Set("innerHTML", o.Label)

			name, idx := s.Name, i
			cb := js.FuncOf(func(this js.Value, args []js.Value) any {
				if len(args) > 0 {
					args[0].Call("preventDefault")
				}
				for _, fn := range m.onSelect {
					go fn(name, idx)
				}
				return nil
			})
			m.funcs = append(m.funcs, cb)
			opt.Call("addEventListener", "mousedown", cb)
			sec.Call("appendChild", opt)
		}
		m.root.Call("appendChild", sec)
	}
	m.root.Get("style").Set("display", "block")
}

func (m *browserMenu) Clear() {
	m.reset()
	m.root.Get("style").Set("display", "none")
}

func (m *browserMenu) OnSelect(fn func(dataset string, i int)) {
	m.onSelect = append(m.onSelect, fn)
}

func (m *browserMenu) reset() {
	m.root.Set("innerHTML", "")
	for _, f := range m.funcs {
		f.Release()
	}
	m.funcs = m.funcs[:0]
}

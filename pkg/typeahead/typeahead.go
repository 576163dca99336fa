/*
Package typeahead attaches suggestion menus to text inputs.

A Typeahead listens to input and keydown events of one dom.Element, queries
each Dataset's Source and renders the results into a dom.Menu. Synchronous
results are rendered first; asynchronous results are appended until the
dataset's Limit is reached. Results belonging to an older query are dropped.
*/
package typeahead

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/bastiangx/typebind/pkg/dom"
	"github.com/bastiangx/typebind/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultLimit is the number of suggestions rendered per dataset.
const DefaultLimit = 5

// DataMarker is the data key set on inputs that already carry a typeahead.
const DataMarker = "typeahead"

// Key names handled on keydown.
const (
	KeyDown   = "ArrowDown"
	KeyUp     = "ArrowUp"
	KeyEnter  = "Enter"
	KeyTab    = "Tab"
	KeyEscape = "Escape"
)

// Source produces suggestions for a query; engine.Engine implements it.
type Source interface {
	Search(ctx context.Context, query string, sync, async func([]suggest.Suggestion))
}

// Dataset is one named group of suggestions in the menu.
type Dataset struct {
	Name       string
	DisplayKey string
	Source     Source
	// Limit defaults to DefaultLimit when zero.
	Limit int
}

// Selection is passed to OnSelect hooks.
type Selection struct {
	Dataset    string
	Value      string
	Suggestion suggest.Suggestion
}

type Options struct {
	MinLength int
	Logger    *log.Logger
}

type datasetState struct {
	*Dataset
	items []suggest.Suggestion
}

// Typeahead is bound to a single input element.
type Typeahead struct {
	input     dom.Element
	menu      dom.Menu
	minLength int
	policy    *bluemonday.Policy
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	offs   []func()

	mu       sync.Mutex
	datasets []*datasetState
	query    string
	gen      uint64
	cursor   int
	open     bool
	onSelect []func(Selection)
}

// New attaches a typeahead to input, rendering into menu.
// The context bounds every source query; Destroy cancels it.
func New(ctx context.Context, input dom.Element, menu dom.Menu, opts Options, datasets ...*Dataset) *Typeahead {
	l := opts.Logger
	if l == nil {
		l = log.Default()
	}
	ctx, cancel := context.WithCancel(ctx)

	t := &Typeahead{
		input:     input,
		menu:      menu,
		minLength: opts.MinLength,
		policy:    bluemonday.StrictPolicy(),
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
		cursor:    -1,
	}
	for _, ds := range datasets {
		if ds.Limit <= 0 {
			ds.Limit = DefaultLimit
		}
		if ds.DisplayKey == "" {
			ds.DisplayKey = suggest.DefaultDisplayKey
		}
		t.datasets = append(t.datasets, &datasetState{Dataset: ds})
	}

	t.offs = append(t.offs,
		input.On(dom.EventInput, func(dom.Event) { t.update(input.Value()) }),
		input.On(dom.EventKeyDown, func(ev dom.Event) { t.keyDown(ev.Key) }),
		input.On(dom.EventBlur, func(dom.Event) { t.Close() }),
	)
	menu.OnSelect(func(dataset string, i int) {
		if err := t.Select(dataset, i); err != nil {
			t.logger.Debug("menu selection ignored", "dataset", dataset, "index", i, "err", err)
		}
	})
	return t
}

// OnSelect registers fn to run after a suggestion is written into the input.
func (t *Typeahead) OnSelect(fn func(Selection)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSelect = append(t.onSelect, fn)
}

// Query returns the last query sent to the datasets.
func (t *Typeahead) Query() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.query
}

// Suggestions returns the suggestions currently shown for dataset.
func (t *Typeahead) Suggestions(dataset string) []suggest.Suggestion {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ds := range t.datasets {
		if ds.Name == dataset {
			return append([]suggest.Suggestion(nil), ds.items...)
		}
	}
	return nil
}

// SetQuery behaves like the user typing text into the input.
func (t *Typeahead) SetQuery(text string) {
	t.input.SetValue(text)
	t.update(text)
}

var spaceRuns = regexp.MustCompile(`\s{2,}`)

// normalizeQuery drops leading whitespace and collapses inner runs to one space.
func normalizeQuery(s string) string {
	return spaceRuns.ReplaceAllString(strings.TrimLeftFunc(s, unicode.IsSpace), " ")
}

func (t *Typeahead) update(query string) {
	query = normalizeQuery(query)
	t.mu.Lock()
	if query == t.query && t.open {
		t.mu.Unlock()
		return
	}
	t.query = query
	t.gen++
	gen := t.gen
	t.cursor = -1
	for _, ds := range t.datasets {
		ds.items = nil
	}

	if len([]rune(query)) < t.minLength || query == "" {
		t.open = false
		t.mu.Unlock()
		t.menu.Clear()
		return
	}
	datasets := append([]*datasetState(nil), t.datasets...)
	t.mu.Unlock()

	for _, ds := range datasets {
		ds := ds
		ds.Source.Search(t.ctx, query,
			func(items []suggest.Suggestion) { t.renderSync(gen, ds, items) },
			func(items []suggest.Suggestion) { t.appendAsync(gen, ds, items) },
		)
	}
}

func (t *Typeahead) renderSync(gen uint64, ds *datasetState, items []suggest.Suggestion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	if len(items) > ds.Limit {
		items = items[:ds.Limit]
	}
	ds.items = append([]suggest.Suggestion(nil), items...)
	t.render()
}

func (t *Typeahead) appendAsync(gen uint64, ds *datasetState, items []suggest.Suggestion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		t.logger.Debug("ignoring suggestions for an old query", "dataset", ds.Name)
		return
	}
	room := ds.Limit - len(ds.items)
	if room <= 0 {
		return
	}
	if len(items) > room {
		items = items[:room]
	}
	ds.items = append(ds.items, items...)
	t.render()
}

// render must be called with t.mu held.
func (t *Typeahead) render() {
	var sections []dom.Section
	pos := 0
	for _, ds := range t.datasets {
		if len(ds.items) == 0 {
			continue
		}
		sec := dom.Section{Name: ds.Name, Options: make([]dom.Option, len(ds.items))}
		for i, item := range ds.items {
			value := item.Display(ds.DisplayKey)
			sec.Options[i] = dom.Option{
				Label:  t.policy.Sanitize(value),
				Value:  value,
				Active: pos == t.cursor,
			}
			pos++
		}
		sections = append(sections, sec)
	}

	if len(sections) == 0 {
		t.open = false
		t.menu.Clear()
		return
	}
	t.open = true
	t.menu.Render(sections)
}

func (t *Typeahead) keyDown(key string) {
	switch key {
	case KeyDown:
		t.moveCursor(1)
	case KeyUp:
		t.moveCursor(-1)
	case KeyEnter, KeyTab:
		t.mu.Lock()
		ds, i := t.cursorTarget()
		t.mu.Unlock()
		if ds != "" {
			if err := t.Select(ds, i); err != nil {
				t.logger.Debug("cursor selection failed", "err", err)
			}
		}
	case KeyEscape:
		t.Close()
	}
}

// moveCursor cycles through the options; the position after the last one
// (and before the first) is the input itself.
func (t *Typeahead) moveCursor(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return
	}
	total := 0
	for _, ds := range t.datasets {
		total += len(ds.items)
	}
	if total == 0 {
		return
	}
	// positions -1..total-1
	t.cursor = (t.cursor+1+delta+total+1)%(total+1) - 1
	t.render()
}

// cursorTarget must be called with t.mu held.
func (t *Typeahead) cursorTarget() (string, int) {
	if t.cursor < 0 {
		return "", 0
	}
	pos := t.cursor
	for _, ds := range t.datasets {
		if pos < len(ds.items) {
			return ds.Name, pos
		}
		pos -= len(ds.items)
	}
	return "", 0
}

// Select writes option i of dataset into the input, closes the menu and
// fires the OnSelect hooks.
func (t *Typeahead) Select(dataset string, i int) error {
	t.mu.Lock()
	var sel *Selection
	for _, ds := range t.datasets {
		if ds.Name != dataset {
			continue
		}
		if i < 0 || i >= len(ds.items) {
			break
		}
		item := ds.items[i]
		sel = &Selection{Dataset: ds.Name, Value: item.Display(ds.DisplayKey), Suggestion: item}
	}
	if sel == nil {
		t.mu.Unlock()
		return &SelectError{Dataset: dataset, Index: i}
	}

	t.input.SetValue(sel.Value)
	t.query = normalizeQuery(sel.Value)
	t.gen++
	t.cursor = -1
	t.open = false
	for _, ds := range t.datasets {
		ds.items = nil
	}
	hooks := slices.Clone(t.onSelect)
	t.mu.Unlock()

	t.menu.Clear()
	for _, fn := range hooks {
		fn(*sel)
	}
	return nil
}

// Close hides the menu without changing the input.
func (t *Typeahead) Close() {
	t.mu.Lock()
	t.open = false
	t.cursor = -1
	t.mu.Unlock()
	t.menu.Clear()
}

// Destroy detaches all event handlers and cancels pending source queries.
func (t *Typeahead) Destroy() {
	for _, off := range t.offs {
		off()
	}
	t.offs = nil
	t.cancel()
	t.Close()
}

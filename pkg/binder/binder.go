/*
Package binder wires a document's search inputs to a remote suggestion source.

Bind reads the index identifier from the index element once, builds a remote
source whose URL template is the configured template with the index appended,
and attaches a typeahead to every matching input:

	b := binder.New(binder.DefaultConfig(), transport)
	binding, err := b.Bind(ctx, doc)
	binding.URL("red") // _ui/_suggest?query=red&index=products

Binding is idempotent. Inputs that already carry a typeahead are skipped, and
binding the same document twice with one Binder returns the first Binding.
*/
package binder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bastiangx/typebind/pkg/dom"
	"github.com/bastiangx/typebind/pkg/engine"
	"github.com/bastiangx/typebind/pkg/remote"
	"github.com/bastiangx/typebind/pkg/storage"
	"github.com/bastiangx/typebind/pkg/suggest"
	"github.com/bastiangx/typebind/pkg/tokenizer"
	"github.com/bastiangx/typebind/pkg/typeahead"
	"github.com/charmbracelet/log"
)

// Config describes how inputs are found and how their source behaves.
type Config struct {
	IndexSelector string
	InputSelector string
	// Template is the request URL up to and including "index=".
	Template   string
	Wildcard   string
	Dataset    string
	DisplayKey string
	Limit      int
	MinLength  int
	Sufficient int

	RateLimit remote.RateLimit
	RateWait  time.Duration

	// PrefetchURL enables prefetching when set.
	PrefetchURL string
	PrefetchTTL time.Duration
	PrefetchDir string

	OnError  func(query string, err error)
	OnSelect func(typeahead.Selection)
	Logger   *log.Logger
}

// DefaultConfig mirrors the stock suggestion page.
func DefaultConfig() Config {
	return Config{
		IndexSelector: "#suggest",
		InputSelector: ".typeahead",
		Template:      "_ui/_suggest?query=%QUERY&index=",
		Wildcard:      remote.DefaultWildcard,
		Dataset:       "suggestions",
		DisplayKey:    suggest.DefaultDisplayKey,
		Limit:         typeahead.DefaultLimit,
		MinLength:     1,
		Sufficient:    engine.DefaultSufficient,
		RateLimit:     remote.Debounce,
		RateWait:      300 * time.Millisecond,
		PrefetchTTL:   24 * time.Hour,
	}
}

// Binding is the result of binding one document.
type Binding struct {
	// Index is read once at bind time and never again.
	Index       string
	URLTemplate remote.Template
	// Engine and Remote are nil when every input was already bound elsewhere.
	Engine     *engine.Engine
	Remote     *remote.Remote
	Typeaheads []*typeahead.Typeahead

	inputs []dom.Element
}

// URL returns the request URL for query.
func (b *Binding) URL(query string) string {
	return b.URLTemplate.Expand(query)
}

// Close detaches every typeahead and cancels pending requests.
func (b *Binding) Close() {
	for _, ta := range b.Typeaheads {
		ta.Destroy()
	}
	if b.Remote != nil {
		b.Remote.Cancel()
	}
}

// Binder binds documents using one shared fetcher.
type Binder struct {
	cfg     Config
	fetcher remote.Fetcher
	logger  *log.Logger

	mu       sync.Mutex
	bindings map[dom.Document]*Binding
}

func New(cfg Config, fetcher remote.Fetcher) *Binder {
	l := cfg.Logger
	if l == nil {
		l = log.Default()
	}
	return &Binder{
		cfg:      cfg,
		fetcher:  fetcher,
		logger:   l,
		bindings: make(map[dom.Document]*Binding),
	}
}

// Bind attaches the suggestion source to every unbound input of doc. The
// prefetch runs after the inputs are attached; a failure is logged and does
// not fail the binding.
func (b *Binder) Bind(ctx context.Context, doc dom.Document) (*Binding, error) {
	if doc == nil {
		return nil, errors.New("binder: nil document")
	}
	if b.fetcher == nil {
		return nil, errors.New("binder: no fetcher")
	}

	b.mu.Lock()
	if existing, ok := b.bindings[doc]; ok {
		b.mu.Unlock()
		b.logger.Debug("document already bound", "index", existing.Index)
		return existing, nil
	}

	index := ""
	if el := doc.Query(b.cfg.IndexSelector); el != nil {
		index = el.Value()
	} else {
		b.logger.Debug("index element not found", "selector", b.cfg.IndexSelector)
	}
	tmpl := remote.NewTemplate(b.cfg.Template+index, b.cfg.Wildcard)
	binding := &Binding{Index: index, URLTemplate: tmpl}

	var inputs []dom.Element
	for _, input := range doc.QueryAll(b.cfg.InputSelector) {
		if v, bound := input.Data(typeahead.DataMarker); bound && v != "" {
			b.logger.Debug("input already has a typeahead")
			continue
		}
		inputs = append(inputs, input)
	}
	if len(inputs) == 0 {
		b.bindings[doc] = binding
		b.mu.Unlock()
		b.logger.Debug("no unbound inputs", "selector", b.cfg.InputSelector)
		return binding, nil
	}

	binding.Remote = remote.New(remote.Config{
		Template:  tmpl,
		Fetcher:   b.fetcher,
		RateLimit: b.cfg.RateLimit,
		RateWait:  b.cfg.RateWait,
		OnError:   b.cfg.OnError,
		Logger:    b.logger,
	})
	binding.Engine = engine.New(engine.Options{
		DatumTokenizer: tokenizer.Keys(tokenizer.Whitespace, b.cfg.DisplayKey),
		QueryTokenizer: tokenizer.Whitespace,
		Remote:         binding.Remote,
		Sufficient:     b.cfg.Sufficient,
		Prefetch:       b.prefetch(),
	})

	for _, input := range inputs {
		ta := typeahead.New(ctx, input, doc.NewMenu(input), typeahead.Options{
			MinLength: b.cfg.MinLength,
			Logger:    b.logger,
		}, &typeahead.Dataset{
			Name:       b.cfg.Dataset,
			DisplayKey: b.cfg.DisplayKey,
			Source:     binding.Engine,
			Limit:      b.cfg.Limit,
		})
		if b.cfg.OnSelect != nil {
			ta.OnSelect(b.cfg.OnSelect)
		}
		input.SetData(typeahead.DataMarker, b.cfg.Dataset)
		binding.Typeaheads = append(binding.Typeaheads, ta)
		binding.inputs = append(binding.inputs, input)
	}
	b.bindings[doc] = binding
	b.mu.Unlock()

	b.logger.Info("bound suggestion inputs", "index", index, "inputs", len(binding.Typeaheads))
	if err := binding.Engine.Initialize(ctx); err != nil {
		b.logger.Warn("prefetch failed, continuing with remote only", "err", err)
	}
	return binding, nil
}

// Unbind closes the binding of doc and clears the input markers so the
// document can be bound again.
func (b *Binder) Unbind(doc dom.Document) {
	b.mu.Lock()
	binding, ok := b.bindings[doc]
	delete(b.bindings, doc)
	b.mu.Unlock()

	if !ok {
		return
	}
	binding.Close()
	for _, input := range binding.inputs {
		input.SetData(typeahead.DataMarker, "")
	}
}

func (b *Binder) prefetch() *engine.Prefetch {
	if b.cfg.PrefetchURL == "" {
		return nil
	}
	p := &engine.Prefetch{
		URL:     b.cfg.PrefetchURL,
		Fetcher: b.fetcher,
		TTL:     b.cfg.PrefetchTTL,
	}
	store, err := storage.New(b.cfg.PrefetchDir, "prefetch")
	if err != nil {
		b.logger.Warn("prefetch cache unavailable", "err", err)
		return p
	}
	p.Store = store
	return p
}

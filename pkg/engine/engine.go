/*
Package engine combines local, prefetched and remote suggestions behind a single Search call.

Local datums and prefetched datums are indexed with the datum tokenizer and
matched synchronously. When fewer than Sufficient local matches exist the
remote source is queried and its results, minus datums already shown, are
delivered asynchronously.

	eng := engine.New(engine.Options{
		DatumTokenizer: tokenizer.Keys(tokenizer.Whitespace, "value"),
		QueryTokenizer: tokenizer.Whitespace,
		Remote:         src,
	})
	err := eng.Initialize(ctx)
	eng.Search(ctx, "red", renderSync, renderAsync)
*/
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bastiangx/typebind/internal/utils"
	"github.com/bastiangx/typebind/pkg/remote"
	"github.com/bastiangx/typebind/pkg/storage"
	"github.com/bastiangx/typebind/pkg/suggest"
	"github.com/bastiangx/typebind/pkg/tokenizer"
	"github.com/charmbracelet/log"
)

// DefaultSufficient is the number of local matches that suppresses a remote call.
const DefaultSufficient = 5

// RemoteSource is what the engine needs from a remote.Remote.
type RemoteSource interface {
	Get(ctx context.Context, query string, onResponse func([]suggest.Suggestion))
	Cancel()
}

// Prefetch loads a full datum list once and keeps it in storage for TTL.
type Prefetch struct {
	URL     string
	Fetcher remote.Fetcher
	Store   *storage.Store
	TTL     time.Duration
	// Transform rewrites the fetched list before it is indexed and stored.
	Transform func([]suggest.Suggestion) []suggest.Suggestion
}

type Options struct {
	DatumTokenizer tokenizer.DatumFunc
	QueryTokenizer tokenizer.Func
	Local          []suggest.Suggestion
	Prefetch       *Prefetch
	Remote         RemoteSource
	// Sufficient defaults to DefaultSufficient when zero.
	Sufficient int
	// Sorter orders local matches; nil keeps index order.
	Sorter func([]suggest.Suggestion) []suggest.Suggestion
	// Identify keys remote results against local ones; nil uses Suggestion.ID.
	Identify func(suggest.Suggestion) string
}

// Engine is safe for concurrent use.
type Engine struct {
	opts  Options
	index suggest.Searcher

	mu          sync.Mutex
	initialized bool
	initErr     error
}

func New(opts Options) *Engine {
	if opts.DatumTokenizer == nil {
		opts.DatumTokenizer = tokenizer.Keys(tokenizer.Whitespace, "value")
	}
	if opts.QueryTokenizer == nil {
		opts.QueryTokenizer = tokenizer.Whitespace
	}
	if opts.Sufficient <= 0 {
		opts.Sufficient = DefaultSufficient
	}
	if opts.Identify == nil {
		opts.Identify = suggest.Suggestion.ID
	}
	return &Engine{
		opts:  opts,
		index: suggest.NewIndex(opts.DatumTokenizer, opts.QueryTokenizer),
	}
}

// Initialize indexes local datums and loads the prefetch list.
// Later calls return the first call's result without doing any work.
// A prefetch failure is returned but the engine remains usable.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return e.initErr
	}
	e.initialized = true
	e.initErr = e.load(ctx)
	return e.initErr
}

// Reinitialize clears the index and initializes again.
func (e *Engine) Reinitialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.index.Reset()
	e.initialized = true
	e.initErr = e.load(ctx)
	return e.initErr
}

func (e *Engine) load(ctx context.Context) error {
	e.index.Add(e.opts.Local...)
	if e.opts.Prefetch == nil || e.opts.Prefetch.URL == "" {
		return nil
	}

	items, err := e.prefetch(ctx)
	if err != nil {
		return fmt.Errorf("prefetch %s: %w", e.opts.Prefetch.URL, err)
	}
	e.index.Add(items...)
	log.Debugf("Indexed %d prefetched datums", len(items))
	return nil
}

func (e *Engine) prefetch(ctx context.Context) ([]suggest.Suggestion, error) {
	p := e.opts.Prefetch
	key := "data:" + p.URL

	if p.Store != nil {
		var stored []suggest.Suggestion
		ok, err := p.Store.Get(key, &stored)
		if err != nil {
			log.Warnf("Ignoring unreadable prefetch cache: %v", err)
		} else if ok {
			log.Debugf("Prefetch served from %s", p.Store.Path())
			return stored, nil
		}
	}

	if p.Fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	items, err := p.Fetcher.Get(ctx, p.URL)
	if err != nil {
		return nil, err
	}
	if p.Transform != nil {
		items = p.Transform(items)
	}

	if p.Store != nil {
		if err := p.Store.Set(key, items, p.TTL); err != nil {
			log.Warnf("Failed to persist prefetched data: %v", err)
		}
	}
	return items, nil
}

// Search delivers sorted local matches to sync before returning. When they
// number fewer than Sufficient and a remote is configured, remote matches not
// already delivered are passed to async later; otherwise a pending remote
// response is canceled.
func (e *Engine) Search(ctx context.Context, query string, sync, async func([]suggest.Suggestion)) {
	local := e.index.Search(query)
	if e.opts.Sorter != nil {
		local = e.opts.Sorter(local)
	}
	sync(append([]suggest.Suggestion(nil), local...))

	if e.opts.Remote == nil {
		return
	}
	if len(local) >= e.opts.Sufficient {
		e.opts.Remote.Cancel()
		return
	}

	seen := make([]string, len(local))
	for i, item := range local {
		seen[i] = e.opts.Identify(item)
	}
	e.opts.Remote.Get(ctx, query, func(items []suggest.Suggestion) {
		filter := utils.NewIdentityFilter(seen...)
		fresh := make([]suggest.Suggestion, 0, len(items))
		for _, item := range items {
			if filter.ShouldInclude(e.opts.Identify(item)) {
				fresh = append(fresh, item)
			}
		}
		if async != nil {
			async(fresh)
		}
	})
}

// Add indexes more local datums.
func (e *Engine) Add(items ...suggest.Suggestion) {
	e.index.Add(items...)
}

// Clear drops every indexed datum.
func (e *Engine) Clear() {
	e.index.Reset()
}

func (e *Engine) All() []suggest.Suggestion {
	return e.index.All()
}

func (e *Engine) Stats() map[string]int {
	stats := map[string]int{
		"indexedDatums": e.index.Len(),
		"sufficient":    e.opts.Sufficient,
	}
	if e.opts.Remote != nil {
		stats["remote"] = 1
	} else {
		stats["remote"] = 0
	}
	return stats
}

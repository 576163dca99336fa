/*
Package remote fetches suggestions from an HTTP endpoint.

A Remote expands a URL Template with the user's query, spaces requests with a
Limiter and hands them to a Transport. The Transport caches responses in an LRU,
collapses identical in-flight requests into one and bounds the number of
pending requests:

	transport, err := remote.NewTransport(remote.DefaultOptions())
	src := remote.New(remote.Config{
		Template:  remote.NewTemplate("_ui/_suggest?query=%QUERY&index=products", "%QUERY"),
		Fetcher:   transport,
		RateLimit: remote.Debounce,
		RateWait:  300 * time.Millisecond,
	})
	src.Get(ctx, "red", func(items []suggest.Suggestion) { ... })

Only the response of the latest query is delivered. Fetch failures (network
errors, non-200 statuses, malformed bodies) are delivered as an empty list and
reported to Config.OnError.
*/
package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bastiangx/typebind/internal/logger"
	"github.com/bastiangx/typebind/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Fetcher performs the request for an expanded URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]suggest.Suggestion, error)
}

// Config configures a Remote.
type Config struct {
	Template  Template
	Fetcher   Fetcher
	RateLimit RateLimit
	RateWait  time.Duration
	// Transform rewrites a successful response before delivery.
	Transform func([]suggest.Suggestion) []suggest.Suggestion
	// OnError observes fetch failures; the user still sees an empty list.
	OnError func(query string, err error)
	Logger  *log.Logger
}

// Remote is a rate-limited, latest-wins suggestion source.
type Remote struct {
	template  Template
	fetcher   Fetcher
	limiter   *Limiter
	transform func([]suggest.Suggestion) []suggest.Suggestion
	onError   func(query string, err error)
	logger    *log.Logger

	mu  sync.Mutex
	seq uint64
}

func New(cfg Config) *Remote {
	l := cfg.Logger
	if l == nil {
		l = logger.New("remote")
	}
	return &Remote{
		template:  cfg.Template,
		fetcher:   cfg.Fetcher,
		limiter:   NewLimiter(cfg.RateLimit, cfg.RateWait),
		transform: cfg.Transform,
		onError:   cfg.OnError,
		logger:    l,
	}
}

// URL returns the request URL for query.
func (r *Remote) URL(query string) string {
	return r.template.Expand(query)
}

// Get fetches suggestions for query and calls onResponse from another
// goroutine, unless a newer Get or a Cancel happened in the meantime.
func (r *Remote) Get(ctx context.Context, query string, onResponse func([]suggest.Suggestion)) {
	seq := r.next()

	r.limiter.Do(func() {
		if !r.isLatest(seq) {
			return
		}
		requestURL := r.template.Expand(query)
		go r.fetch(ctx, seq, query, requestURL, onResponse)
	})
}

// Cancel drops any scheduled request and any response still in flight.
func (r *Remote) Cancel() {
	r.next()
	r.limiter.Cancel()
}

func (r *Remote) fetch(ctx context.Context, seq uint64, query, requestURL string, onResponse func([]suggest.Suggestion)) {
	items, err := r.fetcher.Get(ctx, requestURL)
	if !r.isLatest(seq) {
		r.logger.Debug("dropping stale response", "query", query)
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded) {
			r.logger.Debug("request dropped", "query", query, "err", err)
			return
		}
		r.logger.Warn("suggestion fetch failed", "query", query, "url", requestURL, "err", err)
		if r.onError != nil {
			r.onError(query, err)
		}
		onResponse([]suggest.Suggestion{})
		return
	}

	if r.transform != nil {
		items = r.transform(items)
	}
	onResponse(items)
}

func (r *Remote) next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq
}

func (r *Remote) isLatest(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq == seq
}

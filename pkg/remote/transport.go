package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bastiangx/typebind/internal/logger"
	"github.com/bastiangx/typebind/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Options configures a Transport.
type Options struct {
	// BaseURL resolves relative request URLs such as "_ui/_suggest?...".
	BaseURL string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// CacheSize is the LRU capacity for responses; 0 disables caching.
	CacheSize int
	// MaxPending caps concurrent requests; 0 means unlimited.
	MaxPending int
	// Header is sent with every request.
	Header http.Header
	Logger *log.Logger
}

// DefaultOptions mirrors the usual typeahead transport defaults:
// an LRU of 10 responses and at most 6 pending requests.
func DefaultOptions() Options {
	return Options{
		BaseURL:      "http://localhost:8080/",
		Timeout:      10 * time.Second,
		RetryMax:     2,
		RetryWaitMin: 10 * time.Millisecond,
		RetryWaitMax: 500 * time.Millisecond,
		CacheSize:    10,
		MaxPending:   6,
	}
}

type onDeck struct {
	superseded chan struct{}
}

// Transport fetches suggestion lists over HTTP.
// Identical concurrent requests share one round trip, responses are cached
// and the number of requests in flight is bounded.
type Transport struct {
	base    *url.URL
	client  *retryablehttp.Client
	cache   *suggest.Cache
	group   singleflight.Group
	pending *semaphore.Weighted
	header  http.Header
	logger  *log.Logger

	mu     sync.Mutex
	onDeck *onDeck
}

func NewTransport(opts Options) (*Transport, error) {
	var base *url.URL
	if opts.BaseURL != "" {
		parsed, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("cannot parse base url %q: %w", opts.BaseURL, err)
		}
		base = parsed
	}

	l := opts.Logger
	if l == nil {
		l = logger.New("transport")
	}

	t := &Transport{
		base: base,
		client: &retryablehttp.Client{
			HTTPClient: &http.Client{
				Timeout: opts.Timeout,
			},
			Logger:       logger.NewLeveled(l),
			RetryMax:     opts.RetryMax,
			RetryWaitMin: opts.RetryWaitMin,
			RetryWaitMax: opts.RetryWaitMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
		cache:  suggest.NewCache(opts.CacheSize),
		header: opts.Header,
		logger: l,
	}
	if opts.MaxPending > 0 {
		t.pending = semaphore.NewWeighted(int64(opts.MaxPending))
	}
	return t, nil
}

// Get returns the suggestions served at rawURL.
func (t *Transport) Get(ctx context.Context, rawURL string) ([]suggest.Suggestion, error) {
	target, err := t.resolve(rawURL)
	if err != nil {
		return nil, err
	}

	if cached, ok := t.cache.Get(target); ok {
		t.logger.Debug("cache hit", "url", target)
		return cached, nil
	}

	// the shared round trip outlives any single caller so its result still
	// lands in the cache
	ch := t.group.DoChan(target, func() (interface{}, error) {
		return t.fetch(context.WithoutCancel(ctx), target)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		items := res.Val.([]suggest.Suggestion)
		return append([]suggest.Suggestion(nil), items...), nil
	}
}

// Stats reports cache statistics.
func (t *Transport) Stats() map[string]int {
	return t.cache.Stats()
}

func (t *Transport) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(escapeQuery(rawURL))
	if err != nil {
		return "", fmt.Errorf("cannot parse request url %q: %w", rawURL, err)
	}
	if t.base == nil || ref.IsAbs() {
		return ref.String(), nil
	}
	return t.base.ResolveReference(ref).String(), nil
}

// escapeQuery percent-encodes the bytes of the query part that a browser
// would encode before sending: controls, space, '"', '<', '>' and anything
// outside ASCII. Existing escapes and delimiters are kept.
func escapeQuery(rawURL string) string {
	start := strings.IndexByte(rawURL, '?')
	if start < 0 {
		return rawURL
	}
	end := len(rawURL)
	if i := strings.IndexByte(rawURL[start:], '#'); i >= 0 {
		end = start + i
	}

	var b strings.Builder
	b.Grow(len(rawURL))
	b.WriteString(rawURL[:start+1])
	for i := start + 1; i < end; i++ {
		c := rawURL[i]
		if c <= ' ' || c >= 0x7f || c == '"' || c == '<' || c == '>' {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	b.WriteString(rawURL[end:])
	return b.String()
}

func (t *Transport) fetch(ctx context.Context, target string) ([]suggest.Suggestion, error) {
	if err := t.acquire(ctx); err != nil {
		return nil, err
	}
	defer t.release()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create request for the url %s: %w", target, err)
	}
	for key, values := range t.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot execute request for the url %s: %w", target, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodySize))
		return nil, &StatusError{Code: res.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("cannot read response from %s: %w", target, err)
	}

	items, err := suggest.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	t.logger.Debug("fetched", "url", target, "count", len(items), "took", time.Since(start))
	t.cache.Set(target, items)
	return items, nil
}

// acquire takes a pending slot. When none is free the caller waits on deck;
// a later caller replaces it and the earlier one gets ErrSuperseded.
func (t *Transport) acquire(ctx context.Context) error {
	if t.pending == nil || t.pending.TryAcquire(1) {
		return nil
	}

	deck := &onDeck{superseded: make(chan struct{})}
	t.mu.Lock()
	if t.onDeck != nil {
		close(t.onDeck.superseded)
	}
	t.onDeck = deck
	t.mu.Unlock()

	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	acquired := make(chan error, 1)
	go func() {
		acquired <- t.pending.Acquire(acquireCtx, 1)
	}()

	select {
	case err := <-acquired:
		t.clearDeck(deck)
		return err
	case <-deck.superseded:
		cancel()
		if err := <-acquired; err == nil {
			t.pending.Release(1)
		}
		return ErrSuperseded
	}
}

func (t *Transport) clearDeck(deck *onDeck) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.onDeck == deck {
		t.onDeck = nil
	}
}

func (t *Transport) release() {
	if t.pending != nil {
		t.pending.Release(1)
	}
}

package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/typebind/internal/logger"
	"github.com/bastiangx/typebind/pkg/binder"
	"github.com/bastiangx/typebind/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type stubFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *stubFetcher) Get(_ context.Context, url string) ([]suggest.Suggestion, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return []suggest.Suggestion{suggest.FromValue("Red Sneakers"), suggest.FromValue("Red Shoes")}, nil
}

func (f *stubFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// message is a superset of every response and event shape.
type message struct {
	ID          string               `msgpack:"id"`
	Status      string               `msgpack:"status"`
	Index       string               `msgpack:"index"`
	URL         string               `msgpack:"url"`
	Query       string               `msgpack:"q"`
	Suggestions []RenderedSuggestion `msgpack:"s"`
	Dataset     string               `msgpack:"d"`
	Value       string               `msgpack:"v"`
	Error       string               `msgpack:"e"`
	Code        int                  `msgpack:"c"`
}

func (b *syncBuffer) messages(t *testing.T) []message {
	t.Helper()
	dec := msgpack.NewDecoder(bytes.NewReader(b.snapshot()))
	var out []message
	for {
		var m message
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, m)
	}
}

func (b *syncBuffer) find(t *testing.T, match func(message) bool) (message, bool) {
	for _, m := range b.messages(t) {
		if match(m) {
			return m, true
		}
	}
	return message{}, false
}

type harness struct {
	t       *testing.T
	fetcher *stubFetcher
	out     *syncBuffer
	enc     *msgpack.Encoder
	in      *io.PipeWriter
	done    chan error
}

func start(t *testing.T) *harness {
	t.Helper()
	cfg := binder.DefaultConfig()
	cfg.RateWait = 0
	cfg.Logger = logger.Discard()
	fetcher := &stubFetcher{}

	r, w := io.Pipe()
	out := &syncBuffer{}
	srv := NewServerWithIO(binder.New(cfg, fetcher), Options{
		Index:       "products",
		MaxQueryLen: 10,
		Logger:      logger.Discard(),
	}, r, out)

	h := &harness{t: t, fetcher: fetcher, out: out, enc: msgpack.NewEncoder(w), in: w, done: make(chan error, 1)}
	go func() { h.done <- srv.Start(context.Background()) }()
	t.Cleanup(func() {
		w.Close()
		<-h.done
		srv.Close()
	})
	return h
}

func (h *harness) send(req Request) {
	h.t.Helper()
	require.NoError(h.t, h.enc.Encode(req))
}

func (h *harness) waitFor(match func(message) bool) message {
	h.t.Helper()
	var found message
	require.Eventually(h.t, func() bool {
		m, ok := h.out.find(h.t, match)
		found = m
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return found
}

func byID(id string) func(message) bool {
	return func(m message) bool { return m.ID == id }
}

func TestReadyAndHealth(t *testing.T) {
	h := start(t)
	h.send(Request{ID: "h1", Action: ActionHealth})

	ready := h.waitFor(byID("ready"))
	assert.Equal(t, "ready", ready.Status)
	health := h.waitFor(byID("h1"))
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Index)
}

func TestBindTypeSelect(t *testing.T) {
	h := start(t)

	h.send(Request{ID: "b1", Action: ActionBind})
	bound := h.waitFor(byID("b1"))
	assert.Equal(t, "products", bound.Index)
	assert.Equal(t, "_ui/_suggest?query=&index=products", bound.URL)

	h.send(Request{ID: "t1", Action: ActionType, Query: "red"})
	render := h.waitFor(func(m message) bool { return m.ID == EventRender && len(m.Suggestions) == 2 })
	assert.Equal(t, "red", render.Query)
	assert.Equal(t, "Red Sneakers", render.Suggestions[0].Value)
	assert.Equal(t, "suggestions", render.Suggestions[0].Dataset)
	assert.Equal(t, []string{"_ui/_suggest?query=red&index=products"}, h.fetcher.requested())

	h.send(Request{ID: "k1", Action: ActionKey, Key: "ArrowDown"})
	h.waitFor(func(m message) bool {
		return m.ID == EventRender && len(m.Suggestions) == 2 && m.Suggestions[0].Active
	})

	h.send(Request{ID: "s1", Action: ActionSelect, Item: 1})
	sel := h.waitFor(byID(EventSelect))
	assert.Equal(t, "Red Shoes", sel.Value)
	assert.Equal(t, "ok", h.waitFor(byID("s1")).Status)
}

func TestBindWithExplicitIndex(t *testing.T) {
	h := start(t)
	h.send(Request{ID: "b1", Action: ActionBind, Index: "orders"})
	assert.Equal(t, "orders", h.waitFor(byID("b1")).Index)

	h.send(Request{ID: "h1", Action: ActionHealth})
	assert.Equal(t, "orders", h.waitFor(byID("h1")).Index)
}

func TestErrors(t *testing.T) {
	h := start(t)

	h.send(Request{ID: "t0", Action: ActionType, Query: "red"})
	assert.Equal(t, 409, h.waitFor(byID("t0")).Code)

	h.send(Request{ID: "x1", Action: "explode"})
	assert.Equal(t, 400, h.waitFor(byID("x1")).Code)

	h.send(Request{ID: "b1", Action: ActionBind})
	h.waitFor(byID("b1"))

	h.send(Request{ID: "t1", Action: ActionType, Query: "much too long query"})
	assert.Equal(t, 400, h.waitFor(byID("t1")).Code)

	h.send(Request{ID: "k1", Action: ActionKey, Key: "F5"})
	assert.Equal(t, 400, h.waitFor(byID("k1")).Code)

	h.send(Request{ID: "s1", Action: ActionSelect, Item: 3})
	failed := h.waitFor(byID("s1"))
	assert.Equal(t, 404, failed.Code)
	assert.Contains(t, failed.Error, "suggestions")
}

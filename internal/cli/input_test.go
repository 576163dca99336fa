package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/typebind/internal/logger"
	"github.com/bastiangx/typebind/pkg/binder"
	"github.com/bastiangx/typebind/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct{}

func (stubFetcher) Get(_ context.Context, url string) ([]suggest.Suggestion, error) {
	if !strings.Contains(url, "query=red") {
		return nil, nil
	}
	return []suggest.Suggestion{suggest.FromValue("Red Sneakers"), suggest.FromValue("Red Shoes")}, nil
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

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInputHandlerTypeAndSelect(t *testing.T) {
	cfg := binder.DefaultConfig()
	cfg.RateWait = 0
	cfg.Logger = logger.Discard()

	r, w := io.Pipe()
	out := &syncBuffer{}
	h := NewInputHandler(binder.New(cfg, stubFetcher{}), Options{
		Index:  "products",
		Prompt: "> ",
		In:     r,
		Out:    out,
		Logger: logger.Discard(),
	})

	done := make(chan error, 1)
	go func() { done <- h.Start(context.Background()) }()

	write := func(line string) {
		_, err := io.WriteString(w, line+"\n")
		require.NoError(t, err)
	}
	waitFor := func(s string) {
		require.Eventually(t, func() bool { return strings.Contains(out.String(), s) }, 2*time.Second, 5*time.Millisecond)
	}

	waitFor(`index "products"`)
	write("red")
	waitFor("2 suggestions for 'red':")
	assert.Contains(t, out.String(), "Red Sneakers")

	write(":9")
	waitFor("no suggestion 9")
	write(":x")
	waitFor(`unknown command ":x"`)

	write(":2")
	waitFor("selected:")
	assert.Contains(t, out.String(), "Red Shoes")

	write(":q")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cli did not quit")
	}
	w.Close()
}

func TestInputHandlerStopsAtEOF(t *testing.T) {
	cfg := binder.DefaultConfig()
	cfg.Logger = logger.Discard()
	out := &syncBuffer{}
	h := NewInputHandler(binder.New(cfg, stubFetcher{}), Options{
		In:     strings.NewReader(""),
		Out:    out,
		Logger: logger.Discard(),
	})
	assert.NoError(t, h.Start(context.Background()))
	assert.Contains(t, out.String(), `index ""`)
}

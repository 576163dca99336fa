package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGet(t *testing.T) {
	s, err := New(t.TempDir(), "prefetch:http://localhost/data.json")
	require.NoError(t, err)
	assert.Equal(t, "prefetch_http_localhost_data.json.msgpack", filepath.Base(s.Path()))

	require.NoError(t, s.Set("data", []string{"red", "blue"}, 0))

	var got []string
	ok, err := s.Get("data", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"red", "blue"}, got)

	ok, err = s.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreTTL(t *testing.T) {
	s, err := New(t.TempDir(), "ttl")
	require.NoError(t, err)

	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set("fresh", "a", time.Minute))
	require.NoError(t, s.Set("forever", "b", 0))

	var v string
	ok, err := s.Get("fresh", &v)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.Get("fresh", &v)
	require.NoError(t, err)
	assert.False(t, ok, "entry should have expired")

	ok, err = s.Get("forever", &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestStoreSharedBetweenInstances(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir, "shared")
	require.NoError(t, err)
	b, err := New(dir, "shared")
	require.NoError(t, err)

	require.NoError(t, a.Set("k", 42, 0))

	var v int
	ok, err := b.Get("k", &v)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	require.NoError(t, b.Remove("k"))
	ok, err = a.Get("k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreClearAndCorruptFile(t *testing.T) {
	s, err := New(t.TempDir(), "corrupt")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.Path(), []byte("not msgpack at all"), 0644))
	var v string
	_, err = s.Get("k", &v)
	assert.Error(t, err)

	// writes replace an unreadable file
	require.NoError(t, s.Set("k", "v", 0))
	ok, err := s.Get("k", &v)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Clear())
	ok, err = s.Get("k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

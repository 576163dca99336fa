package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFilter(t *testing.T) {
	f := NewIdentityFilter("a")
	assert.False(t, f.ShouldInclude("a"))
	assert.True(t, f.ShouldInclude("A"))
	assert.True(t, f.ShouldInclude("b"))
	assert.False(t, f.ShouldInclude("b"))
}

func TestSuggestionFilterIgnoresCase(t *testing.T) {
	f := NewSuggestionFilter("Red")
	assert.False(t, f.ShouldInclude("red"))
	assert.True(t, f.ShouldInclude("shoes"))
	assert.False(t, f.ShouldInclude("SHOES"))
}

func TestSaveFilesReplaceContent(t *testing.T) {
	dir := t.TempDir()
	data := map[string]any{"binder": map[string]any{"index": "products"}}

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("stale"), 0644))
	require.NoError(t, SaveTOMLFile(data, tomlPath))
	raw, err := os.ReadFile(tomlPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `index = "products"`)
	assert.NotContains(t, string(raw), "stale")

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveYAMLFile(data, yamlPath))
	raw, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "binder:\n  index: products\n", string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestCheckDirStatus(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	res := CheckDirStatus(dir)
	assert.True(t, res.Exists)
	assert.True(t, res.Writable)
	assert.NoError(t, res.Error)
	assert.True(t, FileExists(dir))
}

func TestExtractHelpers(t *testing.T) {
	data := map[string]any{
		"remote": map[string]any{"base_url": "http://x/", "rate_wait_ms": int64(300), "enabled": true},
	}
	section, ok := ExtractSection(data, "remote")
	require.True(t, ok)

	s, ok := ExtractString(section, "base_url")
	assert.True(t, ok)
	assert.Equal(t, "http://x/", s)

	n, ok := ExtractInt64(section, "rate_wait_ms")
	assert.True(t, ok)
	assert.Equal(t, 300, n)

	b, ok := ExtractBool(section, "enabled")
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = ExtractString(section, "rate_wait_ms")
	assert.False(t, ok)
	_, ok = ExtractSection(data, "missing")
	assert.False(t, ok)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bastiangx/typebind/pkg/remote"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "#suggest", cfg.Binder.IndexSelector)
	assert.Equal(t, ".typeahead", cfg.Binder.InputSelector)
	assert.Equal(t, "_ui/_suggest?query=%QUERY&index=", cfg.Binder.Template)
	assert.Equal(t, "%QUERY", cfg.Binder.Wildcard)
	assert.Equal(t, "suggestions", cfg.Binder.Dataset)
	assert.Equal(t, "value", cfg.Binder.DisplayKey)
	assert.Equal(t, 5, cfg.Binder.Limit)
	assert.Equal(t, 1, cfg.Binder.MinLength)
	assert.Equal(t, 5, cfg.Binder.Sufficient)
	assert.Equal(t, 300, cfg.Remote.RateWaitMs)
	assert.Equal(t, 6, cfg.Remote.MaxPending)
	assert.Equal(t, 10, cfg.Cache.Size)
	assert.Equal(t, 86400000, cfg.Prefetch.TTLMs)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[binder]
index = "products"
limit = 8

[remote]
base_url = "http://search.local/"
rate_limit = "throttle"

[cache]
enabled = false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "products", cfg.Binder.Index)
	assert.Equal(t, 8, cfg.Binder.Limit)
	assert.Equal(t, ".typeahead", cfg.Binder.InputSelector, "unset keys keep defaults")
	assert.Equal(t, "http://search.local/", cfg.Remote.BaseURL)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
binder:
  index: products
  min_length: 2
remote:
  rate_wait_ms: 100
prefetch:
  url: data/products.json
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "products", cfg.Binder.Index)
	assert.Equal(t, 2, cfg.Binder.MinLength)
	assert.Equal(t, 100, cfg.Remote.RateWaitMs)
	assert.Equal(t, "data/products.json", cfg.Prefetch.URL)
	assert.Equal(t, 5, cfg.Binder.Limit)
}

func TestPartialTOMLRecovery(t *testing.T) {
	path := writeFile(t, "config.toml", `
[binder]
limit = "five"
index = "products"

[remote]
retry_max = 4
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Binder.Limit, "mistyped value keeps its default")
	assert.Equal(t, "products", cfg.Binder.Index)
	assert.Equal(t, 4, cfg.Remote.RetryMax)
}

func TestBrokenFilesFallBackToDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config.toml", "[binder\nlimit ="))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig(writeFile(t, "config.yml", "binder: [unclosed"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestInitConfigCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	index := "orders"
	require.NoError(t, cfg.Update(path, &index, nil))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", loaded.Binder.Index)
}

func TestSaveYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Binder.Index = "products"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigWithPriorityCustomPath(t *testing.T) {
	path := writeFile(t, "custom.toml", "[binder]\nindex = \"products\"\n")
	cfg, used, err := LoadConfigWithPriority(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "products", cfg.Binder.Index)
}

func TestApplyEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "TYPEBIND_INDEX=orders\nTYPEBIND_BASE_URL=http://from-file/\n")
	t.Setenv(EnvBaseURL, "http://from-env/")
	t.Setenv(EnvLogLevel, "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnv(envFile, filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "orders", cfg.Binder.Index)
	assert.Equal(t, "http://from-env/", cfg.Remote.BaseURL, "process env wins over .env")
	assert.Equal(t, log.DebugLevel, cfg.LogLevel())
	assert.Equal(t, "_ui/_suggest?query=%QUERY&index=", cfg.Binder.Template)
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Prefetch.URL = "data.json"

	bc, err := cfg.BinderConfig()
	require.NoError(t, err)
	assert.Equal(t, remote.Debounce, bc.RateLimit)
	assert.Equal(t, 300*time.Millisecond, bc.RateWait)
	assert.Equal(t, 24*time.Hour, bc.PrefetchTTL)
	assert.Equal(t, "data.json", bc.PrefetchURL)

	opts := cfg.TransportOptions()
	assert.Equal(t, 0, opts.CacheSize)
	assert.Equal(t, 10*time.Second, opts.Timeout)
	assert.Equal(t, 6, opts.MaxPending)

	cfg.Remote.RateLimit = "sometimes"
	_, err = cfg.BinderConfig()
	assert.Error(t, err)
}

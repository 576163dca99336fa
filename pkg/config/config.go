/*
Package config manages TOML and YAML config for typebind hosts.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bastiangx/typebind/internal/utils"
	"github.com/bastiangx/typebind/pkg/binder"
	"github.com/bastiangx/typebind/pkg/remote"
	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvBaseURL  = "TYPEBIND_BASE_URL"
	EnvIndex    = "TYPEBIND_INDEX"
	EnvTemplate = "TYPEBIND_TEMPLATE"
	EnvLogLevel = "TYPEBIND_LOG_LEVEL"
)

// Config holds the entire config structure
type Config struct {
	Binder   BinderConfig   `toml:"binder" yaml:"binder"`
	Remote   RemoteConfig   `toml:"remote" yaml:"remote"`
	Cache    CacheConfig    `toml:"cache" yaml:"cache"`
	Prefetch PrefetchConfig `toml:"prefetch" yaml:"prefetch"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	CLI      CliConfig      `toml:"cli" yaml:"cli"`
}

// BinderConfig selects the inputs and describes the suggestion dataset.
type BinderConfig struct {
	// Index is placed in the index element of documents built by the
	// server and CLI hosts.
	Index         string `toml:"index" yaml:"index"`
	IndexSelector string `toml:"index_selector" yaml:"index_selector"`
	InputSelector string `toml:"input_selector" yaml:"input_selector"`
	Template      string `toml:"template" yaml:"template"`
	Wildcard      string `toml:"wildcard" yaml:"wildcard"`
	Dataset       string `toml:"dataset" yaml:"dataset"`
	DisplayKey    string `toml:"display_key" yaml:"display_key"`
	Limit         int    `toml:"limit" yaml:"limit"`
	MinLength     int    `toml:"min_length" yaml:"min_length"`
	Sufficient    int    `toml:"sufficient" yaml:"sufficient"`
}

// RemoteConfig has HTTP and rate limiting options.
type RemoteConfig struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	TimeoutMs      int    `toml:"timeout_ms" yaml:"timeout_ms"`
	RetryMax       int    `toml:"retry_max" yaml:"retry_max"`
	RetryWaitMinMs int    `toml:"retry_wait_min_ms" yaml:"retry_wait_min_ms"`
	RetryWaitMaxMs int    `toml:"retry_wait_max_ms" yaml:"retry_wait_max_ms"`
	RateLimit      string `toml:"rate_limit" yaml:"rate_limit"`
	RateWaitMs     int    `toml:"rate_wait_ms" yaml:"rate_wait_ms"`
	MaxPending     int    `toml:"max_pending" yaml:"max_pending"`
}

// CacheConfig holds the response cache options.
type CacheConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	Size    int  `toml:"size" yaml:"size"`
}

// PrefetchConfig enables loading a full datum list at bind time.
type PrefetchConfig struct {
	URL   string `toml:"url" yaml:"url"`
	TTLMs int    `toml:"ttl_ms" yaml:"ttl_ms"`
	Dir   string `toml:"dir" yaml:"dir"`
}

// ServerConfig has IPC server options.
type ServerConfig struct {
	LogLevel    string `toml:"log_level" yaml:"log_level"`
	MaxQueryLen int    `toml:"max_query_len" yaml:"max_query_len"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	Prompt  string `toml:"prompt" yaml:"prompt"`
	ShowRaw bool   `toml:"show_raw" yaml:"show_raw"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.GetExecutableDir()
	}
	primaryPath := filepath.Join(homeDir, ".config", "typebind")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "typebind")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/typebind/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Binder: BinderConfig{
			IndexSelector: "#suggest",
			InputSelector: ".typeahead",
			Template:      "_ui/_suggest?query=%QUERY&index=",
			Wildcard:      remote.DefaultWildcard,
			Dataset:       "suggestions",
			DisplayKey:    "value",
			Limit:         5,
			MinLength:     1,
			Sufficient:    5,
		},
		Remote: RemoteConfig{
			BaseURL:        "http://localhost:8080/",
			TimeoutMs:      10000,
			RetryMax:       2,
			RetryWaitMinMs: 10,
			RetryWaitMaxMs: 500,
			RateLimit:      "debounce",
			RateWaitMs:     300,
			MaxPending:     6,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    10,
		},
		Prefetch: PrefetchConfig{
			TTLMs: 86400000,
		},
		Server: ServerConfig{
			LogLevel:    "warn",
			MaxQueryLen: 256,
		},
		CLI: CliConfig{
			Prompt: "> ",
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads a TOML or YAML file, chosen by extension.
func LoadConfig(configPath string) (*Config, error) {
	if isYAML(configPath) {
		return loadYAML(configPath)
	}

	config := DefaultConfig()
	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func loadYAML(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		log.Warnf("Could not parse YAML configuration from %s: %v. Using all defaults.", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// tryPartialParse keeps every well-typed value of a TOML file that failed to
// decode into Config.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "binder"); ok {
		extractBinderConfig(section, &config.Binder)
	}
	if section, ok := utils.ExtractSection(tempConfig, "remote"); ok {
		extractRemoteConfig(section, &config.Remote)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cache"); ok {
		if val, ok := utils.ExtractBool(section, "enabled"); ok {
			config.Cache.Enabled = val
		}
		if val, ok := utils.ExtractInt64(section, "size"); ok {
			config.Cache.Size = val
		}
	}
	if section, ok := utils.ExtractSection(tempConfig, "prefetch"); ok {
		extractString(section, "url", &config.Prefetch.URL)
		extractString(section, "dir", &config.Prefetch.Dir)
		if val, ok := utils.ExtractInt64(section, "ttl_ms"); ok {
			config.Prefetch.TTLMs = val
		}
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractString(section, "log_level", &config.Server.LogLevel)
		if val, ok := utils.ExtractInt64(section, "max_query_len"); ok {
			config.Server.MaxQueryLen = val
		}
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractString(section, "prompt", &config.CLI.Prompt)
		if val, ok := utils.ExtractBool(section, "show_raw"); ok {
			config.CLI.ShowRaw = val
		}
	}
	return config, nil
}

func extractBinderConfig(data map[string]any, b *BinderConfig) {
	extractString(data, "index", &b.Index)
	extractString(data, "index_selector", &b.IndexSelector)
	extractString(data, "input_selector", &b.InputSelector)
	extractString(data, "template", &b.Template)
	extractString(data, "wildcard", &b.Wildcard)
	extractString(data, "dataset", &b.Dataset)
	extractString(data, "display_key", &b.DisplayKey)
	if val, ok := utils.ExtractInt64(data, "limit"); ok {
		b.Limit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_length"); ok {
		b.MinLength = val
	}
	if val, ok := utils.ExtractInt64(data, "sufficient"); ok {
		b.Sufficient = val
	}
}

func extractRemoteConfig(data map[string]any, r *RemoteConfig) {
	extractString(data, "base_url", &r.BaseURL)
	extractString(data, "rate_limit", &r.RateLimit)
	for key, dst := range map[string]*int{
		"timeout_ms":        &r.TimeoutMs,
		"retry_max":         &r.RetryMax,
		"retry_wait_min_ms": &r.RetryWaitMinMs,
		"retry_wait_max_ms": &r.RetryWaitMaxMs,
		"rate_wait_ms":      &r.RateWaitMs,
		"max_pending":       &r.MaxPending,
	} {
		if val, ok := utils.ExtractInt64(data, key); ok {
			*dst = val
		}
	}
}

func extractString(data map[string]any, key string, dst *string) {
	if val, ok := utils.ExtractString(data, key); ok {
		*dst = val
	}
}

// ApplyEnv overrides file values with TYPEBIND_* variables. Values from the
// process environment win over values read from the given .env files.
// Missing .env files are ignored.
func (c *Config) ApplyEnv(envFiles ...string) {
	fileEnv := make(map[string]string)
	for _, f := range envFiles {
		if !utils.FileExists(f) {
			continue
		}
		vars, err := godotenv.Read(f)
		if err != nil {
			log.Warnf("Failed to read env file %s: %v", f, err)
			continue
		}
		for k, v := range vars {
			fileEnv[k] = v
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok && v != ""
	}

	if v, ok := lookup(EnvBaseURL); ok {
		c.Remote.BaseURL = v
	}
	if v, ok := lookup(EnvIndex); ok {
		c.Binder.Index = v
	}
	if v, ok := lookup(EnvTemplate); ok {
		c.Binder.Template = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Server.LogLevel = v
	}
}

// BinderConfig converts the binder, remote and prefetch sections.
func (c *Config) BinderConfig() (binder.Config, error) {
	mode, err := remote.ParseRateLimit(c.Remote.RateLimit)
	if err != nil {
		return binder.Config{}, err
	}
	return binder.Config{
		IndexSelector: c.Binder.IndexSelector,
		InputSelector: c.Binder.InputSelector,
		Template:      c.Binder.Template,
		Wildcard:      c.Binder.Wildcard,
		Dataset:       c.Binder.Dataset,
		DisplayKey:    c.Binder.DisplayKey,
		Limit:         c.Binder.Limit,
		MinLength:     c.Binder.MinLength,
		Sufficient:    c.Binder.Sufficient,
		RateLimit:     mode,
		RateWait:      millis(c.Remote.RateWaitMs),
		PrefetchURL:   c.Prefetch.URL,
		PrefetchTTL:   millis(c.Prefetch.TTLMs),
		PrefetchDir:   c.Prefetch.Dir,
	}, nil
}

// TransportOptions converts the remote and cache sections.
func (c *Config) TransportOptions() remote.Options {
	opts := remote.DefaultOptions()
	opts.BaseURL = c.Remote.BaseURL
	opts.Timeout = millis(c.Remote.TimeoutMs)
	opts.RetryMax = c.Remote.RetryMax
	opts.RetryWaitMin = millis(c.Remote.RetryWaitMinMs)
	opts.RetryWaitMax = millis(c.Remote.RetryWaitMaxMs)
	opts.MaxPending = c.Remote.MaxPending
	opts.CacheSize = c.Cache.Size
	if !c.Cache.Enabled {
		opts.CacheSize = 0
	}
	return opts
}

// LogLevel parses Server.LogLevel, falling back to warn.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Server.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level %q, using warn", c.Server.LogLevel)
		return log.WarnLevel
	}
	return level
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig writes config in the format matching the file extension.
// Writers in other processes are excluded by a lock file next to configPath.
func SaveConfig(config *Config, configPath string) error {
	lock := flock.New(configPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("cannot lock %s: %w", configPath, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Errorf("Failed to unlock %s: %v", configPath, err)
		}
	}()

	if isYAML(configPath) {
		return utils.SaveYAMLFile(config, configPath)
	}
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes the index and base URL and saves to file.
func (c *Config) Update(configPath string, index, baseURL *string) error {
	if index != nil {
		c.Binder.Index = *index
	}
	if baseURL != nil {
		c.Remote.BaseURL = *baseURL
	}
	return SaveConfig(c, configPath)
}

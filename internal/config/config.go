// Package config provides configuration management for taskgraphd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the service configuration (spec.md §6.5).
type Config struct {
	Service   ServiceConfig   `toml:"service"`
	Storage   StorageConfig   `toml:"storage"`
	Hierarchy HierarchyConfig `toml:"hierarchy"`
	Cache     CacheConfig     `toml:"cache"`
	Watch     WatchConfig     `toml:"watch"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServiceConfig contains process-level settings.
type ServiceConfig struct {
	DataDir         string `toml:"data_dir"`
	PIDFile         string `toml:"pid_file"`
	ShutdownTimeout int    `toml:"shutdown_timeout_seconds"`
}

// StorageConfig controls the Storage Detector (§4.1).
type StorageConfig struct {
	// Roots is the list of absolute paths to scan for task directories.
	Roots StringSlice `toml:"storage_roots"`

	// ScanConcurrency bounds the Phase 1 indexing worker fan-out.
	// Skeleton building in BuildOrRefresh runs sequentially.
	ScanConcurrency int `toml:"scan_concurrency"`

	// PerTaskTimeoutMs is the soft per-task processing deadline. It is
	// loaded and saved with the configuration, but no component reads
	// it: per-task processing runs without a deadline.
	PerTaskTimeoutMs int `toml:"per_task_timeout_ms"`
}

// HierarchyConfig controls the Prefix Normalizer and Phase 2 resolution.
type HierarchyConfig struct {
	// PrefixLength is the normalized-prefix length (§4.4), default 192.
	PrefixLength int `toml:"prefix_length"`

	// RootPatterns is the closed set of literal conversational-root
	// markers (§6.5, §9 Open Question #1 — locale policy left to
	// deployment, default mixes English/French).
	RootPatterns StringSlice `toml:"root_patterns"`
}

// CacheConfig controls the Skeleton Cache (§4.7). Path is the cache
// root directory (spec.md §6.1: "<root>/.skeleton-cache/"); the
// skeleton map file and Refresh Log history live inside it.
type CacheConfig struct {
	Path         string `toml:"cache_path"`
	ForceRebuild bool   `toml:"force_rebuild"`
	HistorySize  int    `toml:"history_size"`
}

// SkeletonsFile returns the path to the on-disk skeleton map
// (spec.md §6.1: "<root>/.skeleton-cache/skeletons.json").
func (c CacheConfig) SkeletonsFile() string {
	return filepath.Join(c.Path, "skeletons.json")
}

// HistoryDir returns the Refresh Log directory (SPEC_FULL.md "Refresh
// history": "<cache_root>/.skeleton-cache/history/").
func (c CacheConfig) HistoryDir() string {
	return filepath.Join(c.Path, "history")
}

// WatchConfig controls the optional storage-root watcher (SPEC_FULL.md
// "Storage-root watching" supplement).
type WatchConfig struct {
	Enabled    bool `toml:"enabled"`
	DebounceMs int  `toml:"debounce_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string      `toml:"level"`
	Format     string      `toml:"format"`
	Output     StringSlice `toml:"output"`
	TimeFormat string      `toml:"time_format"`
	MaxSizeMB  int         `toml:"max_size_mb"`
	MaxBackups int         `toml:"max_backups"`
}

// StringSlice is a custom type that can unmarshal from either a string or []string.
type StringSlice []string

// UnmarshalTOML implements toml.Unmarshaler for flexible config parsing.
func (s *StringSlice) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*s = []string{v}
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string in array, got %T", item)
			}
			result[i] = str
		}
		*s = result
	default:
		return fmt.Errorf("expected string or array, got %T", data)
	}
	return nil
}

// DefaultRootPatterns is the closed set of conversational-root markers.
// Mixed English/French per SPEC_FULL.md Resolved Decision #1.
func DefaultRootPatterns() []string {
	return []string{
		"hello",
		"hi ",
		"hi,",
		"i would like to",
		"i need",
		"i want to",
		"can you",
		"could you",
		"bonjour",
		"salut",
		"j'aimerais",
		"je voudrais",
		"peux-tu",
		"pourrais-tu",
	}
}

// DefaultConfig returns the default configuration with all values set.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	return &Config{
		Service: ServiceConfig{
			DataDir:         dataDir,
			PIDFile:         filepath.Join(dataDir, "taskgraphd.pid"),
			ShutdownTimeout: 30,
		},
		Storage: StorageConfig{
			Roots:            StringSlice{},
			ScanConcurrency:  defaultScanConcurrency(),
			PerTaskTimeoutMs: 5000,
		},
		Hierarchy: HierarchyConfig{
			PrefixLength: 192,
			RootPatterns: StringSlice(DefaultRootPatterns()),
		},
		Cache: CacheConfig{
			Path:         filepath.Join(dataDir, ".skeleton-cache"),
			ForceRebuild: false,
			HistorySize:  50,
		},
		Watch: WatchConfig{
			Enabled:    false,
			DebounceMs: 500,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     StringSlice{"file"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

func defaultScanConcurrency() int {
	n := runtime.NumCPU() * 2
	if n < 2 {
		n = 2
	}
	if n > 32 {
		n = 32
	}
	return n
}

// DefaultDataDir returns the default data directory based on OS.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "taskgraphd")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "taskgraphd")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "taskgraphd")
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "taskgraphd")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".taskgraphd")
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Load loads configuration from a file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// LoadFromString loads configuration from a TOML string, merging with defaults.
func LoadFromString(tomlStr string) (*Config, error) {
	cfg := DefaultConfig()

	expanded := os.ExpandEnv(tomlStr)

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config string: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	expandTilde := func(path string) string {
		if strings.HasPrefix(path, "~/") {
			return filepath.Join(home, path[2:])
		}
		return path
	}

	c.Service.DataDir = expandTilde(c.Service.DataDir)
	c.Service.PIDFile = expandTilde(c.Service.PIDFile)
	c.Cache.Path = expandTilde(c.Cache.Path)

	roots := make(StringSlice, len(c.Storage.Roots))
	for i, r := range c.Storage.Roots {
		roots[i] = expandTilde(r)
	}
	c.Storage.Roots = roots
}

// Save saves the configuration to a file in TOML format.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}

// EnsureDirectories creates the service's data, cache, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Service.DataDir, c.Cache.Path, filepath.Join(c.Service.DataDir, "logs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// PIDPath returns the PID file path.
func (c *Config) PIDPath() string { return c.Service.PIDFile }

// LogPath returns the daemon log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.Service.DataDir, "logs", "taskgraphd.log")
}

// EmptyStorageRoots reports whether no storage roots were configured.
func (c *Config) EmptyStorageRoots() bool {
	return len(c.Storage.Roots) == 0
}

// ParsePort is retained as a small helper for CLI flag parsing.
func ParsePort(s string) (int, error) {
	return strconv.Atoi(s)
}

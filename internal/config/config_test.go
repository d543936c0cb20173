package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 192, cfg.Hierarchy.PrefixLength)
	assert.NotEmpty(t, cfg.Hierarchy.RootPatterns)
	assert.True(t, cfg.Storage.ScanConcurrency >= 2)
	assert.True(t, cfg.EmptyStorageRoots())
}

func TestLoadFromStringMergesDefaults(t *testing.T) {
	toml := `
[storage]
storage_roots = ["/data/tasks"]
scan_concurrency = 4

[hierarchy]
prefix_length = 100
`
	cfg, err := LoadFromString(toml)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/tasks"}, []string(cfg.Storage.Roots))
	assert.Equal(t, 4, cfg.Storage.ScanConcurrency)
	assert.Equal(t, 100, cfg.Hierarchy.PrefixLength)
	// Untouched sections keep defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestStringSliceUnmarshalBareString(t *testing.T) {
	toml := `
[logging]
output = "stdout"
`
	cfg, err := LoadFromString(toml)
	require.NoError(t, err)
	assert.Equal(t, []string{"stdout"}, []string(cfg.Logging.Output))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Hierarchy.PrefixLength, cfg.Hierarchy.PrefixLength)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Storage.Roots = StringSlice{"/a", "/b"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, []string(loaded.Storage.Roots))
}

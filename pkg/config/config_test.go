package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 200*time.Millisecond, cfg.Autocomplete.Debounce())
	assert.Equal(t, "", cfg.Autocomplete.DefaultValue)
	assert.Equal(t, 1, cfg.Provider.MinPrefix)
	assert.Equal(t, 60, cfg.Provider.MaxPrefix)
	assert.Equal(t, 5, cfg.Provider.DefaultLimit)
	assert.Equal(t, 20, cfg.Provider.MaxLimit)
	assert.True(t, cfg.Provider.Fuzzy)
	assert.True(t, cfg.Server.WatchConfig)
}

func TestDebounceClampsNegative(t *testing.T) {
	assert.Equal(t, time.Duration(0), AutocompleteConfig{DebounceMs: -5}.Debounce())
}

func TestInitConfig_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), loaded)
}

func TestInitConfig_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	writeFile(t, blocker, "")

	_, err := InitConfig(filepath.Join(blocker, "config.toml"))
	assert.Error(t, err)
}

func TestLoadConfig_RecoversFromSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[provider]\nmax_limit = 9\n\n[server]\nburst = \n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Provider.MaxLimit)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[autocomplete]
debounce_ms = 50
default_value = "Welly"

[provider]
max_limit = 7
fuzzy = false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.Autocomplete.Debounce())
	assert.Equal(t, "Welly", cfg.Autocomplete.DefaultValue)
	assert.Equal(t, 7, cfg.Provider.MaxLimit)
	assert.False(t, cfg.Provider.Fuzzy)
	// untouched keys keep their defaults
	assert.Equal(t, 60, cfg.Provider.MaxPrefix)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoadConfig_PartialRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[autocomplete]
debounce_ms = "fast"

[provider]
max_limit = 7

[server]
rate_limit = 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Autocomplete.DebounceMs)
	assert.Equal(t, 7, cfg.Provider.MaxLimit)
	assert.Equal(t, 5.0, cfg.Server.RateLimit)
}

func TestLoadConfig_UnparseableFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[provider\nmax_limit = ")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigWithPriority_CustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	writeFile(t, path, "[cli]\nshow_types = false\n")

	cfg, used, err := LoadConfigWithPriority(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.False(t, cfg.CLI.ShowTypes)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveConfig(DefaultConfig(), path))

	w, err := NewWatcher(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	var mu sync.Mutex
	var got []*Config
	w.OnReload(func(cfg *Config) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, cfg)
		return nil
	})
	w.OnReload(func(*Config) error {
		return errors.New("callback failures are only logged")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, filepath.Join(filepath.Dir(path), "other.toml"), "[cli]\n")
	writeFile(t, path, "[provider]\nmax_limit = 3\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].Provider.MaxLimit == 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "config.toml"), 0)
	assert.Error(t, err)
}

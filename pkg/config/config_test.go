package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "resdir.db", filepath.Base(cfg.Storage.DSN))
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultPageSize, cfg.Search.DefaultPageSize)
	assert.Equal(t, DefaultMaxPageSize, cfg.Search.MaxPageSize)
	assert.Equal(t, DefaultDebounce, cfg.Client.Debounce.Duration)
	assert.Equal(t, DefaultClientTimeout, cfg.Client.Timeout.Duration)
	assert.Equal(t, DefaultOptimizeInterval, cfg.Storage.OptimizeInterval.Duration)
}

func TestLoadConfigParsesSections(t *testing.T) {
	path := writeConfig(t, `
[server]
listen = "0.0.0.0:9000"
read_timeout = "5s"

[storage]
driver = "postgres"
dsn = "postgres://u:p@db:5432/resdir"
optimize_interval = "30m"

[search]
default_page_size = 20
max_page_size = 50
category_cache_ttl = "1m"
category_cache_size = -1

[client]
api_url = "http://api.example"
debounce = "150ms"
live = true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout.Duration)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/resdir", cfg.Storage.DSN)
	assert.Equal(t, 30*time.Minute, cfg.Storage.OptimizeInterval.Duration)
	assert.Equal(t, 20, cfg.Search.DefaultPageSize)
	assert.Equal(t, 50, cfg.Search.MaxPageSize)
	assert.Equal(t, time.Minute, cfg.Search.CategoryCacheTTL.Duration)
	assert.Equal(t, -1, cfg.Search.CategoryCacheSize)
	assert.Equal(t, "http://api.example", cfg.Client.APIURL)
	assert.Equal(t, 150*time.Millisecond, cfg.Client.Debounce.Duration)
	assert.Zero(t, cfg.Client.Timeout.Duration)
	assert.True(t, cfg.Client.Live)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "[storage]\ndriver = \"mysql\"\ndsn = \"x\"\n"},
		{"postgres without dsn", "[storage]\ndriver = \"postgres\"\n"},
		{"page size above max", "[storage]\ndsn = \"x.db\"\n[search]\ndefault_page_size = 200\nmax_page_size = 10\n"},
		{"bad duration", "[client]\ndebounce = \"soon\"\n"},
		{"negative optimize interval", "[storage]\ndsn = \"x.db\"\noptimize_interval = \"-1h\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg := &Config{Storage: StorageConfig{Driver: DriverSQLite, DSN: "/srv/resdir/data.db"}}
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, cfg.SaveTemplateConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/resdir/data.db", loaded.Storage.DSN)
	assert.Equal(t, 300*time.Millisecond, loaded.Client.Debounce.Duration)
	assert.Equal(t, 10*time.Second, loaded.Client.Timeout.Duration)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := GetDefaultConfig()
	require.NoError(t, err)
	cfg.Search.MaxPageSize = 42

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

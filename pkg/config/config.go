package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultListen            = "127.0.0.1:8080"
	DefaultPageSize          = 12
	DefaultMaxPageSize       = 100
	DefaultCategoryCacheSize = 256
	DefaultCategoryCacheTTL  = 5 * time.Minute
	DefaultDebounce          = 300 * time.Millisecond
	DefaultClientTimeout     = 10 * time.Second
	DefaultOptimizeInterval  = 6 * time.Hour
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Search  SearchConfig  `toml:"search"`
	Client  ClientConfig  `toml:"client"`
}

type ServerConfig struct {
	Listen       string   `toml:"listen"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

type StorageConfig struct {
	// Driver is either "sqlite" or "postgres".
	Driver string `toml:"driver"`
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN string `toml:"dsn"`
	// OptimizeInterval is how often `resdir serve` optimizes the database.
	// Zero disables it.
	OptimizeInterval Duration `toml:"optimize_interval"`
}

type SearchConfig struct {
	DefaultPageSize   int      `toml:"default_page_size"`
	MaxPageSize       int      `toml:"max_page_size"`
	CategoryCacheTTL  Duration `toml:"category_cache_ttl"`
	CategoryCacheSize int      `toml:"category_cache_size"`
}

type ClientConfig struct {
	APIURL   string   `toml:"api_url"`
	Debounce Duration `toml:"debounce"`
	// Timeout bounds each HTTP fetch. Zero disables it.
	Timeout Duration `toml:"timeout"`
	// Live switches the browse client to the WebSocket transport.
	Live bool `toml:"live"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	dbPath, err := GetDefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("getting default database path: %w", err)
	}
	c := &Config{
		Storage: StorageConfig{Driver: DriverSQLite, DSN: dbPath, OptimizeInterval: Duration{DefaultOptimizeInterval}},
		Client:  ClientConfig{Timeout: Duration{DefaultClientTimeout}},
	}
	c.applyDefaults()
	return c, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.Storage.Driver == "" {
		config.Storage.Driver = DriverSQLite
	}
	if config.Storage.DSN == "" && config.Storage.Driver == DriverSQLite {
		dbPath, err := GetDefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("getting default database path: %w", err)
		}
		config.Storage.DSN = dbPath
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.ReadTimeout.Duration == 0 {
		c.Server.ReadTimeout = Duration{15 * time.Second}
	}
	if c.Server.WriteTimeout.Duration == 0 {
		c.Server.WriteTimeout = Duration{15 * time.Second}
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = DefaultPageSize
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = DefaultMaxPageSize
	}
	if c.Search.CategoryCacheTTL.Duration == 0 {
		c.Search.CategoryCacheTTL = Duration{DefaultCategoryCacheTTL}
	}
	if c.Search.CategoryCacheSize == 0 {
		c.Search.CategoryCacheSize = DefaultCategoryCacheSize
	}
	if c.Client.APIURL == "" {
		c.Client.APIURL = "http://" + c.Server.Listen
	}
	if c.Client.Debounce.Duration == 0 {
		c.Client.Debounce = Duration{DefaultDebounce}
	}
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported storage driver %q (want %s or %s)", c.Storage.Driver, DriverSQLite, DriverPostgres)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage dsn is required for driver %s", c.Storage.Driver)
	}
	if c.Storage.OptimizeInterval.Duration < 0 {
		return fmt.Errorf("storage optimize_interval must not be negative")
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search default_page_size (%d) exceeds max_page_size (%d)", c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	return nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	dsn := c.Storage.DSN
	if dsn == "" {
		var err error
		dsn, err = GetDefaultDBPath()
		if err != nil {
			return "", fmt.Errorf("getting default database path: %w", err)
		}
	}

	// Replace the placeholder dsn with the actual path
	template := strings.Replace(configTemplate, "/home/user/.local/share/resdir/resdir.db", dsn, 1)
	return template, nil
}

// GetDefaultStorageDir returns the default storage directory for databases
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "resdir")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultDBPath returns the default sqlite database path in the user's data directory
func GetDefaultDBPath() (string, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(storageDir, "resdir.db"), nil
}

// GetConfigDir returns the configuration directory for resdir
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "resdir")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

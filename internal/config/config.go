package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/index"
	"github.com/Aman-CERP/fuzzidx/internal/search"
	"github.com/Aman-CERP/fuzzidx/internal/store"
)

// Project config file names, in lookup order.
var projectConfigNames = []string{".fuzzidx.yaml", ".fuzzidx.yml", ".fuzzidx.toml"}

// DefaultDataDir is the index directory, relative to the project root.
const DefaultDataDir = ".fuzzidx"

// Config represents the complete fuzzidx configuration.
type Config struct {
	Version int           `yaml:"version" json:"version" toml:"version"`
	Storage StorageConfig `yaml:"storage" json:"storage" toml:"storage"`
	Index   IndexConfig   `yaml:"index" json:"index" toml:"index"`
	Search  SearchConfig  `yaml:"search" json:"search" toml:"search"`
	Server  ServerConfig  `yaml:"server" json:"server" toml:"server"`
	Watch   WatchConfig   `yaml:"watch" json:"watch" toml:"watch"`
	Fields  []FieldConfig `yaml:"fields" json:"fields" toml:"fields"`
}

// StorageConfig selects and tunes the trigram store.
type StorageConfig struct {
	// Backend is "sqlite" (default), "bleve" or "memory".
	Backend string `yaml:"backend" json:"backend" toml:"backend"`

	// Path is the index directory. Relative paths resolve against the
	// project root.
	Path string `yaml:"path" json:"path" toml:"path"`

	// Driver is the SQLite driver: "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `yaml:"driver" json:"driver" toml:"driver"`

	// BulkInsert is "auto", "on" or "off".
	BulkInsert       string `yaml:"bulk_insert" json:"bulk_insert" toml:"bulk_insert"`
	MaxRowsPerInsert int    `yaml:"max_rows_per_insert" json:"max_rows_per_insert" toml:"max_rows_per_insert"`
	CacheMB          int    `yaml:"cache_mb" json:"cache_mb" toml:"cache_mb"`
}

// IndexConfig configures reindexing.
type IndexConfig struct {
	// Namespace prefixes owner types, so several projects can share a store.
	Namespace string `yaml:"namespace" json:"namespace" toml:"namespace"`
	BatchSize int    `yaml:"batch_size" json:"batch_size" toml:"batch_size"`
	Workers   int    `yaml:"workers" json:"workers" toml:"workers"`
}

// SearchConfig configures query defaults.
type SearchConfig struct {
	DefaultLimit   int  `yaml:"default_limit" json:"default_limit" toml:"default_limit"`
	MaxLimit       int  `yaml:"max_limit" json:"max_limit" toml:"max_limit"`
	QueryCacheSize int  `yaml:"query_cache_size" json:"query_cache_size" toml:"query_cache_size"`
	Weighted       bool `yaml:"weighted" json:"weighted" toml:"weighted"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport" toml:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level" toml:"log_level"`
}

// WatchConfig configures source file watching.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce" toml:"debounce"`
}

// FieldConfig declares one searchable field and where its values come from.
type FieldConfig struct {
	OwnerType string `yaml:"owner_type" json:"owner_type" toml:"owner_type"`
	Field     string `yaml:"field" json:"field" toml:"field"`

	// Source is a JSON Lines file, one owner per line.
	Source string `yaml:"source" json:"source" toml:"source"`

	// IDPath and TextPath are gjson paths into each line.
	IDPath   string `yaml:"id_path" json:"id_path" toml:"id_path"`
	TextPath string `yaml:"text_path" json:"text_path" toml:"text_path"`
}

// Key returns "OwnerType.field".
func (f FieldConfig) Key() string {
	return f.OwnerType + "." + f.Field
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Backend:    string(store.BackendSQLite),
			Path:       DefaultDataDir,
			Driver:     store.DriverModernc,
			BulkInsert: store.BulkAuto,
			CacheMB:    64,
		},
		Index: IndexConfig{
			BatchSize: index.DefaultBatchSize,
			Workers:   runtime.NumCPU(),
		},
		Search: SearchConfig{
			DefaultLimit:   search.DefaultLimit,
			MaxLimit:       search.DefaultMaxLimit,
			QueryCacheSize: 1024,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Watch: WatchConfig{
			Debounce: "200ms",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/fuzzidx/config.yaml, or ~/.config/fuzzidx/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fuzzidx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fuzzidx", "config.yaml")
	}
	return filepath.Join(home, ".config", "fuzzidx", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// FindProjectConfig returns the project config file in dir, or "" if none.
func FindProjectConfig(dir string) string {
	for _, name := range projectConfigNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// Load loads configuration for the project rooted at dir.
// Precedence, lowest first:
//  1. Defaults
//  2. User config
//  3. Project config (.fuzzidx.yaml, .fuzzidx.yml or .fuzzidx.toml)
//  4. FUZZIDX_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadFile(userPath); err != nil {
			return nil, err
		}
	}

	if projectPath := FindProjectConfig(dir); projectPath != "" {
		if err := cfg.loadFile(projectPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fzerrors.New(fzerrors.ErrCodeConfigInvalid, "invalid environment override", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fzerrors.New(fzerrors.ErrCodeConfigInvalid, "invalid configuration", err).
			WithSuggestion("Run 'fuzzidx config show' to inspect the effective configuration")
	}

	return cfg, nil
}

// loadFile parses a YAML or TOML file and merges it into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return fzerrors.New(fzerrors.ErrCodeConfigPermission, "cannot read config file "+path, err)
		}
		return fzerrors.New(fzerrors.ErrCodeConfigNotFound, "cannot read config file "+path, err)
	}

	var parsed Config
	if strings.HasSuffix(path, ".toml") {
		err = toml.Unmarshal(data, &parsed)
	} else {
		err = yaml.Unmarshal(data, &parsed)
	}
	if err != nil {
		return fzerrors.New(fzerrors.ErrCodeConfigInvalid, "cannot parse config file "+path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Storage
	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.BulkInsert != "" {
		c.Storage.BulkInsert = other.Storage.BulkInsert
	}
	if other.Storage.MaxRowsPerInsert != 0 {
		c.Storage.MaxRowsPerInsert = other.Storage.MaxRowsPerInsert
	}
	if other.Storage.CacheMB != 0 {
		c.Storage.CacheMB = other.Storage.CacheMB
	}

	// Index
	if other.Index.Namespace != "" {
		c.Index.Namespace = other.Index.Namespace
	}
	if other.Index.BatchSize != 0 {
		c.Index.BatchSize = other.Index.BatchSize
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}

	// Search
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.QueryCacheSize != 0 {
		c.Search.QueryCacheSize = other.Search.QueryCacheSize
	}
	// false cannot be told apart from unset
	if other.Search.Weighted {
		c.Search.Weighted = true
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Fields replace rather than append, so a project can narrow the user list.
	if len(other.Fields) > 0 {
		c.Fields = other.Fields
	}
}

// applyEnvOverrides applies FUZZIDX_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("FUZZIDX_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("FUZZIDX_DATA_DIR"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("FUZZIDX_SQLITE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("FUZZIDX_BULK_INSERT"); v != "" {
		c.Storage.BulkInsert = v
	}
	if v := os.Getenv("FUZZIDX_NAMESPACE"); v != "" {
		c.Index.Namespace = v
	}
	if v := os.Getenv("FUZZIDX_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FUZZIDX_BATCH_SIZE: %w", err)
		}
		c.Index.BatchSize = n
	}
	if v := os.Getenv("FUZZIDX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FUZZIDX_WORKERS: %w", err)
		}
		c.Index.Workers = n
	}
	if v := os.Getenv("FUZZIDX_WEIGHTED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FUZZIDX_WEIGHTED: %w", err)
		}
		c.Search.Weighted = b
	}
	if v := os.Getenv("FUZZIDX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("FUZZIDX_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch store.Backend(strings.ToLower(c.Storage.Backend)) {
	case store.BackendSQLite, store.BackendBleve, store.BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be 'sqlite', 'bleve' or 'memory', got %s", c.Storage.Backend)
	}
	if c.Storage.Driver != store.DriverModernc && c.Storage.Driver != store.DriverMattn {
		return fmt.Errorf("storage.driver must be 'sqlite' or 'sqlite3', got %s", c.Storage.Driver)
	}
	switch c.Storage.BulkInsert {
	case store.BulkAuto, store.BulkOn, store.BulkOff:
	default:
		return fmt.Errorf("storage.bulk_insert must be 'auto', 'on' or 'off', got %s", c.Storage.BulkInsert)
	}
	if c.Storage.MaxRowsPerInsert < 0 {
		return fmt.Errorf("storage.max_rows_per_insert must be non-negative, got %d", c.Storage.MaxRowsPerInsert)
	}

	if strings.Contains(c.Index.Namespace, " ") {
		return fmt.Errorf("index.namespace must not contain spaces, got %q", c.Index.Namespace)
	}
	if c.Index.BatchSize < 1 {
		return fmt.Errorf("index.batch_size must be at least 1, got %d", c.Index.BatchSize)
	}
	if c.Index.Workers < 1 {
		return fmt.Errorf("index.workers must be at least 1, got %d", c.Index.Workers)
	}

	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be at least 1, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must not be below search.default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("watch.debounce: %w", err)
	}

	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		if f.OwnerType == "" || f.Field == "" {
			return fmt.Errorf("fields[%d]: owner_type and field are required", i)
		}
		if seen[f.Key()] {
			return fmt.Errorf("fields[%d]: %s declared twice", i, f.Key())
		}
		seen[f.Key()] = true
	}

	return nil
}

// DataDir resolves the index directory against the project root.
func (c *Config) DataDir(root string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(root, c.Storage.Path)
}

// StoreConfig returns the store settings.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:           c.Storage.Driver,
		BulkInsert:       c.Storage.BulkInsert,
		MaxRowsPerInsert: c.Storage.MaxRowsPerInsert,
		CacheMB:          c.Storage.CacheMB,
	}
}

// WriteMode maps storage.bulk_insert to a synchronizer write mode.
func (c *Config) WriteMode() (index.WriteMode, error) {
	return index.ParseWriteMode(c.Storage.BulkInsert)
}

// MatcherConfig returns the search settings.
func (c *Config) MatcherConfig() search.Config {
	return search.Config{
		DefaultLimit: c.Search.DefaultLimit,
		MaxLimit:     c.Search.MaxLimit,
		CacheSize:    c.Search.QueryCacheSize,
		Weighted:     c.Search.Weighted,
	}
}

// DebounceDuration returns watch.debounce, which Validate has checked.
func (c *Config) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(c.Watch.Debounce)
	return d
}

// Field returns the declaration of ownerType.field.
func (c *Config) Field(ownerType, field string) (FieldConfig, bool) {
	for _, f := range c.Fields {
		if f.OwnerType == ownerType && f.Field == field {
			return f, true
		}
	}
	return FieldConfig{}, false
}

// FieldsOf returns the declarations of ownerType.
func (c *Config) FieldsOf(ownerType string) []FieldConfig {
	var out []FieldConfig
	for _, f := range c.Fields {
		if f.OwnerType == ownerType {
			out = append(out, f)
		}
	}
	return out
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WriteTOML writes the configuration to a TOML file.
func (c *Config) WriteTOML(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

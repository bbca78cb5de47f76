// Package config manages the adapter's process-wide configuration:
// defaults, a YAML file, then environment overrides. The Configure
// entry point of the plugin persists through Save, so settings survive
// plugin unload.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds the complete adapter configuration
type Config struct {
	// Adapter configuration
	Adapter AdapterConfig `yaml:"adapter" json:"adapter"`

	// Database configuration (probe catalog)
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Diagnostics server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AdapterConfig holds input-adapter behavior settings
type AdapterConfig struct {
	FileFilter  []string `yaml:"file_filter" json:"file_filter"`
	MaxSessions int      `yaml:"max_sessions" json:"max_sessions" env:"AVINPUT_MAX_SESSIONS"`
	ProbeOnOpen bool     `yaml:"probe_on_open" json:"probe_on_open" env:"AVINPUT_PROBE_ON_OPEN"`
}

// DatabaseConfig holds probe catalog storage settings
type DatabaseConfig struct {
	Type     string `yaml:"type" json:"type" env:"AVINPUT_DB_TYPE"`
	Path     string `yaml:"path" json:"path" env:"AVINPUT_DB_PATH"`
	Host     string `yaml:"host" json:"host" env:"AVINPUT_DB_HOST"`
	Port     int    `yaml:"port" json:"port" env:"AVINPUT_DB_PORT"`
	Username string `yaml:"username" json:"username" env:"AVINPUT_DB_USER"`
	Password string `yaml:"password" json:"-" env:"AVINPUT_DB_PASSWORD"`
	Database string `yaml:"database" json:"database" env:"AVINPUT_DB_NAME"`
}

// ServerConfig holds diagnostics HTTP server settings
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"AVINPUT_SERVER_ENABLED"`
	Host    string `yaml:"host" json:"host" env:"AVINPUT_SERVER_HOST"`
	Port    int    `yaml:"port" json:"port" env:"AVINPUT_SERVER_PORT"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" env:"AVINPUT_LOG_LEVEL"`
}

// DefaultConfig returns the default adapter configuration
func DefaultConfig() *Config {
	return &Config{
		Adapter: AdapterConfig{
			FileFilter:  []string{".avi"},
			MaxSessions: 32,
			ProbeOnOpen: true,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "avinput.db",
			Host: "localhost",
			Port: 5432,
		},
		Server: ServerConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8090,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ErrNoConfigFile is returned when an operation needs a config file
// path and none has been loaded or set.
var ErrNoConfigFile = errors.New("config: no config file")

// ConfigWatcher is called when configuration changes
type ConfigWatcher func(oldConfig, newConfig *Config)

// Manager manages adapter configuration with hot-reload support
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
	watchers   []ConfigWatcher
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global configuration manager instance
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = NewManager()
	})
	return globalManager
}

// NewManager creates a configuration manager seeded with defaults.
func NewManager() *Manager {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return &Manager{config: cfg}
}

// LoadFromFile loads configuration from a YAML file, then re-applies
// environment overrides (env always wins).
func (m *Manager) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	old := m.config
	m.config = cfg
	m.configPath = path
	watchers := append([]ConfigWatcher(nil), m.watchers...)
	m.mu.Unlock()

	for _, w := range watchers {
		w(old, cfg)
	}
	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Path returns the config file path, if one was loaded or set.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configPath
}

// SetPath sets where Save writes when no file has been loaded yet.
func (m *Manager) SetPath(path string) {
	m.mu.Lock()
	m.configPath = path
	m.mu.Unlock()
}

// Update replaces the adapter section and notifies watchers.
func (m *Manager) Update(fn func(cfg *Config)) {
	m.mu.Lock()
	old := m.config
	next := *old
	fn(&next)
	m.config = &next
	watchers := append([]ConfigWatcher(nil), m.watchers...)
	m.mu.Unlock()

	for _, w := range watchers {
		w(old, &next)
	}
}

// Save persists the current configuration to the config path.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	path := m.configPath
	m.mu.RUnlock()

	if path == "" {
		return ErrNoConfigFile
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// AddWatcher registers a callback invoked on configuration changes.
func (m *Manager) AddWatcher(w ConfigWatcher) {
	m.mu.Lock()
	m.watchers = append(m.watchers, w)
	m.mu.Unlock()
}

func validate(cfg *Config) error {
	if cfg.Adapter.MaxSessions <= 0 {
		return fmt.Errorf("adapter.max_sessions must be positive, got %d", cfg.Adapter.MaxSessions)
	}
	switch cfg.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.type: %s", cfg.Database.Type)
	}
	return nil
}

// applyEnvOverrides walks struct fields tagged with `env` and applies
// matching environment variables.
func applyEnvOverrides(cfg *Config) {
	applyEnvToStruct(reflect.ValueOf(cfg).Elem())
}

func applyEnvToStruct(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			applyEnvToStruct(field)
			continue
		}

		envKey := t.Field(i).Tag.Get("env")
		if envKey == "" {
			continue
		}
		raw, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int:
			if n, err := strconv.Atoi(raw); err == nil {
				field.SetInt(int64(n))
			}
		case reflect.Bool:
			if b, err := strconv.ParseBool(raw); err == nil {
				field.SetBool(b)
			}
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(raw, ",")
				for i := range parts {
					parts[i] = strings.TrimSpace(parts[i])
				}
				field.Set(reflect.ValueOf(parts))
			}
		}
	}
}

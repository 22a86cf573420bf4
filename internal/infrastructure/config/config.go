package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes the canonical environment variable names.
const EnvPrefix = "PINTOS"

// Config holds all machine configuration.
type Config struct {
	Kernel    KernelConfig    `toml:"kernel" yaml:"kernel" json:"kernel"`
	Filesys   FilesysConfig   `toml:"filesys" yaml:"filesys" json:"filesys"`
	Logging   LogConfig       `toml:"logging" yaml:"logging" json:"logging"`
	Server    ServerConfig    `toml:"server" yaml:"server" json:"server"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// KernelConfig bounds kernel resources. Zero means unbounded.
type KernelConfig struct {
	PageLimit      int `envconfig:"KERNEL_PAGE_LIMIT" toml:"page_limit" yaml:"page_limit" json:"page_limit"`
	HandshakeLimit int `envconfig:"KERNEL_HANDSHAKE_LIMIT" toml:"handshake_limit" yaml:"handshake_limit" json:"handshake_limit"`
	ThreadLimit    int `envconfig:"KERNEL_THREAD_LIMIT" toml:"thread_limit" yaml:"thread_limit" json:"thread_limit"`
	ExecLimit      int `envconfig:"KERNEL_EXEC_LIMIT" toml:"exec_limit" yaml:"exec_limit" json:"exec_limit"`
}

// FilesysConfig controls what the filesystem holds at boot and power-off.
type FilesysConfig struct {
	ImportDir  string   `envconfig:"FS_IMPORT_DIR" toml:"import_dir" yaml:"import_dir" json:"import_dir"`
	Include    []string `envconfig:"FS_INCLUDE" toml:"include" yaml:"include" json:"include"`
	Snapshot   string   `envconfig:"FS_SNAPSHOT" toml:"snapshot" yaml:"snapshot" json:"snapshot"`
	SaveOnHalt bool     `envconfig:"FS_SAVE_ON_HALT" toml:"save_on_halt" yaml:"save_on_halt" json:"save_on_halt"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" yaml:"level" json:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" yaml:"development" json:"development"`
}

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Enabled bool   `envconfig:"ADMIN_ENABLED" toml:"enabled" yaml:"enabled" json:"enabled"`
	Port    string `envconfig:"ADMIN_PORT" toml:"port" yaml:"port" json:"port"`
	Host    string `envconfig:"ADMIN_HOST" toml:"host" yaml:"host" json:"host"`
}

// RateLimitConfig holds admin API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst" yaml:"burst" json:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled" yaml:"enabled" json:"enabled"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

// Load builds the configuration: defaults, then the file at path (if not
// empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Kernel: KernelConfig{
			PageLimit:      1024,
			HandshakeLimit: 256,
			ThreadLimit:    64,
			ExecLimit:      64,
		},
		Filesys: FilesysConfig{
			Include: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    "8040",
			Host:    "127.0.0.1",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// Validate rejects configurations the machine cannot run with.
func (c *Config) Validate() error {
	k := c.Kernel
	if k.PageLimit < 0 || k.HandshakeLimit < 0 || k.ThreadLimit < 0 || k.ExecLimit < 0 {
		return fmt.Errorf("config: kernel limits must not be negative")
	}
	if c.Filesys.SaveOnHalt && c.Filesys.Snapshot == "" {
		return fmt.Errorf("config: save_on_halt requires a snapshot path")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: rate limit must be positive")
	}
	return nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = sonic.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config: unsupported file type %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

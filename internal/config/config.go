// ABOUTME: Configuration loading and parsing for pawhub
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete pawhub configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Hub       HubConfig       `yaml:"hub"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// HubConfig holds conversation hub tuning parameters
type HubConfig struct {
	SessionQueueSize int   `yaml:"session_queue_size"`
	ReadLimit        int64 `yaml:"read_limit"`

	PingInterval time.Duration `yaml:"-"`
	PongTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PingIntervalRaw string `yaml:"ping_interval"`
	PongTimeoutRaw  string `yaml:"pong_timeout"`
	WriteTimeoutRaw string `yaml:"write_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve TLS with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default hub tuning values applied when the config omits them.
const (
	DefaultSessionQueueSize = 64
	DefaultReadLimit        = 64 * 1024
	DefaultPingInterval     = 54 * time.Second
	DefaultPongTimeout      = 60 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in hub tuning values left unset by the config file.
func (c *Config) applyDefaults() {
	if c.Hub.SessionQueueSize <= 0 {
		c.Hub.SessionQueueSize = DefaultSessionQueueSize
	}
	if c.Hub.ReadLimit <= 0 {
		c.Hub.ReadLimit = DefaultReadLimit
	}
	if c.Hub.PingInterval <= 0 {
		c.Hub.PingInterval = DefaultPingInterval
	}
	if c.Hub.PongTimeout <= 0 {
		c.Hub.PongTimeout = DefaultPongTimeout
	}
	if c.Hub.WriteTimeout <= 0 {
		c.Hub.WriteTimeout = DefaultWriteTimeout
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Hub.PongTimeout <= c.Hub.PingInterval {
		return fmt.Errorf("hub.pong_timeout (%s) must be longer than hub.ping_interval (%s)",
			c.Hub.PongTimeout, c.Hub.PingInterval)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Hub.PingIntervalRaw != "" {
		cfg.Hub.PingInterval, err = time.ParseDuration(cfg.Hub.PingIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing ping_interval %q: %w", cfg.Hub.PingIntervalRaw, err)
		}
	}

	if cfg.Hub.PongTimeoutRaw != "" {
		cfg.Hub.PongTimeout, err = time.ParseDuration(cfg.Hub.PongTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing pong_timeout %q: %w", cfg.Hub.PongTimeoutRaw, err)
		}
	}

	if cfg.Hub.WriteTimeoutRaw != "" {
		cfg.Hub.WriteTimeout, err = time.ParseDuration(cfg.Hub.WriteTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing write_timeout %q: %w", cfg.Hub.WriteTimeoutRaw, err)
		}
	}

	return nil
}

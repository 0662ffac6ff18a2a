// Package config loads the relay configuration: defaults, then an optional
// YAML file, then environment variables (optionally seeded from a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/bytes"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in delivery.provider.
const (
	ProviderSMTP   = "smtp"
	ProviderStdout = "stdout"
)

// Config holds the complete application configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig holds the HTTP listener configuration.
type HTTPConfig struct {
	Host        string    `yaml:"host" env:"HTTP_HOST"`
	Port        int       `yaml:"port" env:"PORT"`
	BodyLimit   string    `yaml:"body_limit" env:"HTTP_BODY_LIMIT"`
	CORSOrigins []string  `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	StaticDir   string    `yaml:"static_dir" env:"STATIC_DIR"`
	TLS         TLSConfig `yaml:"tls"`
}

// TLSConfig holds the HTTPS settings. With Enabled and no files, a
// self-signed certificate is generated at startup.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" env:"HTTP_TLS"`
	CertFile string `yaml:"cert_file" env:"TLS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"TLS_KEY_FILE"`
}

// DeliveryConfig selects and tunes the mail provider.
type DeliveryConfig struct {
	Provider           string `yaml:"provider" env:"PROVIDER"`
	HeloName           string `yaml:"helo_name" env:"SMTP_HELO_NAME"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"SMTP_INSECURE_SKIP_VERIFY"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvFile exports the variables of a .env file into the process
// environment. Variables that are already set win. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Delivery.Provider {
	case ProviderSMTP, ProviderStdout:
	default:
		return fmt.Errorf("unknown provider %q (want %q or %q)", c.Delivery.Provider, ProviderSMTP, ProviderStdout)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}

	if _, err := c.BodyLimitBytes(); err != nil {
		return err
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// BodyLimitBytes parses http.body_limit ("10M", "512K", "1MB").
func (c *Config) BodyLimitBytes() (int64, error) {
	n, err := bytes.Parse(c.HTTP.BodyLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid body limit %q: %w", c.HTTP.BodyLimit, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid body limit %q: must be positive", c.HTTP.BodyLimit)
	}
	return n, nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.HTTP.Port = 5000
	c.HTTP.BodyLimit = "10M"
	c.HTTP.CORSOrigins = []string{"*"}
	c.HTTP.StaticDir = "public"
	c.Delivery.Provider = ProviderSMTP
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	c.Delivery.Provider = strings.ToLower(strings.TrimSpace(c.Delivery.Provider))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	for i, o := range c.HTTP.CORSOrigins {
		c.HTTP.CORSOrigins[i] = strings.TrimSpace(o)
	}
	return nil
}

// Package config holds the runtime configuration for Quayside.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ArchivesDir = "archives"
	TmpDir      = "tmp"

	DefaultPollAttempts = 30
	DefaultPollInterval = 2 * time.Second
)

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (p *DefaultEnvProvider) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// GetDefaultDataDir returns the default Quayside data directory following the
// XDG Base Directory specification
func GetDefaultDataDir() string {
	return getDefaultDataDirWithEnv(&DefaultEnvProvider{})
}

func getDefaultDataDirWithEnv(env EnvProvider) string {
	xdgDataHome := env.Getenv("XDG_DATA_HOME")
	if xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "quayside")
	}

	homeDir, _ := env.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "quayside")
}

// Config holds configuration for all services
type Config struct {
	// Core paths
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`
	ArchiveDir   string `yaml:"-"`
	TmpDirPath   string `yaml:"-"`

	// Logging
	LogLevel     string `yaml:"log_level"`
	ColorEnabled bool   `yaml:"color_enabled"`

	// HTTP server
	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`

	// Provider API endpoints. Overridable for tests and self-hosted
	// provider gateways; empty means the public endpoint.
	GitHubAPIURL  string `yaml:"github_api_url"`
	NetlifyAPIURL string `yaml:"netlify_api_url"`
	VercelAPIURL  string `yaml:"vercel_api_url"`

	// Deploy status polling
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Provider request timeout
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// Encryption key for the tenant credential store
	EncryptionKey string `yaml:"-"`

	// Target preference order, most preferred first
	TargetPreference []string `yaml:"target_preference"`

	// Environment provider for testing
	env EnvProvider
}

// NewConfigForCLI creates a new configuration for CLI usage with optional data
// directory override
func NewConfigForCLI(cliDataDir string) (*Config, error) {
	return newConfigWithEnv(&DefaultEnvProvider{}, cliDataDir)
}

// NewConfigForCLIWithEnv creates a new configuration with a custom environment
// provider (for testing)
func NewConfigForCLIWithEnv(env EnvProvider, cliDataDir string) (*Config, error) {
	return newConfigWithEnv(env, cliDataDir)
}

// NewConfigForServer creates a new configuration for server usage. This
// version only uses the config file, environment variables and defaults.
func NewConfigForServer() (*Config, error) {
	return newConfigWithEnv(&DefaultEnvProvider{}, "")
}

func newConfigWithEnv(env EnvProvider, cliDataDir string) (*Config, error) {
	c := &Config{env: env}

	// Set defaults first
	c.setDefaults()

	// Override with config file, if one exists
	if err := c.loadFromFile(); err != nil {
		return nil, fmt.Errorf("invalid configuration file: %w", err)
	}

	// Override with environment variables
	c.loadFromEnv()

	// Override with CLI flags (if provided)
	if cliDataDir != "" {
		c.DataDir = cliDataDir
	}

	// Derive dependent paths
	c.derivePaths()

	// Try to read encryption key from .env file as fallback (after data dir
	// is finalized)
	if c.EncryptionKey == "" {
		if key := c.readEncryptionKeyFromEnvFile(); key != "" {
			c.EncryptionKey = key
		}
	}

	// Validate
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

func (c *Config) setDefaults() {
	c.DataDir = getDefaultDataDirWithEnv(c.env)
	c.LogLevel = "info"
	c.ColorEnabled = true
	c.HTTPHost = "127.0.0.1"
	c.HTTPPort = 8080
	c.PollAttempts = DefaultPollAttempts
	c.PollInterval = DefaultPollInterval
	c.HTTPTimeout = 30 * time.Second
	c.TargetPreference = []string{"vercel", "netlify", "local"}
	// Don't set a default encryption key; it must be provided explicitly
}

// loadFromFile reads optional YAML configuration from
// QUAYSIDE_CONFIG_FILE or <data_dir>/quayside.yml.
func (c *Config) loadFromFile() error {
	path := c.env.Getenv("QUAYSIDE_CONFIG_FILE")
	if path == "" {
		path = filepath.Join(c.DataDir, "quayside.yml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// A missing config file is fine; everything has defaults
		return nil
	}

	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := c.env.Getenv("QUAYSIDE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := c.env.Getenv("QUAYSIDE_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := c.env.Getenv("QUAYSIDE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := c.env.Getenv("QUAYSIDE_COLOR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ColorEnabled = enabled
		}
	}
	if v := c.env.Getenv("QUAYSIDE_HTTP_HOST"); v != "" {
		c.HTTPHost = v
	}
	if v := c.env.Getenv("QUAYSIDE_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := c.env.Getenv("QUAYSIDE_GITHUB_API_URL"); v != "" {
		c.GitHubAPIURL = v
	}
	if v := c.env.Getenv("QUAYSIDE_NETLIFY_API_URL"); v != "" {
		c.NetlifyAPIURL = v
	}
	if v := c.env.Getenv("QUAYSIDE_VERCEL_API_URL"); v != "" {
		c.VercelAPIURL = v
	}
	if v := c.env.Getenv("QUAYSIDE_POLL_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollAttempts = n
		}
	}
	if v := c.env.Getenv("QUAYSIDE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := c.env.Getenv("QUAYSIDE_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTPTimeout = d
		}
	}
	if v := c.env.Getenv("QUAYSIDE_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
}

// readEncryptionKeyFromEnvFile attempts to read QUAYSIDE_ENCRYPTION_KEY from a
// .env file in the data directory
func (c *Config) readEncryptionKeyFromEnvFile() string {
	envFile := filepath.Join(c.DataDir, ".env")

	envVars, err := godotenv.Read(envFile)
	if err != nil {
		// .env file doesn't exist or can't be read, that's okay
		return ""
	}

	return envVars["QUAYSIDE_ENCRYPTION_KEY"]
}

func (c *Config) derivePaths() {
	c.TmpDirPath = filepath.Join(c.DataDir, TmpDir)
	c.ArchiveDir = filepath.Join(c.DataDir, ArchivesDir)

	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "quayside.db")
	}
}

func (c *Config) validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, or error)", c.LogLevel)
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d (must be 1-65535)", c.HTTPPort)
	}

	if c.PollAttempts < 1 {
		return fmt.Errorf("poll attempts must be positive, got: %d", c.PollAttempts)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", c.PollInterval)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got: %v", c.HTTPTimeout)
	}

	if len(c.TargetPreference) == 0 {
		return fmt.Errorf("target preference cannot be empty")
	}

	// Require the encryption key so tenant credentials are never held in
	// plaintext
	if c.EncryptionKey == "" {
		return fmt.Errorf(
			"encryption key is required - set QUAYSIDE_ENCRYPTION_KEY environment variable or ensure .env file exists in data directory (%s)",
			c.DataDir,
		)
	}

	return nil
}

// Getenv exposes the configured environment provider. The credential
// resolver's lowest-priority tier reads provider tokens through it.
func (c *Config) Getenv(key string) string {
	if c.env == nil {
		return os.Getenv(key)
	}
	return c.env.Getenv(key)
}

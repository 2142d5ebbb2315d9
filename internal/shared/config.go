package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// MaxActiveItems is the upper bound on concurrently active progress items.
const MaxActiveItems = 27

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Account   AccountConfig   `toml:"account"`
	Gateway   GatewayConfig   `toml:"gateway"`
	Community CommunityConfig `toml:"community"`
	Idle      IdleConfig      `toml:"idle"`
	Database  DatabaseConfig  `toml:"database"`
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
}

// AccountConfig contains the account credentials.
type AccountConfig struct {
	Name     string `toml:"name"`
	Password string `toml:"password"`
	PIN      string `toml:"pin"`
}

// GatewayConfig contains settings for the session provider gateway.
type GatewayConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Retries        int    `toml:"retries"`
}

// CommunityConfig contains settings for the community web endpoints.
type CommunityConfig struct {
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// IdleConfig contains the idle cycle timings.
type IdleConfig struct {
	MaxActive            int    `toml:"max_active"`
	DwellMinutes         int    `toml:"dwell_minutes"`
	CooldownSeconds      int    `toml:"cooldown_seconds"`
	PrivacyRevertSeconds int    `toml:"privacy_revert_seconds"`
	SelectionFile        string `toml:"selection_file"`
	Persona              string `toml:"persona"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

// ServerConfig contains status server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Dwell returns how long an active set stays active.
func (c IdleConfig) Dwell() time.Duration {
	return time.Duration(c.DwellMinutes) * time.Minute
}

// Cooldown returns the pause between deactivation and the next scan.
func (c IdleConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// RevertDelay returns how long visibility stays private after a cycle starts.
func (c IdleConfig) RevertDelay() time.Duration {
	return time.Duration(c.PrivacyRevertSeconds) * time.Second
}

// Timeout returns the gateway request timeout.
func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the community request timeout.
func (c CommunityConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the configuration for values the idle loop cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Idle.MaxActive < 1 || c.Idle.MaxActive > MaxActiveItems:
		return fmt.Errorf("%w: idle.max_active must be between 1 and %d", ErrInvalidConfig, MaxActiveItems)
	case c.Idle.DwellMinutes <= 0:
		return fmt.Errorf("%w: idle.dwell_minutes must be positive", ErrInvalidConfig)
	case c.Idle.CooldownSeconds <= 0:
		return fmt.Errorf("%w: idle.cooldown_seconds must be positive", ErrInvalidConfig)
	case c.Idle.PrivacyRevertSeconds <= 0:
		return fmt.Errorf("%w: idle.privacy_revert_seconds must be positive", ErrInvalidConfig)
	case !validPIN(c.Account.PIN):
		return fmt.Errorf("%w: account.pin must contain only digits", ErrInvalidConfig)
	case c.Community.RequestsPerSecond <= 0:
		return fmt.Errorf("%w: community.requests_per_second must be positive", ErrInvalidConfig)
	}
	return nil
}

// ParsePIN checks that raw is a digit string and returns it unchanged so leading zeros survive.
func ParsePIN(raw string) (string, error) {
	if !validPIN(raw) {
		return "", fmt.Errorf("%w: PIN must contain only digits", ErrInvalidInput)
	}
	return raw, nil
}

func validPIN(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

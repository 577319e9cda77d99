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

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Backend     BackendConfig     `toml:"backend"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Connection  ConnectionConfig  `toml:"connection"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
}

// BackendConfig contains settings for the hosted backend that owns the
// token vault and the sync endpoints.
type BackendConfig struct {
	BaseURL string `toml:"base_url"`
	AnonKey string `toml:"anon_key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ConnectionConfig tunes the connection state store, session validator, and
// token refresh scheduling.
type ConnectionConfig struct {
	CooldownSeconds         int `toml:"cooldown_seconds"`
	RefreshThresholdMinutes int `toml:"refresh_threshold_minutes"`
	FetchTimeoutSeconds     int `toml:"fetch_timeout_seconds"`
	GlobalTimeoutSeconds    int `toml:"global_timeout_seconds"`
	MaxRetries              int `toml:"max_retries"`
	RetryDelayMillis        int `toml:"retry_delay_millis"`
	SyncRateLimit           int `toml:"sync_rate_limit"`
}

// Cooldown returns the minimum interval between non-forced connection checks.
func (c ConnectionConfig) Cooldown() time.Duration {
	if c.CooldownSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.CooldownSeconds) * time.Second
}

// RefreshThreshold returns how far before expiry a proactive token refresh
// should fire.
func (c ConnectionConfig) RefreshThreshold() time.Duration {
	if c.RefreshThresholdMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.RefreshThresholdMinutes) * time.Minute
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
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
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

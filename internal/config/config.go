// Package config loads the daemon's YAML+environment configuration: network
// credentials, tick cadence, logging, and the already-scrobbled history
// ledger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved daemon configuration.
type Config struct {
	TickInterval time.Duration
	Network      NetworkConfig
	Logging      LoggingConfig
	History      HistoryConfig
}

// NetworkConfig holds the Audioscrobbler 1.2 identity and endpoint.
type NetworkConfig struct {
	ClientName     string
	ClientVersion  string
	Username       string
	PasswordMD5Hex string
	HandshakeURL   string
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level string
	File  string
}

// HistoryConfig points at the already-scrobbled dedup ledger used by import.
type HistoryConfig struct {
	DBPath string
}

// Load reads config.yaml from the config directory (or the working
// directory) layered under defaults, then environment overrides prefixed
// LEGACYSCROBBLER_.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetDefault("tick_interval_seconds", 1)
	v.SetDefault("network.client_name", "legacy")
	v.SetDefault("network.client_version", "1.0")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("history.db_path", filepath.Join(GetDataDir(), "history.db"))

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LEGACYSCROBBLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		TickInterval: time.Duration(v.GetInt("tick_interval_seconds")) * time.Second,
		Network: NetworkConfig{
			ClientName:     v.GetString("network.client_name"),
			ClientVersion:  v.GetString("network.client_version"),
			Username:       v.GetString("network.username"),
			PasswordMD5Hex: v.GetString("network.password_md5"),
			HandshakeURL:   v.GetString("network.handshake_url"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("logging.level"),
			File:  v.GetString("logging.file"),
		},
		History: HistoryConfig{
			DBPath: v.GetString("history.db_path"),
		},
	}

	return cfg, nil
}

func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "legacy-scrobbler")
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the resolved config directory, creating it if absent.
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the resolved data directory, creating it if absent.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	dataDir := filepath.Join(homeDir, ".local", "share", "legacy-scrobbler")
	_ = os.MkdirAll(dataDir, 0755)

	return dataDir
}

// Validate checks configuration fields independent of the network identity.
func (c *Config) Validate() error {
	if c.TickInterval < time.Second {
		return fmt.Errorf("tick_interval_seconds must be at least 1 (got %s)", c.TickInterval)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q (must be one of: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// ValidateNetwork checks that the scrobbling identity is fully configured.
// Kept separate from Validate because commands like handshake-test want a
// narrower check before touching the network.
func (c *Config) ValidateNetwork() error {
	if c.Network.Username == "" {
		return fmt.Errorf("network.username not configured")
	}
	if c.Network.PasswordMD5Hex == "" {
		return fmt.Errorf("network.password_md5 not configured (pre-hashed password, not plaintext)")
	}
	if c.Network.HandshakeURL == "" {
		return fmt.Errorf("network.handshake_url not configured")
	}
	return nil
}

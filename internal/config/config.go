// Package config handles the XDG configuration directory, its files and the
// settings read from config.yaml and TASKSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "tasksync"

	// EnvPrefix prefixes environment overrides, e.g. TASKSYNC_TOKEN.
	EnvPrefix = "TASKSYNC"

	// ConfigFile is the optional settings file in the config directory.
	ConfigFile = "config.yaml"

	// DataFile is the default mirror filename.
	DataFile = "tasks.json"

	// JournalFile is the default history database filename.
	JournalFile = "journal.db"

	// OAuthClientFile is the Google OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored Google OAuth token filename.
	TokenFile = "token.json"
)

// Setting keys.
const (
	KeyAddr                 = "addr"
	KeyServer               = "server"
	KeyToken                = "token"
	KeyDataFile             = "data_file"
	KeyJournalFile          = "journal_file"
	KeyDebounce             = "debounce"
	KeyPollInterval         = "poll_interval"
	KeyMaxReconnectAttempts = "max_reconnect_attempts"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Format is the CLI output format (text, json, yaml).
	Format string

	// Local makes control commands edit DataFile directly instead of
	// calling the server.
	Local bool

	// Addr is the listen address for serve.
	Addr string

	// Server is the base URL clients talk to.
	Server string

	// Token is the shared bearer token for mutating calls.
	Token string

	// DataFile is the durable mirror path.
	DataFile string

	// JournalFile is the history database path.
	JournalFile string

	// Debounce is the reorder write coalescing window.
	Debounce time.Duration

	// PollInterval is the pull fallback interval.
	PollInterval time.Duration

	// MaxReconnectAttempts bounds push reconnects before pull-only mode.
	MaxReconnectAttempts int
}

// New creates a Config for the default or specified config directory and
// loads config.yaml and environment overrides on top of the defaults.
// If configDir is empty, uses XDG_CONFIG_HOME/tasksync or $HOME/.config/tasksync.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}
	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) load() error {
	v := viper.New()
	v.SetDefault(KeyAddr, "127.0.0.1:8787")
	v.SetDefault(KeyServer, "http://127.0.0.1:8787")
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyDataFile, filepath.Join(c.Dir, DataFile))
	v.SetDefault(KeyJournalFile, filepath.Join(c.Dir, JournalFile))
	v.SetDefault(KeyDebounce, "100ms")
	v.SetDefault(KeyPollInterval, "2s")
	v.SetDefault(KeyMaxReconnectAttempts, 8)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := c.SettingsPath()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("invalid %s: %w", ConfigFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", ConfigFile, err)
	}

	c.Addr = v.GetString(KeyAddr)
	c.Server = v.GetString(KeyServer)
	c.Token = v.GetString(KeyToken)
	c.DataFile = v.GetString(KeyDataFile)
	c.JournalFile = v.GetString(KeyJournalFile)
	c.Debounce = v.GetDuration(KeyDebounce)
	c.PollInterval = v.GetDuration(KeyPollInterval)
	c.MaxReconnectAttempts = v.GetInt(KeyMaxReconnectAttempts)
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SettingsPath returns the path to config.yaml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

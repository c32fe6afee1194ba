package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Last.fm API credentials
	LastFM LastFMConfig

	// Bulk submission tuning
	Scrobble ScrobbleConfig

	// Read cache for search and album lookups
	Cache CacheConfig

	// Directory holding the history database
	DataDir string

	// Record submissions in the history database
	History bool

	dir string
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey     string
	APISecret  string
	SessionKey string
	Username   string
	Password   string // only read from the environment or .env, never saved
	BaseURL    string
}

// ScrobbleConfig controls how requests are expanded and submitted.
type ScrobbleConfig struct {
	Step           time.Duration
	BatchSize      int
	BatchDelay     time.Duration
	FailureBackoff time.Duration
}

// CacheConfig controls the API read cache.
type CacheConfig struct {
	TTL  time.Duration
	Size int
}

const (
	envPrefix  = "BACKSCROBBLE"
	configName = "config"
	configType = "yaml"
)

// Load reads configuration from the default config directory, a .env file
// in the working directory, and the environment
func Load() (*Config, error) {
	return LoadFrom(getConfigDir(), ".env")
}

// LoadFrom reads configuration from configDir and envFile. A missing
// config file or env file is not an error.
func LoadFrom(configDir, envFile string) (*Config, error) {
	if envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The conventional Last.fm variable names are accepted as well.
	bindings := map[string]string{
		"lastfm.api_key":    "LASTFM_API_KEY",
		"lastfm.api_secret": "LASTFM_API_SECRET",
		"lastfm.username":   "LASTFM_USERNAME",
		"lastfm.password":   "LASTFM_PASSWORD",
	}
	for key, env := range bindings {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	cfg := &Config{
		LastFM: LastFMConfig{
			APIKey:     v.GetString("lastfm.api_key"),
			APISecret:  v.GetString("lastfm.api_secret"),
			SessionKey: v.GetString("lastfm.session_key"),
			Username:   v.GetString("lastfm.username"),
			Password:   v.GetString("lastfm.password"),
			BaseURL:    v.GetString("lastfm.base_url"),
		},
		Scrobble: ScrobbleConfig{
			Step:           v.GetDuration("scrobble.step"),
			BatchSize:      v.GetInt("scrobble.batch_size"),
			BatchDelay:     v.GetDuration("scrobble.batch_delay"),
			FailureBackoff: v.GetDuration("scrobble.failure_backoff"),
		},
		Cache: CacheConfig{
			TTL:  v.GetDuration("cache.ttl"),
			Size: v.GetInt("cache.size"),
		},
		DataDir: dataDir,
		History: v.GetBool("history.enabled"),
		dir:     configDir,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scrobble.step", "60s")
	v.SetDefault("scrobble.batch_size", 50)
	v.SetDefault("scrobble.batch_delay", "200ms")
	v.SetDefault("scrobble.failure_backoff", "1s")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.size", 256)
	v.SetDefault("history.enabled", true)
}

// Validate checks the tuning values. Credentials are checked by the
// commands that need them.
func (c *Config) Validate() error {
	if c.Scrobble.Step < time.Second {
		return fmt.Errorf("scrobble.step must be at least 1s, got %s", c.Scrobble.Step)
	}
	if c.Scrobble.BatchSize < 1 || c.Scrobble.BatchSize > 50 {
		return fmt.Errorf("scrobble.batch_size must be between 1 and 50, got %d", c.Scrobble.BatchSize)
	}
	if c.Scrobble.BatchDelay < 0 {
		return fmt.Errorf("scrobble.batch_delay must not be negative, got %s", c.Scrobble.BatchDelay)
	}
	if c.Scrobble.FailureBackoff < 0 {
		return fmt.Errorf("scrobble.failure_backoff must not be negative, got %s", c.Scrobble.FailureBackoff)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size)
	}
	return nil
}

// HasAPICredentials reports whether an API key and secret are configured.
func (c *Config) HasAPICredentials() bool {
	return c.LastFM.APIKey != "" && c.LastFM.APISecret != ""
}

// HistoryDB returns the path of the history database.
func (c *Config) HistoryDB() string {
	return filepath.Join(c.DataDir, "history.db")
}

// Dir returns the directory the configuration was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "backscrobble")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "backscrobble")
}

// Save writes configuration to file
func (c *Config) Save() error {
	dir := c.dir
	if dir == "" {
		dir = getConfigDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	configFile := filepath.Join(dir, configName+"."+configType)

	v.Set("lastfm.api_key", c.LastFM.APIKey)
	v.Set("lastfm.api_secret", c.LastFM.APISecret)
	v.Set("lastfm.session_key", c.LastFM.SessionKey)
	if c.LastFM.Username != "" {
		v.Set("lastfm.username", c.LastFM.Username)
	}
	if c.LastFM.BaseURL != "" {
		v.Set("lastfm.base_url", c.LastFM.BaseURL)
	}
	v.Set("scrobble.step", c.Scrobble.Step.String())
	v.Set("scrobble.batch_size", c.Scrobble.BatchSize)
	v.Set("scrobble.batch_delay", c.Scrobble.BatchDelay.String())
	v.Set("scrobble.failure_backoff", c.Scrobble.FailureBackoff.String())
	v.Set("cache.ttl", c.Cache.TTL.String())
	v.Set("cache.size", c.Cache.Size)
	v.Set("data_dir", c.DataDir)
	v.Set("history.enabled", c.History)

	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// The file holds the API secret and session key.
	return os.Chmod(configFile, 0600)
}

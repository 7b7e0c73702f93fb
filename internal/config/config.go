package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAPIURL is used when neither the config file nor the environment
// names an API
const DefaultAPIURL = "http://localhost:8080/api"

// Config holds all application configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Cache   CacheConfig   `mapstructure:"cache"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig holds remote API configuration
type APIConfig struct {
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`          // Per-attempt request timeout
	Retries        int           `mapstructure:"retries"`          // Extra attempts after a network failure
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"` // First backoff step
}

// CacheConfig holds local cache configuration
type CacheConfig struct {
	Dir             string        `mapstructure:"dir"` // Empty means memory-only
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// UIConfig holds UI configuration
type UIConfig struct {
	ToastDuration time.Duration `mapstructure:"toast_duration"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			URL:            DefaultAPIURL,
			Timeout:        5 * time.Second,
			Retries:        1,
			RetryBaseDelay: 250 * time.Millisecond,
		},
		Cache: CacheConfig{
			Dir:             defaultCachePath(),
			RefreshInterval: 30 * time.Second,
		},
		UI: UIConfig{
			ToastDuration: 3 * time.Second,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "folio", "folio.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "folio", "folio.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "folio")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "folio")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "folio", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "folio", "cache")
	}
}

// LoadConfig loads configuration from the default locations, a .env file in
// the working directory, and the environment
func LoadConfig() (*Config, error) {
	return Load(defaultConfigPath(), ".")
}

// Load reads config.yaml from the given directories (first match wins).
// Environment variables prefixed with FOLIO_ override file values, e.g.
// FOLIO_API_URL or FOLIO_CACHE_DIR.
func Load(dirs ...string) (*Config, error) {
	// .env is optional; variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	// Environment variable overrides
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindKeys(v, cfg)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// The web frontend's variable is honoured when folio's own is unset
	if os.Getenv("FOLIO_API_URL") == "" && !v.InConfig("api.url") {
		if legacy := os.Getenv("VITE_API_URL"); legacy != "" {
			cfg.API.URL = legacy
		}
	}
	cfg.API.URL = NormalizeBaseURL(cfg.API.URL)

	return cfg, nil
}

// bindKeys registers every key with viper so AutomaticEnv can see them
// during Unmarshal. Viper only consults the environment for known keys.
func bindKeys(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.url", cfg.API.URL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.retries", cfg.API.Retries)
	v.SetDefault("api.retry_base_delay", cfg.API.RetryBaseDelay)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.refresh_interval", cfg.Cache.RefreshInterval)
	v.SetDefault("ui.toast_duration", cfg.UI.ToastDuration)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// NormalizeBaseURL trims whitespace and trailing slashes, falling back to
// DefaultAPIURL when nothing is left
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return DefaultAPIURL
	}
	return u
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("api.url", cfg.API.URL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("api.retries", cfg.API.Retries)
	v.Set("api.retry_base_delay", cfg.API.RetryBaseDelay.String())
	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("cache.refresh_interval", cfg.Cache.RefreshInterval.String())
	v.Set("ui.toast_duration", cfg.UI.ToastDuration.String())
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ClearCache removes all cached data
func (c *Config) ClearCache() error {
	if c.Cache.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(c.Cache.Dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

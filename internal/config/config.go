// Package config handles configuration for sentichat.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apierrors "github.com/diogo/sentichat/internal/errors"
	"github.com/diogo/sentichat/internal/models"
)

// Environment variables that override the config file
const (
	EnvEndpoint = "SENTICHAT_ENDPOINT"
	EnvTimeout  = "SENTICHAT_TIMEOUT"
	EnvRedisURL = "SENTICHAT_REDIS_URL"
	EnvVerbose  = "SENTICHAT_VERBOSE"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`              // "dark", "light", or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji"`       // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"`  // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap"`         // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links"` // Render links inline in tables
}

// RedisConfig configures the optional conversation relay
type RedisConfig struct {
	URL     string `json:"url,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// Enabled reports whether a relay should be started
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// Config represents the user configuration
type Config struct {
	// Endpoint is the webhook URL messages are posted to.
	Endpoint string `json:"endpoint"`
	// TimeoutSeconds bounds each request. Zero leaves the request
	// unbounded, so a hung webhook keeps the chat busy until it answers.
	TimeoutSeconds int `json:"timeout_seconds"`
	// ResponseField is an optional gjson path. When set and the reply body
	// is JSON containing that path, the field is shown instead of the raw body.
	ResponseField string `json:"response_field,omitempty"`
	// Verbose enables detailed logging output during operations.
	Verbose         bool           `json:"verbose"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	TUITheme        string         `json:"tui_theme,omitempty"` // TUI color theme
	Markdown        MarkdownConfig `json:"markdown,omitempty"`
	Redis           RedisConfig    `json:"redis,omitempty"`
}

// Timeout returns the request timeout as a duration (0 = none)
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Endpoint:        models.DefaultEndpoint,
		TimeoutSeconds:  0,
		Verbose:         false,
		CopyToClipboard: false,
		TUITheme:        "tokyonight",
		Markdown:        DefaultMarkdownConfig(),
		Redis: RedisConfig{
			Channel: "sentichat:messages",
		},
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sentichat")
	return configDir, nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetDebugLogPath returns the path of the TUI debug log, creating the config dir
func GetDebugLogPath() (string, error) {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "debug.log"), nil
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// LoadConfig loads the configuration from disk and applies environment overrides
func LoadConfig() (Config, error) {
	cfg, err := loadConfigFile()
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFileConfig loads the configuration from disk without environment overrides
func LoadFileConfig() (Config, error) {
	return loadConfigFile()
}

func loadConfigFile() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if config doesn't exist
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with values from the environment
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return fmt.Errorf("%w: %s=%q", apierrors.ErrInvalidSetting, EnvTimeout, v)
		}
		cfg.TimeoutSeconds = secs
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv(EnvVerbose); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", apierrors.ErrInvalidSetting, EnvVerbose, v)
		}
		cfg.Verbose = verbose
	}
	return nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setters maps the keys accepted by Set to their parsers
var setters = map[string]func(*Config, string) error{
	"endpoint": func(c *Config, v string) error {
		c.Endpoint = strings.TrimSpace(v)
		return nil
	},
	"timeout_seconds": func(c *Config, v string) error {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return fmt.Errorf("%w: timeout_seconds must be a non-negative integer", apierrors.ErrInvalidSetting)
		}
		c.TimeoutSeconds = secs
		return nil
	},
	"response_field": func(c *Config, v string) error {
		c.ResponseField = v
		return nil
	},
	"verbose":           boolSetter(func(c *Config, b bool) { c.Verbose = b }),
	"copy_to_clipboard": boolSetter(func(c *Config, b bool) { c.CopyToClipboard = b }),
	"tui_theme": func(c *Config, v string) error {
		c.TUITheme = v
		return nil
	},
	"markdown.style": func(c *Config, v string) error {
		c.Markdown.Style = v
		return nil
	},
	"redis.url": func(c *Config, v string) error {
		c.Redis.URL = v
		return nil
	},
	"redis.channel": func(c *Config, v string) error {
		if v == "" {
			return fmt.Errorf("%w: redis.channel cannot be empty", apierrors.ErrInvalidSetting)
		}
		c.Redis.Channel = v
		return nil
	},
}

func boolSetter(apply func(*Config, bool)) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: expected true or false, got %q", apierrors.ErrInvalidSetting, v)
		}
		apply(c, b)
		return nil
	}
}

// Set updates a single setting by key
func (c *Config) Set(key, value string) error {
	setter, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w: unknown key %q (available: %s)", apierrors.ErrInvalidSetting, key, strings.Join(SettingKeys(), ", "))
	}
	return setter(c, value)
}

// SettingKeys returns the keys accepted by Config.Set, sorted
func SettingKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

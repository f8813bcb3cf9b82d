package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the file.
const (
	EnvToken   = "CHATSYNC_TOKEN"
	EnvAPIURL  = "CHATSYNC_API_URL"
	EnvPushURL = "CHATSYNC_PUSH_URL"
)

// Config represents a profile's config.toml.
type Config struct {
	Server ServerConfig `toml:"server"`
	Auth   AuthConfig   `toml:"auth"`
	Sync   SyncConfig   `toml:"sync"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig locates the chat server.
type ServerConfig struct {
	APIBaseURL string `toml:"api_base_url"`
	// PushURL defaults to the API base with a ws scheme and a /ws path.
	PushURL        string        `toml:"push_url"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	Heartbeat      time.Duration `toml:"heartbeat"`
}

// AuthConfig holds the bearer token.
type AuthConfig struct {
	Token string `toml:"token"`
}

// SyncConfig tunes the engine.
type SyncConfig struct {
	TypingQuietWindow  time.Duration `toml:"typing_quiet_window"`
	ReconnectDelay     time.Duration `toml:"reconnect_delay"`
	ReceiptTimeout     time.Duration `toml:"receipt_timeout"`
	EagerConversations bool          `toml:"eager_conversations"`
}

// LogConfig controls the log file.
type LogConfig struct {
	// Path is the JSON log file. Empty logs to stderr only.
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

// Default returns the configuration used for fields a file leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			APIBaseURL:     "http://localhost:3000/api",
			RequestTimeout: 30 * time.Second,
			Heartbeat:      25 * time.Second,
		},
		Sync: SyncConfig{
			TypingQuietWindow: 3 * time.Second,
			ReceiptTimeout:    10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ApplyEnv overrides fields from the environment. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvToken); v != "" {
		c.Auth.Token = v
	}
	if v := getenv(EnvAPIURL); v != "" {
		c.Server.APIBaseURL = v
	}
	if v := getenv(EnvPushURL); v != "" {
		c.Server.PushURL = v
	}
}

// Validate checks the fields the engine cannot run without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.api_base_url %q is not an http(s) URL", c.Server.APIBaseURL)
	}
	if c.Server.PushURL != "" {
		u, err := url.Parse(c.Server.PushURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return fmt.Errorf("server.push_url %q is not a ws(s) URL", c.Server.PushURL)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// ResolvedPushURL returns PushURL, or one derived from the API base URL.
func (c *Config) ResolvedPushURL() string {
	if c.Server.PushURL != "" {
		return c.Server.PushURL
	}
	u, err := url.Parse(c.Server.APIBaseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String()
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.Server.APIBaseURL = "https://chat.example.com/api"
	cfg.Auth.Token = "tok"
	cfg.Sync.ReconnectDelay = 2 * time.Second
	cfg.Sync.EagerConversations = true
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.APIBaseURL != "https://chat.example.com/api" {
		t.Errorf("APIBaseURL = %q", loaded.Server.APIBaseURL)
	}
	if loaded.Sync.ReconnectDelay != 2*time.Second || !loaded.Sync.EagerConversations {
		t.Errorf("Sync = %+v", loaded.Sync)
	}
	if loaded.Auth.Token != "tok" {
		t.Errorf("Token = %q", loaded.Auth.Token)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
api_base_url = "https://chat.example.com/api"

[sync]
reconnect_delay = "500ms"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.TypingQuietWindow != 3*time.Second {
		t.Errorf("TypingQuietWindow = %v, want 3s", cfg.Sync.TypingQuietWindow)
	}
	if cfg.Sync.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, want 500ms", cfg.Sync.ReconnectDelay)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.Sync.EagerConversations {
		t.Error("EagerConversations should default to false")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Log.Level)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvToken:  "from-env",
		EnvAPIURL: "https://other.example.com",
	}
	cfg := Default()
	cfg.Auth.Token = "from-file"
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Auth.Token != "from-env" {
		t.Errorf("Token = %q, want from-env", cfg.Auth.Token)
	}
	if cfg.Server.APIBaseURL != "https://other.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.Server.APIBaseURL)
	}
	if cfg.Server.PushURL != "" {
		t.Errorf("PushURL = %q, want unchanged", cfg.Server.PushURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"ftp base", func(c *Config) { c.Server.APIBaseURL = "ftp://x" }, true},
		{"no host", func(c *Config) { c.Server.APIBaseURL = "http://" }, true},
		{"http push", func(c *Config) { c.Server.PushURL = "http://x/ws" }, true},
		{"wss push", func(c *Config) { c.Server.PushURL = "wss://x/ws" }, false},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolvedPushURL(t *testing.T) {
	tests := []struct {
		base, push, want string
	}{
		{"http://localhost:3000/api", "", "ws://localhost:3000/ws"},
		{"https://chat.example.com/api?x=1", "", "wss://chat.example.com/ws"},
		{"https://chat.example.com/api", "wss://push.example.com/socket", "wss://push.example.com/socket"},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Server.APIBaseURL = tt.base
		cfg.Server.PushURL = tt.push
		if got := cfg.ResolvedPushURL(); got != tt.want {
			t.Errorf("ResolvedPushURL(%q, %q) = %q, want %q", tt.base, tt.push, got, tt.want)
		}
	}
}

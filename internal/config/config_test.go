package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.ServerURL != "http://localhost:8080/" {
		t.Errorf("ServerURL = %q, want default", cfg.ServerURL)
	}
	if cfg.ProxyMode != "no-proxy" {
		t.Errorf("ProxyMode = %q, want no-proxy", cfg.ProxyMode)
	}
	if !cfg.RefreshOnComplete {
		t.Error("RefreshOnComplete should default to true")
	}
	if cfg.NotificationsEnabled {
		t.Error("NotificationsEnabled should default to false")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	cfg := &Config{
		ServerURL:            "http://192.168.1.20:8080/",
		Username:             "admin",
		Password:             "secret",
		ProxyMode:            "basic",
		ProxyHost:            "proxy.lan",
		ProxyPort:            3128,
		ProxyUser:            "p",
		ProxyPassword:        "pp",
		NoProxy:              "*.local",
		LogLevel:             "debug",
		LogFile:              "webup.log",
		NotificationsEnabled: true,
		RefreshOnComplete:    false,
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if *loaded != *cfg {
		t.Errorf("Load() = %+v, want %+v", *loaded, *cfg)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config permissions = %o, want 600", perm)
		}
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after Save")
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerURL != NewConfig().ServerURL {
		t.Errorf("ServerURL = %q, want default", cfg.ServerURL)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	content := "[server]\nurl = http://device.local/\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerURL != "http://device.local/" {
		t.Errorf("ServerURL = %q, want http://device.local/", cfg.ServerURL)
	}
	if cfg.ProxyMode != "no-proxy" {
		t.Errorf("ProxyMode = %q, want default no-proxy", cfg.ProxyMode)
	}
	if !cfg.RefreshOnComplete {
		t.Error("RefreshOnComplete should keep its default")
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config")
	if err := Save(NewConfig(), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvServer:   "http://env.local/",
		EnvUsername: "envuser",
	}
	cfg := NewConfig()
	cfg.Password = "filepass"

	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.ServerURL != "http://env.local/" {
		t.Errorf("ServerURL = %q, want env override", cfg.ServerURL)
	}
	if cfg.Username != "envuser" {
		t.Errorf("Username = %q, want envuser", cfg.Username)
	}
	if cfg.Password != "filepass" {
		t.Errorf("Password = %q, unset env must not clear file value", cfg.Password)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"empty url", func(c *Config) { c.ServerURL = "  " }, ErrEmptyServerURL},
		{"relative url", func(c *Config) { c.ServerURL = "device.local" }, ErrInvalidServerURL},
		{"ftp url", func(c *Config) { c.ServerURL = "ftp://device.local/" }, ErrInvalidServerURL},
		{"system proxy", func(c *Config) { c.ProxyMode = "system" }, nil},
		{"basic without host", func(c *Config) { c.ProxyMode = "basic" }, ErrMissingProxyHost},
		{"ntlm with host", func(c *Config) { c.ProxyMode = "ntlm"; c.ProxyHost = "proxy" }, nil},
		{"bad port", func(c *Config) { c.ProxyMode = "basic"; c.ProxyHost = "proxy"; c.ProxyPort = 70000 }, ErrInvalidProxyPort},
		{"unknown mode", func(c *Config) { c.ProxyMode = "socks" }, ErrInvalidProxyMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_BaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://device.local", "http://device.local/"},
		{"http://device.local/", "http://device.local/"},
		{"http://device.local/uploader", "http://device.local/uploader/"},
	}
	for _, tt := range tests {
		cfg := &Config{ServerURL: tt.in}
		if got := cfg.BaseURL(); got != tt.want {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := &Config{Password: "secret", ProxyPassword: "pp"}
	r := cfg.Redacted()
	if r.Password == "secret" || r.ProxyPassword == "pp" {
		t.Error("Redacted() should mask passwords")
	}
	if cfg.Password != "secret" {
		t.Error("Redacted() must not modify the receiver")
	}
}

func TestResolveLogFile(t *testing.T) {
	if got := ResolveLogFile(""); got != "" {
		t.Errorf("ResolveLogFile(\"\") = %q, want empty", got)
	}
	if got := ResolveLogFile("webup.log"); got != filepath.Join(LogDirectory(), "webup.log") {
		t.Errorf("ResolveLogFile(bare) = %q, want it under LogDirectory", got)
	}
	abs := filepath.Join(t.TempDir(), "x.log")
	if got := ResolveLogFile(abs); got != abs {
		t.Errorf("ResolveLogFile(%q) = %q, want unchanged", abs, got)
	}
}

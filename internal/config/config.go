// Package config provides configuration management for webup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/rescale/webup/internal/constants"
)

// Config is the client configuration.
//
// Config file location: ~/.config/webup/config
//
// INI format:
//
//	[server]
//	url = http://192.168.1.20:8080/
//	username =
//	password =
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	password =
//	no_proxy = *.local,192.168.0.0/16
//
//	[logging]
//	level = info
//	file =
//
//	[notifications]
//	enabled = false
//
//	[uploads]
//	refresh_on_complete = true
type Config struct {
	// Uploader service
	ServerURL string
	Username  string // forwarded as HTTP basic auth when set
	Password  string

	// Proxy settings (no-proxy, system, basic, ntlm)
	ProxyMode     string
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string

	LogLevel string
	LogFile  string

	// NotificationsEnabled mirrors alerts to desktop notifications.
	// Default: false
	NotificationsEnabled bool

	// RefreshOnComplete refreshes the current listing after each completed upload.
	// Default: true
	RefreshOnComplete bool
}

// Environment variable overrides
const (
	EnvServer   = "WEBUP_SERVER"
	EnvUsername = "WEBUP_USERNAME"
	EnvPassword = "WEBUP_PASSWORD"
)

// Validation errors
var (
	ErrEmptyServerURL   = errors.New("server url is required")
	ErrInvalidServerURL = errors.New("server url must be an absolute http(s) URL")
	ErrInvalidProxyMode = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost = errors.New("proxy host is required for basic and ntlm proxy modes")
	ErrInvalidProxyPort = errors.New("proxy port must be between 1 and 65535")
)

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ServerURL:         constants.DefaultServerURL,
		ProxyMode:         "no-proxy",
		ProxyPort:         8080,
		LogLevel:          "info",
		RefreshOnComplete: true,
	}
}

// Load loads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.ServerURL = server.Key("url").MustString(cfg.ServerURL)
	cfg.Username = server.Key("username").String()
	cfg.Password = server.Key("password").String()

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	logging := iniFile.Section("logging")
	cfg.LogLevel = logging.Key("level").MustString(cfg.LogLevel)
	cfg.LogFile = logging.Key("file").String()

	cfg.NotificationsEnabled = iniFile.Section("notifications").Key("enabled").MustBool(false)
	cfg.RefreshOnComplete = iniFile.Section("uploads").Key("refresh_on_complete").MustBool(true)

	return cfg, nil
}

// Save saves configuration to an INI file.
// Creates parent directories if they don't exist. Passwords are stored in the
// file, so it is written with owner-only permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("url").SetValue(cfg.ServerURL)
	server.Key("username").SetValue(cfg.Username)
	server.Key("password").SetValue(cfg.Password)

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("password").SetValue(cfg.ProxyPassword)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)

	logging, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logging.Key("level").SetValue(cfg.LogLevel)
	logging.Key("file").SetValue(cfg.LogFile)

	notify, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notify.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.NotificationsEnabled))

	uploads, err := iniFile.NewSection("uploads")
	if err != nil {
		return fmt.Errorf("failed to create uploads section: %w", err)
	}
	uploads.Key("refresh_on_complete").SetValue(fmt.Sprintf("%t", cfg.RefreshOnComplete))

	// Temporary file + rename so a crash never leaves a half-written config
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values with WEBUP_* environment variables.
// Flags are applied by the caller afterwards, giving flags > env > file > defaults.
func (cfg *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvServer); v != "" {
		cfg.ServerURL = v
	}
	if v := getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
}

// Validate checks if the configuration is usable for talking to the server.
func (cfg *Config) Validate() error {
	raw := strings.TrimSpace(cfg.ServerURL)
	if raw == "" {
		return ErrEmptyServerURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServerURL
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(cfg.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
		if cfg.ProxyPort < 0 || cfg.ProxyPort > 65535 {
			return ErrInvalidProxyPort
		}
	default:
		return ErrInvalidProxyMode
	}

	return nil
}

// BaseURL returns the server URL with a trailing slash so endpoint names can be
// resolved relative to it (the uploader may be mounted under a prefix).
func (cfg *Config) BaseURL() string {
	u := strings.TrimSpace(cfg.ServerURL)
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// Redacted returns a copy with secrets masked, for `config show`.
func (cfg *Config) Redacted() *Config {
	c := *cfg
	if c.Password != "" {
		c.Password = "********"
	}
	if c.ProxyPassword != "" {
		c.ProxyPassword = "********"
	}
	return &c
}

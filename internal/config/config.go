// Package config provides the YAML configuration model with full
// load/save behavior, including first-run config creation and 0600
// permissions.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StaticEvent is a statically configured calendar event.
type StaticEvent struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Start string `yaml:"start" json:"start"` // RFC3339 or YYYY-MM-DD
	End   string `yaml:"end" json:"end"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// RemoteConfig describes the JSON event source.
type RemoteConfig struct {
	// URL is the events endpoint; empty disables the remote source.
	URL string `yaml:"url" json:"url"`
	// UserID, if set, is appended to the default range query.
	UserID string `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	// RefetchOnNavigate opts in to refetching when the visible range
	// changes; off means fetch once and filter client-side.
	RefetchOnNavigate bool `yaml:"refetch_on_navigate" json:"refetch_on_navigate"`
}

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL  string `yaml:"url" json:"url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// MockConfig sizes the generated example datasets.
type MockConfig struct {
	Seed      int64 `yaml:"seed" json:"seed"`
	Customers int   `yaml:"customers" json:"customers"`
	Products  int   `yaml:"products" json:"products"`
	Orders    int   `yaml:"orders" json:"orders"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// DefaultView is the view mode served when none is requested:
	// "month" (default), "week", or "day".
	DefaultView string `yaml:"default_view" json:"default_view"`

	// OverflowCap is how many events a month cell shows inline before
	// the rest move to the overflow popup.
	OverflowCap int `yaml:"overflow_cap" json:"overflow_cap"`

	// RefreshCron schedules background remote refreshes
	// (e.g. "*/15 * * * *"). Empty disables the background loop.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir backs the ICS fetch cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Events are the statically provided events.
	Events []StaticEvent `yaml:"events" json:"events"`

	// Remote configures the JSON event source, if any.
	Remote *RemoteConfig `yaml:"remote,omitempty" json:"remote,omitempty"`

	// ICS lists the subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// Mock sizes the example datasets.
	Mock MockConfig `yaml:"mock" json:"mock"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// LogLevel is "debug", "info" (default), or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Local",
		WeekStart:   "monday",
		DefaultView: "month",
		OverflowCap: 1,
		CacheDir:    "./var/ics-cache",
		Events:      []StaticEvent{},
		ICS:         []ICSConfig{},
		Mock:        MockConfig{Seed: 1, Customers: 50, Products: 40, Orders: 120},
		LogLevel:    "info",
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	switch c.DefaultView {
	case "month", "week", "day":
	default:
		c.DefaultView = "month"
	}
	if c.OverflowCap <= 0 {
		c.OverflowCap = 1
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.Events == nil {
		c.Events = []StaticEvent{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Mock.Seed == 0 {
		c.Mock.Seed = 1
	}
	if c.Mock.Customers <= 0 {
		c.Mock.Customers = 50
	}
	if c.Mock.Products <= 0 {
		c.Mock.Products = 40
	}
	if c.Mock.Orders <= 0 {
		c.Mock.Orders = 120
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written (0600, parent
// directory created) and returned; otherwise the file is unmarshaled and
// normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

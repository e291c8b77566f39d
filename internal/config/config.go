package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AllDayEndMode selects the DTEND policy of a feed's all-day events.
// "same-day" mirrors the source table's all-day lesson markers; "next-day"
// is the exclusive RFC 5545 form used for deadlines.
const (
	AllDayEndSameDay = "same-day"
	AllDayEndNextDay = "next-day"
)

// FeedConfig describes one generated calendar feed.
type FeedConfig struct {
	// URL is the portal page to fetch (SkemaAvanceret.aspx or
	// OpgaverElev.aspx). Ignored when HTMLPath is set.
	URL string `yaml:"url"`

	// HTMLPath reads a local HTML export instead of fetching.
	HTMLPath string `yaml:"html_path"`

	// Output is the .ics file written for this feed.
	Output string `yaml:"output"`

	// Name is the feed's display name (X-WR-CALNAME).
	Name string `yaml:"name"`

	// AllDayEnd is "same-day" or "next-day".
	AllDayEnd string `yaml:"all_day_end"`
}

// Enabled reports whether the feed has any source configured.
func (f FeedConfig) Enabled() bool {
	return f.URL != "" || f.HTMLPath != ""
}

// FetchConfig holds session and transport settings.
type FetchConfig struct {
	// CookieEnv names the environment variable holding the session
	// cookie header. Preferred over CookieHeader so the secret stays
	// out of config files.
	CookieEnv string `yaml:"cookie_env"`

	// CookieHeader is the literal cookie header; CookieEnv wins.
	CookieHeader string `yaml:"cookie_header"`

	// TimeoutSeconds bounds each request.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Browser switches to a headless-Chromium page load for
	// script-gated pages.
	Browser bool `yaml:"browser"`
}

// Cookie resolves the session cookie header.
func (f FetchConfig) Cookie() string {
	if f.CookieEnv != "" {
		if v := os.Getenv(f.CookieEnv); v != "" {
			return v
		}
	}
	return f.CookieHeader
}

// Timeout returns the per-request timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the feed server.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone all floating event times refer to.
	Timezone string `yaml:"timezone"`

	// DaysPast / DaysFuture bound the schedule date window around today.
	DaysPast   int `yaml:"days_past"`
	DaysFuture int `yaml:"days_future"`

	// EmitCancelled keeps cancelled activities in the output with a
	// cancelled marker instead of dropping them.
	EmitCancelled bool `yaml:"emit_cancelled"`

	// Refresh is the cron schedule for daemon mode.
	Refresh string `yaml:"refresh"`

	// Listen is the HTTP listen address for feed serving.
	Listen string `yaml:"listen"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`

	Fetch FetchConfig `yaml:"fetch"`

	Schedule    FeedConfig `yaml:"schedule"`
	Assignments FeedConfig `yaml:"assignments"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:   "Europe/Copenhagen",
		DaysPast:   7,
		DaysFuture: 90,
		Refresh:    "*/30 * * * *",
		Listen:     "127.0.0.1:8080",
		Fetch: FetchConfig{
			CookieEnv:      "LECTIO_COOKIE_HEADER",
			TimeoutSeconds: 30,
		},
		Schedule: FeedConfig{
			Output:    "docs/skema.ics",
			Name:      "Lectio skema",
			AllDayEnd: AllDayEndSameDay,
		},
		Assignments: FeedConfig{
			Output:    "docs/opgaver.ics",
			Name:      "Lectio opgaver",
			AllDayEnd: AllDayEndNextDay,
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.DaysPast < 0 {
		c.DaysPast = def.DaysPast
	}
	if c.DaysFuture <= 0 {
		c.DaysFuture = def.DaysFuture
	}
	if c.Refresh == "" {
		c.Refresh = def.Refresh
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Fetch.CookieEnv == "" && c.Fetch.CookieHeader == "" {
		c.Fetch.CookieEnv = def.Fetch.CookieEnv
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = def.Fetch.TimeoutSeconds
	}

	normalizeFeed(&c.Schedule, def.Schedule)
	normalizeFeed(&c.Assignments, def.Assignments)
}

func normalizeFeed(f *FeedConfig, def FeedConfig) {
	if f.Output == "" {
		f.Output = def.Output
	}
	if f.Name == "" {
		f.Name = def.Name
	}
	switch f.AllDayEnd {
	case AllDayEndSameDay, AllDayEndNextDay:
	default:
		f.AllDayEnd = def.AllDayEnd
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path. A missing file
// yields defaults and writes them with 0600 perms (first run).
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

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory if needed.
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

	tmp, err := os.CreateTemp(dir, ".lectioskema-config-*.tmp")
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

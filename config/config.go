package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Minionjack/Trade-info-scraper/scheduler"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type Config struct {
	LoginURL     string `yaml:"login_url"`
	DashboardURL string `yaml:"dashboard_url"`
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`

	DBPath    string `yaml:"db_path"`
	AuditPath string `yaml:"audit_path"`
	ImageDir  string `yaml:"image_dir"`

	PollIntervalSec     int `yaml:"poll_interval_secs"`
	ReconnectBackoffSec int `yaml:"reconnect_backoff_secs"`
	ConnectTimeoutSec   int `yaml:"connect_timeout_secs"`
	FetchTimeoutSec     int `yaml:"fetch_timeout_secs"`
	AssetTimeoutSec     int `yaml:"asset_timeout_secs"`
	NotifyTimeoutSec    int `yaml:"notify_timeout_secs"`

	MaxPageBytes  int64 `yaml:"max_page_bytes"`
	MaxAssetBytes int64 `yaml:"max_asset_bytes"`

	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
	StatsSchedule string `yaml:"stats_schedule"`
	Timezone      string `yaml:"timezone"`

	LogLevel  string `yaml:"log_level"`
	UserAgent string `yaml:"user_agent"`
}

func Defaults() Config {
	return Config{
		LoginURL:            "https://www.pricesync.net/user/auth",
		DashboardURL:        "https://www.pricesync.net/dashboard",
		DBPath:              "./signals.db",
		AuditPath:           "./post_log.csv",
		ImageDir:            "./images",
		PollIntervalSec:     60,
		ReconnectBackoffSec: 30,
		ConnectTimeoutSec:   20,
		FetchTimeoutSec:     30,
		AssetTimeoutSec:     30,
		NotifyTimeoutSec:    30,
		MaxPageBytes:        5 << 20,
		MaxAssetBytes:       20 << 20,
		Timezone:            "UTC",
		LogLevel:            "info",
		UserAgent:           DefaultUserAgent,
	}
}

// LoadDotEnv sets variables from path that are not already set. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadPath loads the file at path, applies environment overrides and
// validates the result.
func LoadPath(path string, getenv func(string) string) (Config, error) {
	cfg, err := LoadUnvalidated(path, getenv)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadUnvalidated is LoadPath without Validate, for read-only commands that
// never log in.
func LoadUnvalidated(path string, getenv func(string) string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv(getenv)
	return cfg, nil
}

// Path returns the config location: explicit wins, then SIGNALS_CONFIG, then
// ./config.yaml.
func Path(explicit string, getenv func(string) string) string {
	if explicit != "" {
		return explicit
	}
	if p := getenv("SIGNALS_CONFIG"); p != "" {
		return p
	}
	return "./config.yaml"
}

func LoadFile(path string) (Config, error) {
	cfg := Defaults()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"SIGNALS_DB", &c.DBPath},
		{"SIGNALS_EMAIL", &c.Email},
		{"SIGNALS_PASSWORD", &c.Password},
		{"SIGNALS_TELEGRAM_TOKEN", &c.TelegramToken},
	}
	for _, o := range overrides {
		if v := getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

func (c Config) Validate() error {
	var errs []error
	for _, u := range []struct{ key, val string }{
		{"login_url", c.LoginURL},
		{"dashboard_url", c.DashboardURL},
	} {
		if err := validateURL(u.val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.key, err))
		}
	}
	// Login and expiry detection compare the landing path with this one.
	if u, err := url.Parse(c.DashboardURL); err == nil && strings.Trim(u.Path, "/") == "" {
		errs = append(errs, errors.New("dashboard_url must include a path"))
	}
	if c.Email == "" {
		errs = append(errs, errors.New("email is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.AuditPath == "" {
		errs = append(errs, errors.New("audit_path is required"))
	}
	if c.ImageDir == "" {
		errs = append(errs, errors.New("image_dir is required"))
	}
	for _, d := range []struct {
		key string
		val int
	}{
		{"poll_interval_secs", c.PollIntervalSec},
		{"reconnect_backoff_secs", c.ReconnectBackoffSec},
		{"connect_timeout_secs", c.ConnectTimeoutSec},
		{"fetch_timeout_secs", c.FetchTimeoutSec},
		{"asset_timeout_secs", c.AssetTimeoutSec},
		{"notify_timeout_secs", c.NotifyTimeoutSec},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", d.key))
		}
	}
	if c.MaxPageBytes <= 0 {
		errs = append(errs, errors.New("max_page_bytes must be > 0"))
	}
	if c.MaxAssetBytes <= 0 {
		errs = append(errs, errors.New("max_asset_bytes must be > 0"))
	}
	if c.TelegramToken != "" && c.ChatID == 0 {
		errs = append(errs, errors.New("chat_id is required when telegram_token is set"))
	}
	if c.StatsSchedule != "" {
		if err := scheduler.Validate(c.StatsSchedule); err != nil {
			errs = append(errs, fmt.Errorf("stats_schedule: %w", err))
		}
	}
	if c.Timezone == "" {
		errs = append(errs, errors.New("timezone is required"))
	} else if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid url %q", s)
	}
	return nil
}

// NotificationsEnabled reports whether a Telegram bot is configured.
func (c Config) NotificationsEnabled() bool {
	return c.TelegramToken != ""
}

func (c Config) PollInterval() time.Duration { return secs(c.PollIntervalSec) }
func (c Config) ReconnectBackoff() time.Duration {
	return secs(c.ReconnectBackoffSec)
}
func (c Config) ConnectTimeout() time.Duration { return secs(c.ConnectTimeoutSec) }
func (c Config) FetchTimeout() time.Duration   { return secs(c.FetchTimeoutSec) }
func (c Config) AssetTimeout() time.Duration   { return secs(c.AssetTimeoutSec) }
func (c Config) NotifyTimeout() time.Duration  { return secs(c.NotifyTimeoutSec) }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
}

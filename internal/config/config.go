package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BOMBONA"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
)

// Capture session policies when a second session is opened.
const (
	PolicyReject  = "reject"
	PolicyPreempt = "preempt"
)

type Config struct {
	Port      string
	Log       LogConfig
	DB        DBConfig
	Store     StoreConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Capture   CaptureConfig
	Export    ExportConfig
	Dashboard DashboardConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type DBConfig struct {
	Path string
}

type StoreConfig struct {
	Backend string
	Remote  RemoteStoreConfig
}

type RemoteStoreConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// RedisConfig is optional; an empty Addr selects the in-process store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

type CaptureConfig struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	Width          int
	Height         int
	FacingMode     string
	Policy         string
	Device         string // rear-facing device
	FrontDevice    string
}

type ExportConfig struct {
	Timezone string
}

type DashboardConfig struct {
	CacheTTL time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.remote.timeout", 15*time.Second)
	v.SetDefault("store.remote.retry_count", 3)
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("capture.interval", 300*time.Millisecond)
	v.SetDefault("capture.request_timeout", 10*time.Second)
	v.SetDefault("capture.width", 1280)
	v.SetDefault("capture.height", 720)
	v.SetDefault("capture.facing_mode", "environment")
	v.SetDefault("capture.policy", PolicyPreempt)
	v.SetDefault("export.timezone", "America/Sao_Paulo")
	v.SetDefault("dashboard.cache_ttl", 30*time.Second)
}

// Load reads configs/config.yml (or the file at path, when set) and applies
// BOMBONA_* environment overrides. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port: v.GetString("port"),
		Log:  LogConfig{Level: v.GetString("log.level"), Format: v.GetString("log.format")},
		DB:   DBConfig{Path: v.GetString("db.path")},
		Store: StoreConfig{
			Backend: strings.ToLower(v.GetString("store.backend")),
			Remote: RemoteStoreConfig{
				BaseURL:    v.GetString("store.remote.base_url"),
				APIKey:     v.GetString("store.remote.api_key"),
				Timeout:    v.GetDuration("store.remote.timeout"),
				RetryCount: v.GetInt("store.remote.retry_count"),
			},
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			SigningKey: v.GetString("auth.signing_key"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
		},
		Capture: CaptureConfig{
			Interval:       v.GetDuration("capture.interval"),
			RequestTimeout: v.GetDuration("capture.request_timeout"),
			Width:          v.GetInt("capture.width"),
			Height:         v.GetInt("capture.height"),
			FacingMode:     v.GetString("capture.facing_mode"),
			Policy:         strings.ToLower(v.GetString("capture.policy")),
			Device:         v.GetString("capture.device"),
			FrontDevice:    v.GetString("capture.front_device"),
		},
		Export:    ExportConfig{Timezone: v.GetString("export.timezone")},
		Dashboard: DashboardConfig{CacheTTL: v.GetDuration("dashboard.cache_ttl")},
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that have no safe fallback.
func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required")
	}
	switch c.Store.Backend {
	case BackendSQLite:
		if c.DB.Path == "" {
			return errors.New("db.path is required for the sqlite backend")
		}
	case BackendRemote:
		if c.Store.Remote.BaseURL == "" {
			return errors.New("store.remote.base_url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	switch c.Capture.Policy {
	case PolicyReject, PolicyPreempt:
	default:
		return fmt.Errorf("unknown capture.policy %q", c.Capture.Policy)
	}
	if c.Capture.Interval <= 0 {
		return errors.New("capture.interval must be positive")
	}
	if c.Capture.RequestTimeout <= 0 {
		return errors.New("capture.request_timeout must be positive")
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("invalid capture resolution %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if _, err := time.LoadLocation(c.Export.Timezone); err != nil {
		return fmt.Errorf("export.timezone: %w", err)
	}
	return nil
}

// ExportLocation returns the zone used for report timestamps.
func (c *Config) ExportLocation() *time.Location {
	loc, err := time.LoadLocation(c.Export.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

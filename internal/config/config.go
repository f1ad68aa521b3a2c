// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port    int    `yaml:"port"`     // public redemption API
	BaseURL string `yaml:"base_url"` // prefix for generated redemption links
}

type AdminConfig struct {
	Port              int    `yaml:"port"`    // issuance/ops API + /metrics
	APIKey            string `yaml:"api_key"` // operator credential
	JWTSecret         string `yaml:"jwt_secret"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL                 string `yaml:"url"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	RedeemLimit         int    `yaml:"redeem_limit"`          // attempts per window per client
	RedeemWindowSeconds int    `yaml:"redeem_window_seconds"` // rate-limit window
}

type CouponConfig struct {
	DefaultExpiryDays int `yaml:"default_expiry_days"`
}

type SweeperConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Coupon   CouponConfig   `yaml:"coupon"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 9090
	}
	if cfg.Admin.SessionTTLMinutes <= 0 {
		cfg.Admin.SessionTTLMinutes = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.RedeemLimit <= 0 {
		cfg.Redis.RedeemLimit = 10
	}
	if cfg.Redis.RedeemWindowSeconds <= 0 {
		cfg.Redis.RedeemWindowSeconds = 60
	}
	if cfg.Coupon.DefaultExpiryDays <= 0 {
		cfg.Coupon.DefaultExpiryDays = 90
	}
	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 300
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Admin.APIKey == "" {
		return nil, errors.New("admin.api_key is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// DefaultExpiry converts the configured day count to a duration.
func (c CouponConfig) DefaultExpiry() time.Duration {
	return time.Duration(c.DefaultExpiryDays) * 24 * time.Hour
}

func (c AdminConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c RedisConfig) RedeemWindow() time.Duration {
	return time.Duration(c.RedeemWindowSeconds) * time.Second
}

func (c SweeperConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration for the stock feed service.
type Config struct {
	Server ServerConfig `yaml:"server"`
	API    APIConfig    `yaml:"api"`
	Poller PollerConfig `yaml:"poller"`
	Stream StreamConfig `yaml:"stream"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host        string          `yaml:"host"`
	Port        int             `yaml:"port"`
	ProxyPreset string          `yaml:"proxy_preset"` // direct, cloudflare, gcp, nginx, aws, azure, vercel
	CORSOrigins []string        `yaml:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// APIConfig holds Trading 212 API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	APISecret  string        `yaml:"api_secret"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// PollerConfig holds the refresh schedule.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MinInterval time.Duration `yaml:"min_interval"` // Upstream rate limit floor
	Timeout     time.Duration `yaml:"timeout"`

	// intervalSet marks Interval as explicitly configured, so a zero or
	// negative value is kept for the poller to clamp instead of defaulted.
	intervalSet bool
}

// StreamConfig holds streaming endpoint settings.
type StreamConfig struct {
	Mode           string        `yaml:"mode"` // interactive or broadcast
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// LogConfig holds logger settings. File enables a rotating log file in
// addition to stdout.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 3000
	DefaultProxyPreset       = "direct"
	DefaultCORSOrigin        = "*"
	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 10 * time.Second
	DefaultBaseURL           = "https://live.trading212.com"
	DefaultAPITimeout        = 10 * time.Second
	DefaultPollInterval      = 10 * time.Second
	DefaultMinPollInterval   = 5 * time.Second
	DefaultStreamMode        = "interactive"
	DefaultWriteTimeout      = 10 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultSendBuffer        = 64
	DefaultMaxMessageSize    = 4096
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultLogMaxSizeMB      = 100
	DefaultLogMaxBackups     = 3
	DefaultLogMaxAgeDays     = 28
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ProxyPreset == "" {
		c.Server.ProxyPreset = DefaultProxyPreset
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{DefaultCORSOrigin}
	}
	if c.Server.RateLimit.Requests == 0 {
		c.Server.RateLimit.Requests = DefaultRateLimitRequests
	}
	if c.Server.RateLimit.Window == 0 {
		c.Server.RateLimit.Window = DefaultRateLimitWindow
	}

	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Poller defaults
	if c.Poller.Interval == 0 && !c.Poller.intervalSet {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.MinInterval == 0 {
		c.Poller.MinInterval = DefaultMinPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = c.API.Timeout
	}

	// Stream defaults
	if c.Stream.Mode == "" {
		c.Stream.Mode = DefaultStreamMode
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PongWait == 0 {
		c.Stream.PongWait = DefaultPongWait
	}
	if c.Stream.SendBuffer == 0 {
		c.Stream.SendBuffer = DefaultSendBuffer
	}
	if c.Stream.MaxMessageSize == 0 {
		c.Stream.MaxMessageSize = DefaultMaxMessageSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

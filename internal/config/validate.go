package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required (set %s)", EnvAPIKey)
	}
	if c.API.APISecret == "" {
		return fmt.Errorf("api.api_secret is required (set %s)", EnvAPISecret)
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit.Requests < 1 {
		return errors.New("server.rate_limit.requests must be >= 1")
	}
	if c.Server.RateLimit.Window <= 0 {
		return errors.New("server.rate_limit.window must be > 0")
	}

	// Poller.Interval is not checked: anything below min_interval,
	// including zero or negative, is raised to the floor by the poller.
	if c.Poller.MinInterval <= 0 {
		return errors.New("poller.min_interval must be > 0")
	}
	if c.Poller.Timeout <= 0 {
		return errors.New("poller.timeout must be > 0")
	}

	if err := c.Stream.validate(); err != nil {
		return err
	}

	return c.Log.validate()
}

func (s *StreamConfig) validate() error {
	if s.Mode != "interactive" && s.Mode != "broadcast" {
		return fmt.Errorf("stream.mode must be interactive or broadcast, got %q", s.Mode)
	}
	if s.SendBuffer < 1 {
		return errors.New("stream.send_buffer must be >= 1")
	}
	if s.PingInterval >= s.PongWait {
		return fmt.Errorf("stream.ping_interval (%s) must be less than pong_wait (%s)", s.PingInterval, s.PongWait)
	}
	return nil
}

func (l *LogConfig) validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return fmt.Errorf("log.level %q is not a valid level", l.Level)
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", l.Format)
	}
	return nil
}

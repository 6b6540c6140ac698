package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvAPIKey             = "TRADING212_API_KEY"
	EnvAPISecret          = "TRADING212_API_SECRET"
	EnvBaseURL            = "TRADING212_BASE_URL"
	EnvServerHost         = "SERVER_HOST"
	EnvServerPort         = "SERVER_PORT"
	EnvRefreshInterval    = "REFRESH_INTERVAL"
	EnvMinRefreshInterval = "MIN_REFRESH_INTERVAL"
	EnvProxyPreset        = "PROXY_PRESET"
	EnvStreamMode         = "STREAM_MODE"
	EnvCORSOrigins        = "CORS_ORIGINS"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
	EnvLogFile            = "LOG_FILE"
)

// LoadEnvFile populates the process environment from a dotenv file. Variables
// already set are left alone. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads an optional YAML config file, expands environment variables and
// applies environment overrides. An empty path yields a config built from the
// environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// Expand ${VAR} environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.API.APIKey, EnvAPIKey)
	setString(&c.API.APISecret, EnvAPISecret)
	setString(&c.API.BaseURL, EnvBaseURL)
	setString(&c.Server.Host, EnvServerHost)
	setString(&c.Server.ProxyPreset, EnvProxyPreset)
	setString(&c.Stream.Mode, EnvStreamMode)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Log.Format, EnvLogFormat)
	setString(&c.Log.File, EnvLogFile)

	if v, ok := lookup(EnvServerPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvServerPort, v)
		}
		c.Server.Port = port
	}

	if v, ok := lookup(EnvRefreshInterval); ok {
		d, err := ParseInterval(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRefreshInterval, err)
		}
		c.Poller.Interval = d
		c.Poller.intervalSet = true
	}

	if v, ok := lookup(EnvMinRefreshInterval); ok {
		d, err := ParseInterval(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMinRefreshInterval, err)
		}
		c.Poller.MinInterval = d
	}

	if v, ok := lookup(EnvCORSOrigins); ok {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}

	return nil
}

// ParseInterval accepts a bare integer as milliseconds or a Go duration
// string such as "10s".
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return d, nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

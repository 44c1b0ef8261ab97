package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Reference reconnection policy.
const (
	DefaultServerURL        = "http://localhost:5000"
	DefaultMaxAttempts      = 5
	DefaultBaseDelayMS      = 1000
	DefaultHandshakeTimeout = 10000
)

// Config represents the global ~/.parley/config.toml.
type Config struct {
	ServerURL      string    `toml:"server_url"`
	DefaultSession string    `toml:"default_session"`
	Reconnect      Reconnect `toml:"reconnect"`
}

// Reconnect holds the push-channel retry policy.
type Reconnect struct {
	MaxAttempts        int `toml:"max_attempts"`
	BaseDelayMS        int `toml:"base_delay_ms"`
	HandshakeTimeoutMS int `toml:"handshake_timeout_ms"`
}

// BaseDelay returns the initial retry delay as a duration.
func (r Reconnect) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// HandshakeTimeoutD returns the connect handshake bound as a duration.
func (r Reconnect) HandshakeTimeoutD() time.Duration {
	return time.Duration(r.HandshakeTimeoutMS) * time.Millisecond
}

// ApplyDefaults fills zero-valued fields with the reference policy.
func (c *Config) ApplyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.BaseDelayMS == 0 {
		c.Reconnect.BaseDelayMS = DefaultBaseDelayMS
	}
	if c.Reconnect.HandshakeTimeoutMS == 0 {
		c.Reconnect.HandshakeTimeoutMS = DefaultHandshakeTimeout
	}
}

// Load reads config from the given path. Returns an error if the file is
// missing; callers that tolerate a missing file fall back to LoadOrDefault.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from path, returning the default config when
// the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = &Config{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Package config loads process configuration for the flowstate binaries from
// FLOWSTATE_* environment variables.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the process configuration. Command-line flags override it.
type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	Workflows string `env:"WORKFLOWS"`

	Store      string           `env:"STORE" envDefault:"memory"`
	FileDir    string           `env:"FILE_DIR" envDefault:".flowstate/instances"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	Encryption EncryptionConfig `envPrefix:"ENCRYPTION_"`
	PIIFields  []string         `env:"PII_FIELDS" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	CallbackTimeout time.Duration `env:"CALLBACK_TIMEOUT" envDefault:"30s"`
	LockTTL         time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	Metrics         bool          `env:"METRICS" envDefault:"true"`
}

// RedisConfig configures the redis store, locker and publisher.
type RedisConfig struct {
	Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	Prefix   string        `env:"PREFIX" envDefault:"flowstate:"`
	TTL      time.Duration `env:"TTL"`
	// Publish mirrors engine events to redis pub/sub.
	Publish bool `env:"PUBLISH"`
}

// EncryptionConfig holds base64 AES-256 keys for the encryption middleware.
type EncryptionConfig struct {
	Key          string   `env:"KEY"`
	FallbackKeys []string `env:"FALLBACK_KEYS" envSeparator:","`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads the configuration from environ instead of the process
// environment when environ is not nil.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: "FLOWSTATE_"}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be expressed as env tags.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want memory, file or redis)", c.Store)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.CallbackTimeout < 0 {
		return fmt.Errorf("callback timeout must not be negative: %s", c.CallbackTimeout)
	}
	for _, p := range c.PIIFields {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
	}
	return nil
}

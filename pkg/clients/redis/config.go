package redis

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for connection pooling and timeouts.
const (
	DefaultHost = "localhost"
	DefaultPort = 6379
	DefaultDB   = 0

	DefaultPoolSize     = 10
	DefaultMinIdleConns = 2
	DefaultMaxRetries   = 3

	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second

	// DefaultHealthTimeout bounds a health ping when the caller's context
	// carries no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret holds a sensitive string such as the Redis password. String,
// GoString, and MarshalText return a redacted placeholder; use
// [Secret.Value] to read the underlying secret.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return redacted
}

// Value returns the actual secret. Never log or serialize the result.
func (s Secret) Value() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler with a redacted value.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Config holds Redis connection settings. When URI is set it takes
// precedence over Host/Port/Password/DB.
type Config struct {
	// URI is a full connection string, e.g. "redis://:pass@cache:6379/0".
	URI string `json:"uri,omitempty" env:"REDIS_URI" yaml:"uri"`

	Host     string `json:"host,omitempty" env:"REDIS_HOST" yaml:"host"`
	Port     int    `json:"port,omitempty" env:"REDIS_PORT" yaml:"port"`
	Password Secret `json:"-" env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `json:"db,omitempty" env:"REDIS_DB" yaml:"db"`

	// TLSEnabled turns on TLS for the structured Host/Port form. With URI
	// configuration use the rediss:// scheme instead.
	TLSEnabled bool `json:"tls_enabled,omitempty" env:"REDIS_TLS_ENABLED" yaml:"tls_enabled"`

	PoolSize     int `json:"pool_size,omitempty" env:"REDIS_POOL_SIZE" yaml:"pool_size"`
	MinIdleConns int `json:"min_idle_conns,omitempty" env:"REDIS_MIN_IDLE_CONNS" yaml:"min_idle_conns"`
	MaxRetries   int `json:"max_retries,omitempty" env:"REDIS_MAX_RETRIES" yaml:"max_retries"`

	DialTimeout  time.Duration `json:"dial_timeout,omitempty" env:"REDIS_DIAL_TIMEOUT" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" env:"REDIS_READ_TIMEOUT" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" env:"REDIS_WRITE_TIMEOUT" yaml:"write_timeout"`
}

// DefaultConfig returns a Config with development-friendly defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate applies defaults to zero-valued fields and returns the first
// validation error found. When URI is set the structured fields are not
// checked; go-redis parses and validates the URI at connect time.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		return nil
	}

	if c.Host == "" {
		return errors.New("redis: config host must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DB < 0 || c.DB > 15 {
		return fmt.Errorf("redis: config db must be between 0 and 15, got %d", c.DB)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" && c.URI == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

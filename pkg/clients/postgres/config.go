package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// maxStatementTraceLen caps the length of SQL statements recorded on trace
// spans so that bound literals and PII never reach the telemetry backend.
const maxStatementTraceLen = 100

// Defaults for pool sizing and timeouts. Tuned for a single identity
// service instance talking to a dedicated accounts database.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultDatabase = "identity"
	DefaultUser     = "identity"

	// DefaultMaxConns bounds pool growth; each server-side connection
	// costs roughly 10 MB of PostgreSQL memory.
	DefaultMaxConns int32 = 20

	// DefaultMinConns keeps warm connections available for login bursts.
	DefaultMinConns int32 = 2

	DefaultMaxConnLifetime   = time.Hour
	DefaultMaxConnIdleTime   = 30 * time.Minute
	DefaultHealthCheckPeriod = time.Minute
	DefaultConnectTimeout    = 10 * time.Second

	// DefaultHealthTimeout bounds a health ping when the caller's context
	// carries no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// SSLMode maps to the PostgreSQL sslmode connection parameter.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"
	SSLModeAllow      SSLMode = "allow"
	SSLModePrefer     SSLMode = "prefer"
	SSLModeRequire    SSLMode = "require"
	SSLModeVerifyCA   SSLMode = "verify-ca"
	SSLModeVerifyFull SSLMode = "verify-full"
)

func (m SSLMode) String() string {
	return string(m)
}

// Valid reports whether the SSL mode is one of the recognized values.
func (m SSLMode) Valid() bool {
	switch m {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer,
		SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	default:
		return false
	}
}

// Secret holds a sensitive string such as the database password. String,
// GoString, and MarshalText all return a redacted placeholder so the value
// cannot leak through logs or serialized configuration. Use [Secret.Value]
// to read the underlying secret.
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

// Config holds PostgreSQL connection settings. When URI is set it takes
// precedence over the structured Host/Port/Database/User/Password fields.
type Config struct {
	// URI is a full connection string, e.g.
	// "postgres://identity:pass@db:5432/identity?sslmode=require".
	URI string `json:"uri,omitempty" env:"POSTGRES_URI" yaml:"uri"`

	Host     string `json:"host,omitempty" env:"POSTGRES_HOST" yaml:"host"`
	Port     int    `json:"port,omitempty" env:"POSTGRES_PORT" yaml:"port"`
	Database string `json:"database" env:"POSTGRES_DATABASE" yaml:"database"`
	User     string `json:"user" env:"POSTGRES_USER" yaml:"user"`
	Password Secret `json:"-" env:"POSTGRES_PASSWORD" yaml:"password"`

	// SSLMode defaults to "prefer". Use "verify-full" against managed
	// cloud databases.
	SSLMode SSLMode `json:"ssl_mode,omitempty" env:"POSTGRES_SSLMODE" yaml:"ssl_mode"`

	MaxConns          int32         `json:"max_conns,omitempty" env:"POSTGRES_MAX_CONNS" yaml:"max_conns"`
	MinConns          int32         `json:"min_conns,omitempty" env:"POSTGRES_MIN_CONNS" yaml:"min_conns"`
	MaxConnLifetime   time.Duration `json:"max_conn_lifetime,omitempty" env:"POSTGRES_MAX_CONN_LIFETIME" yaml:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `json:"max_conn_idle_time,omitempty" env:"POSTGRES_MAX_CONN_IDLE_TIME" yaml:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `json:"health_check_period,omitempty" env:"POSTGRES_HEALTH_CHECK_PERIOD" yaml:"health_check_period"`
	ConnectTimeout    time.Duration `json:"connect_timeout,omitempty" env:"POSTGRES_CONNECT_TIMEOUT" yaml:"connect_timeout"`
}

// DefaultConfig returns a Config with development-friendly defaults.
// Override fields before passing the config to [NewClient].
func DefaultConfig() *Config {
	return &Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		Database:          DefaultDatabase,
		User:              DefaultUser,
		SSLMode:           SSLModePrefer,
		MaxConns:          DefaultMaxConns,
		MinConns:          DefaultMinConns,
		MaxConnLifetime:   DefaultMaxConnLifetime,
		MaxConnIdleTime:   DefaultMaxConnIdleTime,
		HealthCheckPeriod: DefaultHealthCheckPeriod,
		ConnectTimeout:    DefaultConnectTimeout,
	}
}

// Validate applies defaults to zero-valued fields and returns the first
// validation error found. When URI is set only the URI itself is checked;
// the structured fields are ignored.
func (c *Config) Validate() error {
	c.applyPoolDefaults()

	if c.URI != "" {
		if _, err := url.Parse(c.URI); err != nil {
			return fmt.Errorf("postgres: config URI is invalid: %w", err)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("postgres: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return errors.New("postgres: config database must not be empty")
	}
	if c.User == "" {
		return errors.New("postgres: config user must not be empty")
	}
	if c.SSLMode == "" {
		c.SSLMode = SSLModePrefer
	}
	if !c.SSLMode.Valid() {
		return fmt.Errorf("postgres: config ssl_mode %q is not valid", c.SSLMode)
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("postgres: config max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns)
	}

	return nil
}

func (c *Config) applyPoolDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = DefaultMaxConnLifetime
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = DefaultMaxConnIdleTime
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// ConnectionString builds a connection string from the structured fields,
// or returns URI verbatim when set. The result contains the password in
// cleartext; never log it.
func (c *Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}

	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", string(c.SSLMode))
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// truncateStatement trims a SQL statement for inclusion in a trace span.
func truncateStatement(sql string) string {
	if len(sql) <= maxStatementTraceLen {
		return sql
	}
	return sql[:maxStatementTraceLen] + "..."
}

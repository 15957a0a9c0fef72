package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, SSLModePrefer, cfg.SSLMode)
	assert.Equal(t, DefaultMaxConns, cfg.MaxConns)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "empty database",
			mutate:  func(c *Config) { c.Database = "" },
			wantErr: "database",
		},
		{
			name:    "empty user",
			mutate:  func(c *Config) { c.User = "" },
			wantErr: "user",
		},
		{
			name:    "bad ssl mode",
			mutate:  func(c *Config) { c.SSLMode = "sideways" },
			wantErr: "ssl_mode",
		},
		{
			name: "max conns below min conns",
			mutate: func(c *Config) {
				c.MaxConns = 1
				c.MinConns = 5
			},
			wantErr: "max_conns",
		},
		{
			name:   "uri skips structured validation",
			mutate: func(c *Config) { c.URI = "postgres://u:p@db:5432/identity"; c.Database = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{Database: "identity", User: "identity"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, SSLModePrefer, cfg.SSLMode)
	assert.Equal(t, DefaultMaxConns, cfg.MaxConns)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
}

func TestConnectionString(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Host = "db.internal"
	cfg.Password = Secret("s3cret")

	s := cfg.ConnectionString()
	assert.True(t, strings.HasPrefix(s, "postgres://"))
	assert.Contains(t, s, "db.internal:5432")
	assert.Contains(t, s, "s3cret")
	assert.Contains(t, s, "sslmode=prefer")
}

func TestConnectionStringURIPrecedence(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.URI = "postgres://u:p@elsewhere:5432/other"

	assert.Equal(t, cfg.URI, cfg.ConnectionString())
}

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Value())

	out, err := json.Marshal(map[string]Secret{"password": s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
}

func TestTruncateStatement(t *testing.T) {
	t.Parallel()

	short := "SELECT 1"
	assert.Equal(t, short, truncateStatement(short))

	long := strings.Repeat("x", maxStatementTraceLen+10)
	got := truncateStatement(long)
	assert.Len(t, got, maxStatementTraceLen+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

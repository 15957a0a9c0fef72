package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsub/identity-core/internal/testutil"
	iderr "github.com/whatsub/identity-core/pkg/errors"
)

type serverConfig struct {
	Addr     string        `env:"ADDR" envDefault:":8080" yaml:"addr"`
	TTL      time.Duration `env:"SESSION_TTL" envDefault:"30m" yaml:"session_ttl"`
	Debug    bool          `env:"DEBUG" yaml:"debug"`
	Replicas int           `env:"REPLICAS" envDefault:"3" yaml:"replicas"`
	Origins  []string      `env:"ORIGINS" yaml:"origins"`
}

type requiredConfig struct {
	Secret string `env:"SECRET" required:"true"`
}

type nestedConfig struct {
	Server serverConfig `yaml:"server"`
	DB     struct {
		DSN string `env:"DB_DSN" required:"true" yaml:"dsn"`
	} `yaml:"db"`
}

type validatedConfig struct {
	Port int `env:"PORT" envDefault:"8080"`
}

func (c *validatedConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port out of range")
	}
	return nil
}

func TestLoadDefaults(t *testing.T) {
	var cfg serverConfig
	err := New().Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.TTL)
	assert.Equal(t, 3, cfg.Replicas)
	assert.False(t, cfg.Debug)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("DEBUG", "true")
	t.Setenv("ORIGINS", "a.example.com,b.example.com")

	var cfg serverConfig
	err := New().Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.TTL)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Origins)
}

func TestLoadEnvPrefix(t *testing.T) {
	t.Setenv("IDENTITY_ADDR", ":7070")

	var cfg serverConfig
	err := New().WithEnvPrefix("IDENTITY").Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
}

func TestLoadFile(t *testing.T) {
	path := testutil.TempConfigFile(t, "addr: \":6060\"\nsession_ttl: 45m\nreplicas: 5\n", ".yaml")

	var cfg serverConfig
	err := New().WithFile(path).Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, ":6060", cfg.Addr)
	assert.Equal(t, 45*time.Minute, cfg.TTL)
	assert.Equal(t, 5, cfg.Replicas)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := testutil.TempConfigFile(t, "addr: \":6060\"\n", ".yaml")
	t.Setenv("ADDR", ":5050")

	var cfg serverConfig
	err := New().WithFile(path).Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, ":5050", cfg.Addr)
}

func TestLoadMissingFileIgnored(t *testing.T) {
	var cfg serverConfig
	err := New().WithFile(filepath.Join(t.TempDir(), "absent.yaml")).Load(&cfg)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := testutil.TempConfigFile(t, "addr = \":6060\"\n", ".toml")

	var cfg serverConfig
	err := New().WithFile(path).Load(&cfg)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeInternalConfiguration))
}

func TestLoadRequiredMissing(t *testing.T) {
	var cfg requiredConfig
	err := New().Load(&cfg)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeValidationRequired))
	assert.Contains(t, err.Error(), "Secret")
}

func TestLoadRequiredNested(t *testing.T) {
	t.Setenv("SECRET", "x")

	var cfg nestedConfig
	err := New().Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB.DSN")
}

func TestLoadRequiredSatisfied(t *testing.T) {
	t.Setenv("SECRET", "hunter2")

	var cfg requiredConfig
	err := New().Load(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Secret)
}

func TestLoadCustomValidator(t *testing.T) {
	t.Setenv("PORT", "0")

	var cfg validatedConfig
	err := New().Load(&cfg)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeValidation))
}

func TestLoadNonPointer(t *testing.T) {
	var cfg serverConfig
	err := New().Load(cfg)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeInternalConfiguration))
}

func TestMustLoadPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad[requiredConfig](New())
	})
}

func TestMustLoad(t *testing.T) {
	cfg := MustLoad[serverConfig](New())
	assert.Equal(t, ":8080", cfg.Addr)
}

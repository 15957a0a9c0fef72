// Package config loads service configuration from struct tag defaults, an
// optional YAML or JSON file, and environment variables, resolved in that
// order with the environment winning. The layering matches how the service
// is deployed: defaults are compiled in, a mounted config file provides
// per-environment overrides, and env vars injected from the orchestrator
// take final precedence.
//
// Three struct tags drive the loader:
//
//   - `env:"VAR"` — binds the field to an environment variable
//   - `envDefault:"value"` — applied when the field is zero-valued
//   - `required:"true"` — loading fails if the field is still zero afterwards
//
// File-based loading uses the field's `yaml` or `json` tags. A config
// struct may additionally implement [Validator] for cross-field checks;
// validation failures surface as configuration errors, which the server
// treats as fatal at startup.
//
//	type ServerConfig struct {
//	    Addr   string        `env:"ADDR" envDefault:":8080" yaml:"addr"`
//	    Secret string        `env:"SECRET" required:"true" yaml:"-"`
//	    TTL    time.Duration `env:"SESSION_TTL" envDefault:"30m" yaml:"session_ttl"`
//	}
//
//	cfg := config.MustLoad[ServerConfig](config.New().WithEnvPrefix("IDENTITY"))
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// durationType is cached so struct traversal can tell time.Duration apart
// from plain int64 fields (both have Kind() == Int64).
var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves configuration into a struct. Configure it with
// [Loader.WithEnvPrefix] and [Loader.WithFile], then call [Loader.Load].
// A Loader is not safe for concurrent use; build one per Load call.
type Loader struct {
	envPrefix string
	filePath  string
}

// New returns a Loader that reads environment variables only, with no
// prefix and no file.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix prepends prefix (uppercased, underscore-joined) to every
// env var name derived from `env` tags. An empty prefix disables
// prefixing. Returns the Loader for chaining.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets an optional YAML (.yaml/.yml) or JSON (.json) config file.
// A missing file is not an error; an unsupported extension or a path
// containing ".." is. Returns the Loader for chaining.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, in
// priority order: envDefault tags, then file values, then environment
// variables. Afterwards `required:"true"` fields are checked and, if cfg
// implements [Validator], its Validate method runs.
//
// Failures return a [*iderr.Error] with [iderr.CodeInternalConfiguration]
// (loading) or [iderr.CodeValidationRequired] / [iderr.CodeValidation]
// (validation).
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return iderr.New(iderr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return iderr.New(iderr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	if err := applyEnv(rv, l.envPrefix); err != nil {
		return err
	}

	return validate(cfg, rv)
}

// MustLoad loads a zero value of T and panics on failure. Intended for
// process startup, where a bad configuration must stop the service before
// it serves a single request.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile reads and unmarshals the configured file into cfg. Missing
// files are ignored so that the file layer stays optional.
func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return iderr.New(iderr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return iderr.Newf(iderr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}

	return nil
}

// applyDefaults walks the struct and writes envDefault tag values into
// zero-valued fields, recursing into nested structs.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}

		if err := setField(field, tag); err != nil {
			return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}

	return nil
}

// applyEnv walks the struct and overwrites fields from environment
// variables. Nested structs contribute their own env tag as an additional
// underscore-joined prefix segment.
func applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			nested := prefix
			if envTag != "" {
				if nested != "" {
					nested += "_" + envTag
				} else {
					nested = envTag
				}
			}
			if err := applyEnv(field, nested); err != nil {
				return err
			}
			continue
		}

		if envTag == "" {
			continue
		}

		key := envTag
		if prefix != "" {
			key = prefix + "_" + envTag
		}

		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}

		if err := setField(field, val); err != nil {
			return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
	}

	return nil
}

// setField parses value into the field. Supports strings (including named
// string types such as session.Secret), bools, signed integers,
// time.Duration, and comma-separated string slices.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}

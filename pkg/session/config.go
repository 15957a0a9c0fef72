package session

import (
	"time"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() so the signing key never reaches logs or serialized
// output. The raw value is only accessible via [Secret.Value].
type Secret string

const secretRedacted = "[REDACTED]"

func (s Secret) String() string { return secretRedacted }

func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. Use only where the raw key is
// required, i.e. when signing or verifying.
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler with a redacted value.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// minSigningKeyLen is the minimum accepted HMAC key length in bytes.
// Shorter keys make HS256 tokens brute-forceable offline.
const minSigningKeyLen = 32

// Default token parameters.
const (
	DefaultTTL       = 30 * time.Minute
	DefaultIssuer    = "whatsub-identity"
	DefaultClockSkew = 30 * time.Second
)

// Config holds the session token parameters.
type Config struct {
	// SigningKey is the shared HMAC key for HS256. Must be at least 32
	// bytes. All service replicas must share the same key or sessions
	// issued by one replica will be rejected by another.
	SigningKey Secret `json:"-" env:"SESSION_SIGNING_KEY" required:"true"`

	// TTL is the session lifetime. Issued tokens expire TTL after
	// issuance. Defaults to 30 minutes.
	TTL time.Duration `json:"ttl" env:"SESSION_TTL" envDefault:"30m" yaml:"ttl"`

	// Issuer is written into the "iss" claim and required on verify.
	Issuer string `json:"issuer" env:"SESSION_ISSUER" envDefault:"whatsub-identity" yaml:"issuer"`

	// ClockSkew is the leeway applied to time-based claims on verify.
	ClockSkew time.Duration `json:"clock_skew" env:"SESSION_CLOCK_SKEW" envDefault:"30s" yaml:"clock_skew"`
}

// DefaultConfig returns a Config with default TTL, issuer, and clock skew.
// The signing key has no default and must be provided.
func DefaultConfig() Config {
	return Config{
		TTL:       DefaultTTL,
		Issuer:    DefaultIssuer,
		ClockSkew: DefaultClockSkew,
	}
}

// Validate applies defaults and checks the signing key. A missing or short
// key is a deployment mistake, so the error carries
// [iderr.CodeInternalConfiguration] and the caller should refuse to start.
func (c *Config) Validate() error {
	if len(c.SigningKey.Value()) < minSigningKeyLen {
		return iderr.Newf(iderr.CodeInternalConfiguration,
			"session: signing key must be at least %d bytes", minSigningKeyLen)
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if c.ClockSkew < 0 {
		return iderr.New(iderr.CodeInternalConfiguration,
			"session: clock skew must be non-negative")
	}
	return nil
}

// Package googleid verifies Google-issued OpenID Connect ID tokens. The
// login endpoint receives such a token from the client-side Google
// Sign-In flow and exchanges it for a local session; this package
// performs the cryptographic half of that exchange.
//
// Provider discovery, JWKS fetching, and signature verification are
// delegated to go-oidc. The issuer check is done here because Google
// emits tokens under two issuer forms and go-oidc only accepts one.
package googleid

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for this package.
const tracerName = "github.com/whatsub/identity-core/pkg/googleid"

// Google publishes tokens under both issuer forms; tokens carrying either
// must be accepted.
const (
	IssuerGoogle      = "https://accounts.google.com"
	issuerGoogleShort = "accounts.google.com"
)

// maxTokenSize caps the accepted token string length.
const maxTokenSize = 8192

// DefaultHTTPTimeout applies when no HTTP client is configured.
const DefaultHTTPTimeout = 10 * time.Second

// Identity is the verified content of a Google ID token that account
// resolution consumes.
type Identity struct {
	// Subject is Google's stable identifier for the user. It never
	// changes, unlike the email.
	Subject string

	// Email may be absent when the Google account exposes no email to
	// the requesting application.
	Email string

	// EmailVerified reports whether Google has confirmed ownership of
	// the email address.
	EmailVerified bool

	// Name is the user's display name, when shared.
	Name string

	// Picture is a URL to the user's avatar, when shared.
	Picture string
}

// Config holds the verifier settings.
type Config struct {
	// ClientID is the OAuth client ID of this application. The token's
	// aud claim must match it. Required.
	ClientID string `json:"client_id" env:"GOOGLE_CLIENT_ID" required:"true" yaml:"client_id"`

	// IssuerURL overrides the Google issuer for tests. Defaults to
	// [IssuerGoogle].
	IssuerURL string `json:"issuer_url,omitempty" env:"GOOGLE_ISSUER_URL" yaml:"issuer_url"`

	// HTTPClient is used for discovery and JWKS requests. Defaults to
	// an http.Client with a 10-second timeout.
	HTTPClient *http.Client `json:"-"`
}

// Validate checks the configuration and applies defaults. A missing
// client ID is a deployment mistake, not a bad request, so the error
// carries [iderr.CodeInternalConfiguration].
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return iderr.New(iderr.CodeInternalConfiguration,
			"googleid: client ID must not be empty")
	}
	if c.IssuerURL == "" {
		c.IssuerURL = IssuerGoogle
	}
	return nil
}

// Verifier validates Google ID tokens. It is safe for concurrent use.
type Verifier struct {
	config Config
	tracer trace.Tracer

	// delegate is built lazily on the first Verify call, because
	// construction runs provider discovery over the network.
	mu       sync.Mutex
	delegate *oidc.IDTokenVerifier

	// now is swappable in tests.
	now func() time.Time
}

// NewVerifier validates cfg and returns a Verifier. Discovery is lazy:
// the first Verify call fetches the provider metadata.
func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &Verifier{
		config: cfg,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}, nil
}

// Verify checks the signature, audience, time claims, and issuer of a
// Google ID token and returns the identity it asserts. All failures map
// to [iderr.CodeAuthenticationAssertion]; the caller cannot fix a bad
// assertion, only re-run the sign-in flow.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	ctx, span := v.tracer.Start(ctx, "googleid.Verify")
	defer span.End()

	if rawToken == "" {
		err := iderr.New(iderr.CodeAuthenticationAssertion,
			"googleid: token must not be empty")
		recordSpanError(span, err)
		return nil, err
	}
	if len(rawToken) > maxTokenSize {
		err := iderr.New(iderr.CodeAuthenticationAssertion,
			"googleid: token exceeds maximum size")
		recordSpanError(span, err)
		return nil, err
	}

	delegate, err := v.idTokenVerifier(ctx)
	if err != nil {
		wrapped := iderr.Wrap(err, iderr.CodeUnavailableDependency,
			"googleid: provider discovery failed")
		recordSpanError(span, wrapped)
		return nil, wrapped
	}

	idToken, err := delegate.Verify(oidc.ClientContext(ctx, v.config.HTTPClient), rawToken)
	if err != nil {
		classified := classifyVerifyError(err)
		recordSpanError(span, classified)
		return nil, classified
	}

	if err := v.checkIssuer(idToken.Issuer); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		wrapped := iderr.Wrap(err, iderr.CodeAuthenticationAssertion,
			"googleid: invalid token claims")
		recordSpanError(span, wrapped)
		return nil, wrapped
	}

	identity, err := identityFromClaims(claims)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("googleid.subject", identity.Subject))
	return identity, nil
}

// idTokenVerifier returns the cached go-oidc verifier or runs provider
// discovery to build it. A failed discovery is retried on the next call.
func (v *Verifier) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.delegate != nil {
		return v.delegate, nil
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, v.config.HTTPClient), v.config.IssuerURL)
	if err != nil {
		return nil, err
	}

	// The issuer check is skipped here and done in checkIssuer, where
	// both of Google's issuer forms are accepted.
	v.delegate = provider.Verifier(&oidc.Config{
		ClientID:             v.config.ClientID,
		SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
		SkipIssuerCheck:      true,
		Now:                  v.now,
	})
	return v.delegate, nil
}

// checkIssuer accepts both issuer forms Google uses. When IssuerURL is
// overridden for tests, only the override is accepted.
func (v *Verifier) checkIssuer(issuer string) error {
	if issuer == "" {
		return iderr.New(iderr.CodeAuthenticationAssertion,
			"googleid: token has no issuer claim")
	}

	if v.config.IssuerURL != IssuerGoogle {
		if issuer != v.config.IssuerURL {
			return iderr.Newf(iderr.CodeAuthenticationAssertion,
				"googleid: unexpected issuer %q", issuer)
		}
		return nil
	}

	if issuer != IssuerGoogle && issuer != issuerGoogleShort {
		return iderr.Newf(iderr.CodeAuthenticationAssertion,
			"googleid: unexpected issuer %q", issuer)
	}
	return nil
}

// identityFromClaims extracts the identity fields. A token without a
// subject cannot identify anyone and is rejected.
func identityFromClaims(claims map[string]any) (*Identity, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, iderr.New(iderr.CodeAuthenticationAssertion,
			"googleid: token has no subject claim")
	}

	identity := &Identity{Subject: sub}
	identity.Email, _ = claims["email"].(string)
	identity.Name, _ = claims["name"].(string)
	identity.Picture, _ = claims["picture"].(string)

	// Google emits email_verified as a bool, but some proxied flows
	// stringify it.
	switch ev := claims["email_verified"].(type) {
	case bool:
		identity.EmailVerified = ev
	case string:
		identity.EmailVerified = ev == "true"
	}

	return identity, nil
}

// classifyVerifyError collapses go-oidc failures into the assertion
// error the login endpoint reports.
func classifyVerifyError(err error) *iderr.Error {
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return iderr.Wrap(err, iderr.CodeAuthenticationAssertion,
			"googleid: token has expired")
	}
	return iderr.Wrap(err, iderr.CodeAuthenticationAssertion,
		"googleid: token verification failed")
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

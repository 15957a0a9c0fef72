// Package session issues and verifies the HS256 bearer tokens that
// authenticate API requests after a successful login. Tokens are
// self-contained: the service keeps no session state, so a token is valid
// until it expires and cannot be revoked earlier.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for this package.
const tracerName = "github.com/whatsub/identity-core/pkg/session"

// maxTokenSize caps the accepted token string length to prevent resource
// exhaustion from oversized inputs.
const maxTokenSize = 8192

// Claims is the verified content of a session token.
type Claims struct {
	// Subject is the account ID the token was issued for.
	Subject string

	// Email is the account's email at issuance time. Informational; the
	// account record is the source of truth.
	Email string

	// Role is the account's role at issuance time.
	Role string

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer creates and verifies session tokens. It is stateless and safe
// for concurrent use.
type Issuer struct {
	config Config
	tracer trace.Tracer

	// now is swappable in tests.
	now func() time.Time
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Issuer{
		config: cfg,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}, nil
}

// TTL returns the configured session lifetime. API handlers report it as
// expires_in alongside a freshly issued token.
func (i *Issuer) TTL() time.Duration {
	return i.config.TTL
}

// Issue signs a new session token for the given account attributes. The
// token carries sub, email, role, iss, iat, and exp claims and expires
// [Issuer.TTL] after issuance.
func (i *Issuer) Issue(ctx context.Context, accountID, email, role string) (string, error) {
	_, span := i.tracer.Start(ctx, "session.Issue")
	defer span.End()

	if accountID == "" {
		err := iderr.New(iderr.CodeValidation, "session: account ID must not be empty")
		recordSpanError(span, err)
		return "", err
	}

	now := i.now()
	claims := jwt.MapClaims{
		"sub":   accountID,
		"email": email,
		"role":  role,
		"iss":   i.config.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(i.config.TTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.config.SigningKey.Value()))
	if err != nil {
		wrapped := iderr.Wrap(err, iderr.CodeInternal, "session: failed to sign token")
		recordSpanError(span, wrapped)
		return "", wrapped
	}

	span.SetAttributes(attribute.String("session.subject", accountID))
	return signed, nil
}

// Verify checks the signature and time claims of a session token and
// returns its content.
//
// jwt.WithValidMethods pins the accepted algorithm to HS256, so a token
// re-signed under an asymmetric algorithm cannot trick the verifier into
// treating the shared key as a public key.
//
// Error codes returned:
//   - [iderr.CodeAuthenticationExpired]: token past its exp claim
//   - [iderr.CodeAuthenticationInvalid]: any other verification failure
func (i *Issuer) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	_, span := i.tracer.Start(ctx, "session.Verify")
	defer span.End()

	if tokenStr == "" {
		err := iderr.New(iderr.CodeAuthenticationInvalid, "session: token must not be empty")
		recordSpanError(span, err)
		return nil, err
	}
	if len(tokenStr) > maxTokenSize {
		err := iderr.New(iderr.CodeAuthenticationInvalid, "session: token exceeds maximum size")
		recordSpanError(span, err)
		return nil, err
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithLeeway(i.config.ClockSkew),
		jwt.WithTimeFunc(i.now),
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(i.config.SigningKey.Value()), nil
	}, parserOpts...)
	if err != nil {
		classified := classifyVerifyError(err)
		recordSpanError(span, classified)
		return nil, classified
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		err := iderr.New(iderr.CodeAuthenticationInvalid, "session: invalid token claims")
		recordSpanError(span, err)
		return nil, err
	}

	claims, err := claimsFromMap(mc)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("session.subject", claims.Subject))
	return claims, nil
}

// claimsFromMap extracts the typed [Claims] from verified map claims.
// A token without a subject cannot identify an account and is rejected.
func claimsFromMap(mc jwt.MapClaims) (*Claims, error) {
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, iderr.New(iderr.CodeAuthenticationMalformed,
			"session: token has no subject claim")
	}

	claims := &Claims{Subject: sub}
	claims.Email, _ = mc["email"].(string)
	claims.Role, _ = mc["role"].(string)

	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

// classifyVerifyError maps golang-jwt errors onto the error taxonomy.
// Expiry is distinguished so clients can prompt a re-login instead of
// treating the token as forged.
func classifyVerifyError(err error) *iderr.Error {
	var idError *iderr.Error
	if errors.As(err, &idError) {
		return idError
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return iderr.Wrap(err, iderr.CodeAuthenticationExpired, "session: token has expired")
	}

	var reason string
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		reason = "token is malformed"
	case errors.Is(err, jwt.ErrSignatureInvalid):
		reason = "token signature is invalid"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		reason = "token is not yet valid"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		reason = "token issuer is invalid"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		reason = "token is unverifiable"
	default:
		reason = "token verification failed"
	}
	return iderr.Wrap(err, iderr.CodeAuthenticationInvalid,
		fmt.Sprintf("session: %s", reason))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Package guard authenticates HTTP and gRPC requests with session tokens
// and enforces self-only access to account resources.
//
// The guard turns a raw Authorization header into a live [account.Account]
// in four steps: parse the bearer scheme, verify the session token, load
// the account the token points at, and attach it to the request context.
// A token whose account has since been deleted is rejected even though its
// signature still verifies.
package guard

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/whatsub/identity-core/pkg/account"
	iderr "github.com/whatsub/identity-core/pkg/errors"
	"github.com/whatsub/identity-core/pkg/session"
)

const tracerName = "github.com/whatsub/identity-core/pkg/guard"

// HeaderAuthorization is the header carrying the bearer token. gRPC
// metadata uses the lowercase form.
const HeaderAuthorization = "Authorization"

// TokenVerifier validates a session token and returns its claims.
// [session.Issuer] is the production implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*session.Claims, error)
}

// Guard authenticates requests and resolves them to stored accounts.
type Guard struct {
	verifier TokenVerifier
	store    account.Store
	tracer   trace.Tracer
}

// New creates a Guard backed by the given verifier and account store.
func New(verifier TokenVerifier, store account.Store) *Guard {
	return &Guard{
		verifier: verifier,
		store:    store,
		tracer:   otel.Tracer(tracerName),
	}
}

// ParseBearer extracts the token from an Authorization header value.
//
// An empty header is reported as a missing credential; a header that is
// not exactly a scheme and a token, or whose scheme is not "bearer" in
// any casing, is reported as malformed.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", iderr.New(iderr.CodeAuthenticationMissing,
			"guard: missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", iderr.New(iderr.CodeAuthenticationMalformed,
			"guard: authorization header must be of the form 'Bearer <token>'")
	}
	return parts[1], nil
}

// Authenticate validates the Authorization header value and returns the
// account the session token belongs to.
func (g *Guard) Authenticate(ctx context.Context, header string) (*account.Account, error) {
	ctx, span := g.tracer.Start(ctx, "guard.Authenticate")
	defer span.End()

	token, err := ParseBearer(header)
	if err != nil {
		return nil, spanError(span, err)
	}

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, spanError(span, err)
	}

	acct, err := g.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if iderr.IsNotFound(err) {
			return nil, spanError(span, iderr.Wrap(err,
				iderr.CodeAuthenticationUnknownAccount,
				"guard: session token refers to an unknown account"))
		}
		return nil, spanError(span, err)
	}

	span.SetAttributes(attribute.String("account.id", acct.ID))
	return acct, nil
}

// RequireSelf checks that the authenticated account is the one identified
// by targetID. Accounts may only act on themselves.
func RequireSelf(acct *account.Account, targetID string) error {
	if acct == nil {
		return iderr.New(iderr.CodeAuthenticationMissing,
			"guard: no authenticated account")
	}
	if acct.ID != targetID {
		return iderr.Newf(iderr.CodeAuthorizationSelfOnly,
			"guard: account %q may not access account %q", acct.ID, targetID)
	}
	return nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

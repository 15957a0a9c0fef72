package account

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for this package.
const tracerName = "github.com/whatsub/identity-core/pkg/account"

// Claims is the verified external identity the resolver consumes. The
// login flow maps the provider's token claims into this shape.
type Claims struct {
	ExternalID    string
	Email         string
	DisplayName   string
	EmailVerified bool
}

// Resolver maps an external identity onto exactly one account. Lookup
// order is external ID first, then email with linking, then creation;
// that ordering guarantees a returning federated user hits the fast path,
// an earlier local signup with the same email gets linked rather than
// duplicated, and only a genuinely new identity creates an account.
type Resolver struct {
	store  Store
	logger *slog.Logger
	tracer trace.Tracer
}

// NewResolver builds a Resolver. logger may be nil, in which case
// slog.Default is used.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// ResolveOrCreate returns the single account for the given claims,
// creating it when no existing account matches. The second return value
// reports whether the account was created by this call.
//
// A concurrent creation for the same identity loses the store's
// uniqueness race; the loser retries the lookup pair exactly once and
// converges on the winner's account. A duplicate-key error that survives
// the retry surfaces as [iderr.CodeConflictAccountCreation].
func (r *Resolver) ResolveOrCreate(ctx context.Context, claims Claims) (*Account, bool, error) {
	ctx, span := r.tracer.Start(ctx, "account.ResolveOrCreate")
	defer span.End()

	// An external identity without an email cannot be resolved: email is
	// the fallback key that keeps one person on one account.
	if NormalizeEmail(claims.Email) == "" {
		err := iderr.New(iderr.CodeValidationMissingEmail,
			"account: external identity has no email")
		spanError(span, err)
		return nil, false, err
	}

	acct, err := r.lookup(ctx, claims)
	if err != nil {
		spanError(span, err)
		return nil, false, err
	}
	if acct != nil {
		span.SetAttributes(
			attribute.String("account.id", acct.ID),
			attribute.Bool("account.created", false),
		)
		return acct, false, nil
	}

	created, err := New(claims.Email, claims.DisplayName, claims.ExternalID)
	if err != nil {
		spanError(span, err)
		return nil, false, err
	}

	acct, err = r.store.Create(ctx, created)
	if err == nil {
		span.SetAttributes(
			attribute.String("account.id", acct.ID),
			attribute.Bool("account.created", true),
		)
		return acct, true, nil
	}
	if !iderr.IsDuplicateKey(err) {
		spanError(span, err)
		return nil, false, err
	}

	// Lost the creation race: a concurrent login persisted the account
	// between our lookups and the insert. Retry the lookup pair once to
	// converge on the winner's record.
	r.logger.WarnContext(ctx, "account creation raced, retrying lookup",
		slog.String("email", NormalizeEmail(claims.Email)))

	acct, retryErr := r.lookup(ctx, claims)
	if retryErr != nil {
		spanError(span, retryErr)
		return nil, false, retryErr
	}
	if acct == nil {
		err := iderr.Wrap(err, iderr.CodeConflictAccountCreation,
			"account: creation failed after duplicate-key retry")
		spanError(span, err)
		return nil, false, err
	}

	span.SetAttributes(
		attribute.String("account.id", acct.ID),
		attribute.Bool("account.created", false),
	)
	return acct, false, nil
}

// lookup runs the external-ID and email branches. It returns (nil, nil)
// when neither matches, and propagates store failures other than not
// found.
func (r *Resolver) lookup(ctx context.Context, claims Claims) (*Account, error) {
	acct, err := r.store.FindByExternalID(ctx, claims.ExternalID)
	if err == nil {
		return acct, nil
	}
	if !iderr.IsNotFound(err) {
		return nil, err
	}

	acct, err = r.store.FindByEmail(ctx, claims.Email)
	if err == nil {
		return r.link(ctx, acct, claims.ExternalID), nil
	}
	if !iderr.IsNotFound(err) {
		return nil, err
	}

	return nil, nil
}

// link binds the external identity to an account found by email. Link
// failures are logged and absorbed: this login still authenticates with
// the unlinked account, and a later login retries the link.
func (r *Resolver) link(ctx context.Context, acct *Account, externalID string) *Account {
	linked, err := r.store.SetExternalID(ctx, acct.ID, externalID)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to link external identity",
			slog.String("account_id", acct.ID),
			slog.String("error", err.Error()))
		return acct
	}
	return linked
}

func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

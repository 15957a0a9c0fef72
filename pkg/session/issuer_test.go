package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

const testSigningKey = Secret("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()

	cfg := DefaultConfig()
	cfg.SigningKey = testSigningKey

	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)
	return issuer
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)
	ctx := context.Background()

	token, err := issuer.Issue(ctx, "acct-1", "alice@example.com", "user")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), claims.ExpiresAt, time.Minute)
}

func TestIssueEmptyAccountID(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)

	_, err := issuer.Issue(context.Background(), "", "alice@example.com", "user")
	require.Error(t, err)
	assert.True(t, iderr.IsValidation(err))
}

func TestVerifyExpiredToken(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SigningKey = testSigningKey
	cfg.ClockSkew = 0

	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)

	issued := time.Now().Add(-2 * DefaultTTL)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue(context.Background(), "acct-1", "a@example.com", "user")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeAuthenticationExpired))
}

func TestVerifyTamperedToken(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)
	ctx := context.Background()

	token, err := issuer.Issue(ctx, "acct-1", "a@example.com", "user")
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, err = issuer.Verify(ctx, tampered)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeAuthenticationInvalid))
}

func TestVerifyWrongKey(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)

	otherCfg := DefaultConfig()
	otherCfg.SigningKey = Secret("ffffffffffffffffffffffffffffffff")
	other, err := NewIssuer(otherCfg)
	require.NoError(t, err)

	token, err := other.Issue(context.Background(), "acct-1", "a@example.com", "user")
	require.NoError(t, err)

	_, err = issuer.Verify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeAuthenticationInvalid))
}

func TestVerifyRejectsNonHMACAlgorithm(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)

	// Unsigned token claiming alg none.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "acct-1",
		"iss": DefaultIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(context.Background(), signed)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeAuthenticationInvalid))
}

func TestVerifyWrongIssuer(t *testing.T) {
	t.Parallel()

	otherCfg := DefaultConfig()
	otherCfg.SigningKey = testSigningKey
	otherCfg.Issuer = "someone-else"
	other, err := NewIssuer(otherCfg)
	require.NoError(t, err)

	token, err := other.Issue(context.Background(), "acct-1", "a@example.com", "user")
	require.NoError(t, err)

	issuer := newTestIssuer(t)
	_, err = issuer.Verify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeAuthenticationInvalid))
}

func TestVerifyMissingSubject(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": DefaultIssuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSigningKey.Value()))
	require.NoError(t, err)

	_, err = issuer.Verify(context.Background(), signed)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeAuthenticationMalformed))
}

func TestVerifyEmptyToken(t *testing.T) {
	t.Parallel()

	issuer := newTestIssuer(t)

	_, err := issuer.Verify(context.Background(), "")
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeAuthenticationInvalid))
}

func TestNewIssuerShortKey(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SigningKey = Secret("too-short")

	_, err := NewIssuer(cfg)
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeInternalConfiguration))
}

func TestTTL(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SigningKey = testSigningKey
	cfg.TTL = 15 * time.Minute

	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, issuer.TTL())
}

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	s := Secret("super-secret-signing-key-value!!")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret-signing-key-value!!", s.Value())

	out, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(out))
}

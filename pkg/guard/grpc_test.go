package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

func incomingContext(token string) context.Context {
	md := metadata.Pairs(metadataAuthorization, "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestUnaryInterceptorAuthenticated(t *testing.T) {
	t.Parallel()

	g, _, acct, token := newTestGuard(t)
	interceptor := UnaryServerInterceptor(g)

	handler := func(ctx context.Context, req any) (any, error) {
		got := MustAccountFromContext(ctx)
		assert.Equal(t, acct.ID, got.ID)
		return "ok", nil
	}

	resp, err := interceptor(incomingContext(token), nil,
		&grpc.UnaryServerInfo{FullMethod: "/identity.v1.Users/Get"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestUnaryInterceptorMissingMetadata(t *testing.T) {
	t.Parallel()

	g, _, _, _ := newTestGuard(t)
	interceptor := UnaryServerInterceptor(g)

	handler := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not be reached")
		return nil, nil
	}

	_, err := interceptor(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: "/identity.v1.Users/Get"}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUnaryInterceptorInvalidToken(t *testing.T) {
	t.Parallel()

	g, _, _, _ := newTestGuard(t)
	interceptor := UnaryServerInterceptor(g)

	handler := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not be reached")
		return nil, nil
	}

	_, err := interceptor(incomingContext("garbage"), nil,
		&grpc.UnaryServerInfo{FullMethod: "/identity.v1.Users/Get"}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeServerStream) Context() context.Context {
	return s.ctx
}

func TestStreamInterceptorAuthenticated(t *testing.T) {
	t.Parallel()

	g, _, acct, token := newTestGuard(t)
	interceptor := StreamServerInterceptor(g)

	handler := func(srv any, ss grpc.ServerStream) error {
		got := MustAccountFromContext(ss.Context())
		assert.Equal(t, acct.ID, got.ID)
		return nil
	}

	err := interceptor(nil, fakeServerStream{ctx: incomingContext(token)},
		&grpc.StreamServerInfo{FullMethod: "/identity.v1.Users/Watch"}, handler)
	require.NoError(t, err)
}

func TestStreamInterceptorRejected(t *testing.T) {
	t.Parallel()

	g, _, _, _ := newTestGuard(t)
	interceptor := StreamServerInterceptor(g)

	handler := func(srv any, ss grpc.ServerStream) error {
		t.Fatal("handler must not be reached")
		return nil
	}

	err := interceptor(nil, fakeServerStream{ctx: context.Background()},
		&grpc.StreamServerInfo{FullMethod: "/identity.v1.Users/Watch"}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPCStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want codes.Code
	}{
		{iderr.New(iderr.CodeAuthenticationExpired, "expired"), codes.Unauthenticated},
		{iderr.New(iderr.CodeAuthorizationSelfOnly, "not yours"), codes.PermissionDenied},
		{iderr.New(iderr.CodeValidationMissingEmail, "no email"), codes.InvalidArgument},
		{iderr.New(iderr.CodeNotFoundAccount, "gone"), codes.NotFound},
		{iderr.New(iderr.CodeRateLimited, "slow down"), codes.ResourceExhausted},
		{iderr.New(iderr.CodeUnavailableDependency, "db down"), codes.Unavailable},
		{iderr.New(iderr.CodeTimeoutDatabase, "slow query"), codes.DeadlineExceeded},
		{iderr.New(iderr.CodeInternalDatabase, "broken"), codes.Internal},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, status.Code(grpcStatus(tc.err)))
	}
}

package guard

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// metadataAuthorization is the incoming metadata key carrying the bearer
// token. gRPC normalizes metadata keys to lowercase.
const metadataAuthorization = "authorization"

// UnaryServerInterceptor returns a gRPC unary interceptor that
// authenticates each request with [Guard.Authenticate] and stores the
// account in the handler context.
//
// Authentication failures map to Unauthenticated, authorization failures
// to PermissionDenied.
func UnaryServerInterceptor(g *Guard) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, g)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns the stream counterpart of
// [UnaryServerInterceptor]. The stream is wrapped so the handler sees the
// enriched context.
func StreamServerInterceptor(g *Guard) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), g)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func authenticateGRPC(ctx context.Context, g *Guard) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(metadataAuthorization); len(values) > 0 {
			header = values[0]
		}
	}

	acct, err := g.Authenticate(ctx, header)
	if err != nil {
		return ctx, grpcStatus(err)
	}
	return ContextWithAccount(ctx, acct), nil
}

// grpcStatus converts a structured error into a gRPC status error,
// keeping the stable error code visible in the message.
func grpcStatus(err error) error {
	e, ok := iderr.AsError(err)
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}

	var code codes.Code
	switch e.Code.Category() {
	case "AUTH":
		code = codes.Unauthenticated
	case "AUTHZ":
		code = codes.PermissionDenied
	case "VAL":
		code = codes.InvalidArgument
	case "NF":
		code = codes.NotFound
	case "RATE":
		code = codes.ResourceExhausted
	case "UNAVAIL":
		code = codes.Unavailable
	case "TIMEOUT":
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Errorf(code, "%s: %s", e.Code, e.Message)
}

// wrappedServerStream overrides Context so stream handlers see the
// account stored by the interceptor.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// Package api exposes the identity service over HTTP: federated login,
// the current-account endpoint, self-service account management, health,
// and metrics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whatsub/identity-core/pkg/account"
	iderr "github.com/whatsub/identity-core/pkg/errors"
	"github.com/whatsub/identity-core/pkg/googleid"
	"github.com/whatsub/identity-core/pkg/guard"
	"github.com/whatsub/identity-core/pkg/ratelimit"
	"github.com/whatsub/identity-core/pkg/session"
)

// AssertionVerifier validates an external identity assertion.
// [googleid.Verifier] is the production implementation.
type AssertionVerifier interface {
	Verify(ctx context.Context, rawToken string) (*googleid.Identity, error)
}

// Deps carries the server's collaborators. Verifier, Resolver, Sessions,
// and Store are required; Limiter is optional (nil disables rate
// limiting); nil Logger falls back to [slog.Default] and nil Metrics to a
// fresh registry.
type Deps struct {
	Verifier AssertionVerifier
	Resolver *account.Resolver
	Sessions *session.Issuer
	Store    account.Store
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Server is the HTTP front of the identity service.
type Server struct {
	config   Config
	router   *mux.Router
	server   *http.Server
	logger   *slog.Logger
	metrics  *Metrics
	verifier AssertionVerifier
	resolver *account.Resolver
	sessions *session.Issuer
	store    account.Store
	guard    *guard.Guard
	limiter  *ratelimit.Limiter
}

// New creates a Server and registers its routes.
func New(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Verifier == nil || deps.Resolver == nil || deps.Sessions == nil || deps.Store == nil {
		return nil, iderr.New(iderr.CodeInternalConfiguration,
			"api: verifier, resolver, sessions, and store are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}

	s := &Server{
		config:   cfg,
		router:   mux.NewRouter(),
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		verifier: deps.Verifier,
		resolver: deps.Resolver,
		sessions: deps.Sessions,
		store:    deps.Store,
		guard:    guard.New(deps.Sessions, deps.Store),
		limiter:  deps.Limiter,
	}
	s.routes()

	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(requestLogging(s.logger), s.instrumentation)

	s.router.HandleFunc("/auth/google", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/users", s.handleSignup).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/health/db", s.handleHealthDB).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(
		s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.router.Handle("/auth/me",
		s.authenticated(s.handleMe)).Methods(http.MethodGet)
	s.router.Handle("/users/{id}",
		s.authenticated(s.handleGetUser)).Methods(http.MethodGet)
	s.router.Handle("/users/{id}",
		s.authenticated(s.handleUpdateUser)).Methods(http.MethodPatch)
	s.router.Handle("/users/{id}",
		s.authenticated(s.handleDeleteUser)).Methods(http.MethodDelete)
}

// authenticated wraps a handler with bearer authentication, recording
// every rejection by its stable code.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, err := s.guard.Authenticate(r.Context(), r.Header.Get(guard.HeaderAuthorization))
		if err != nil {
			s.metrics.authRejections.WithLabelValues(string(iderr.GetCode(err))).Inc()
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(guard.ContextWithAccount(r.Context(), acct)))
	})
}

// Handler exposes the routed handler, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then drains in-flight requests for at
// most the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.config.Addr())
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return iderr.Wrap(err, iderr.CodeInternal, "api: shutdown did not complete")
	}
	return nil
}

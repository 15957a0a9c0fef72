package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/whatsub/identity-core/pkg/account"
	iderr "github.com/whatsub/identity-core/pkg/errors"
	"github.com/whatsub/identity-core/pkg/guard"
)

// maxRequestBody bounds login and update payloads. ID tokens run a few
// kilobytes; anything near the limit is garbage.
const maxRequestBody = 64 * 1024

type loginRequest struct {
	IDToken string `json:"id_token"`
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type loginResponse struct {
	User      *account.Account `json:"user"`
	Token     tokenPayload     `json:"token"`
	IsNewUser bool             `json:"is_new_user"`
}

type signupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"primary_phone"`
	Password string `json:"password"`
}

type updateRequest struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"full_name"`
	Phone       *string `json:"primary_phone"`
}

func (s *Server) decode(r *http.Request, into any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(into); err != nil {
		return iderr.Wrap(err, iderr.CodeValidation,
			"request body is not valid JSON")
	}
	return nil
}

// handleLogin exchanges a Google ID token for a session token, creating
// the account on first login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, clientKey(r)); err != nil {
			s.metrics.loginAttempts.WithLabelValues("rate_limited").Inc()
			s.writeError(w, r, err)
			return
		}
	}

	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.metrics.loginAttempts.WithLabelValues("rejected").Inc()
		s.writeError(w, r, err)
		return
	}
	if req.IDToken == "" {
		s.metrics.loginAttempts.WithLabelValues("rejected").Inc()
		s.writeError(w, r, iderr.New(iderr.CodeValidationRequired,
			"id_token is required"))
		return
	}

	identity, err := s.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		s.metrics.loginAttempts.WithLabelValues(loginOutcome(err)).Inc()
		s.writeError(w, r, err)
		return
	}

	acct, isNew, err := s.resolver.ResolveOrCreate(ctx, account.Claims{
		ExternalID:    identity.Subject,
		Email:         identity.Email,
		DisplayName:   identity.Name,
		EmailVerified: identity.EmailVerified,
	})
	if err != nil {
		s.metrics.loginAttempts.WithLabelValues(loginOutcome(err)).Inc()
		s.writeError(w, r, err)
		return
	}

	token, err := s.sessions.Issue(ctx, acct.ID, acct.Email, string(acct.Role))
	if err != nil {
		s.metrics.loginAttempts.WithLabelValues("error").Inc()
		s.writeError(w, r, err)
		return
	}

	s.metrics.loginAttempts.WithLabelValues("success").Inc()
	if isNew {
		s.metrics.accountsCreated.Inc()
		s.logger.InfoContext(ctx, "account created via federated login",
			"account_id", acct.ID)
	}

	s.writeJSON(w, http.StatusOK, loginResponse{
		User: acct,
		Token: tokenPayload{
			AccessToken: token,
			TokenType:   "bearer",
			ExpiresIn:   int(s.sessions.TTL().Seconds()),
		},
		IsNewUser: isNew,
	})
}

// loginOutcome buckets a login failure for metrics: client rejections
// versus dependency faults.
func loginOutcome(err error) string {
	if e, ok := iderr.AsError(err); ok && e.HTTPStatus() < http.StatusInternalServerError {
		return "rejected"
	}
	return "error"
}

// minPasswordLength applies to local signup.
const minPasswordLength = 8

// handleSignup registers a local account. The password is validated and
// discarded: no credential is stored, and a later federated login with
// the same email links its external identity to this account.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	email := account.NormalizeEmail(req.Email)
	switch {
	case email == "":
		s.writeError(w, r, iderr.New(iderr.CodeValidationRequired,
			"email is required"))
		return
	case !strings.Contains(email, "@"):
		s.writeError(w, r, iderr.New(iderr.CodeValidationFormat,
			"email has an invalid format"))
		return
	case req.Password == "":
		s.writeError(w, r, iderr.New(iderr.CodeValidationRequired,
			"password is required"))
		return
	case len(req.Password) < minPasswordLength:
		s.writeError(w, r, iderr.Newf(iderr.CodeValidationFormat,
			"password must be at least %d characters", minPasswordLength))
		return
	}

	acct, err := account.New(email, req.FullName, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	acct.Phone = req.Phone

	created, err := s.store.Create(r.Context(), acct)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.accountsCreated.Inc()
	s.logger.InfoContext(r.Context(), "account created via signup",
		"account_id", created.ID)
	s.writeJSON(w, http.StatusCreated, created)
}

// handleMe returns the account behind the presented session token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, guard.MustAccountFromContext(r.Context()))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	acct := guard.MustAccountFromContext(r.Context())
	if err := guard.RequireSelf(acct, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	acct := guard.MustAccountFromContext(r.Context())
	if err := guard.RequireSelf(acct, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req updateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.store.Update(r.Context(), acct.ID, account.Update{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	acct := guard.MustAccountFromContext(r.Context())
	if err := guard.RequireSelf(acct, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), acct.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(r.Context()); err != nil {
		s.writeError(w, r, iderr.Wrap(err, iderr.CodeUnavailableDependency,
			"account store is unreachable"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package guard

import (
	"encoding/json"
	"net/http"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// Middleware returns an HTTP middleware that authenticates every request
// with [Guard.Authenticate] and stores the resulting account in the
// request context for [AccountFromContext].
//
// Failures are answered with the error's HTTP status and a JSON body of
// the form {"error": {"code": "...", "message": "..."}}.
//
// Example:
//
//	protected := guard.Middleware(g)(usersHandler)
func Middleware(g *Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, err := g.Authenticate(r.Context(), r.Header.Get(HeaderAuthorization))
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), acct)))
		})
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes err as a JSON error response using the error's HTTP
// status. Non-structured errors are reported as internal.
func WriteError(w http.ResponseWriter, err error) {
	e, ok := iderr.AsError(err)
	if !ok {
		e = iderr.Wrap(err, iderr.CodeInternal, "internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{Code: string(e.Code), Message: e.Message},
	})
}

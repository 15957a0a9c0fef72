// Package errors defines the structured error model shared by every package
// in identity-core. An [*Error] carries a stable machine-readable [Code], a
// human-readable message, an optional cause, and optional structured details.
//
// Codes are grouped into categories that map one-to-one onto HTTP status
// classes, so the transport layer can translate any internal error into an
// API response without inspecting messages. The authentication and
// authorization categories carry the outcomes of the login and access-guard
// paths; conflict codes carry store uniqueness violations.
package errors

// Code is a stable, machine-readable error identifier of the form
// CATEGORY_NNN. Once assigned, a code never changes meaning; clients and
// dashboards may key on it.
type Code string

// Categories and the HTTP status class they translate to:
//
//	VAL_xxx     - input validation          (400)
//	AUTH_xxx    - authentication            (401)
//	AUTHZ_xxx   - authorization             (403)
//	NF_xxx      - not found                 (404)
//	CONF_xxx    - state conflict            (409)
//	RATE_xxx    - rate limited              (429)
//	INT_xxx     - internal fault            (500)
//	UNAVAIL_xxx - dependency unavailable    (503)
//	TIMEOUT_xxx - deadline exceeded         (504)
const (
	// CodeValidation is a general request validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is absent.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field value has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeValidationMissingEmail indicates an external identity assertion
	// carried no email claim. An identity without a verifiable email cannot
	// be resolved to an account.
	CodeValidationMissingEmail Code = "VAL_004"

	// CodeAuthentication is a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the presented session token has
	// passed its expiry.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates the presented token is malformed,
	// carries an invalid signature, or fails a claim check.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// CodeAuthenticationAssertion indicates the external identity assertion
	// (the provider-issued ID token) was rejected: bad signature, wrong
	// issuer or audience, or expired.
	CodeAuthenticationAssertion Code = "AUTH_004"

	// CodeAuthenticationMissing indicates no credential was presented where
	// one is required.
	CodeAuthenticationMissing Code = "AUTH_005"

	// CodeAuthenticationMalformed indicates a credential was presented but
	// could not be parsed: a non-bearer authorization header, or a verified
	// token missing its subject.
	CodeAuthenticationMalformed Code = "AUTH_006"

	// CodeAuthenticationUnknownAccount indicates a verified session token
	// references an account that no longer exists. An orphaned token is
	// never treated as authenticated.
	CodeAuthenticationUnknownAccount Code = "AUTH_007"

	// CodeAuthorization is a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationSelfOnly indicates an authenticated caller targeted
	// an account other than its own.
	CodeAuthorizationSelfOnly Code = "AUTHZ_002"

	// CodeNotFound is a general not-found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundAccount indicates the requested account does not exist.
	CodeNotFoundAccount Code = "NF_002"

	// CodeConflict is a general state conflict.
	CodeConflict Code = "CONF_001"

	// CodeConflictDuplicateKey indicates a store write violated a
	// uniqueness constraint on email or external identity id.
	CodeConflictDuplicateKey Code = "CONF_002"

	// CodeConflictAccountCreation indicates account creation failed even
	// after the post-race lookup retry.
	CodeConflictAccountCreation Code = "CONF_003"

	// CodeRateLimited indicates the caller exceeded the login attempt
	// budget for the current window.
	CodeRateLimited Code = "RATE_001"

	// CodeInternal is a general internal fault.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a store operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates invalid or missing process
	// configuration. This is fatal at startup and never a per-request
	// outcome.
	CodeInternalConfiguration Code = "INT_003"

	// CodeUnavailable is a general service-unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a backing dependency (database,
	// cache, identity provider) could not be reached.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// CodeTimeout is a general timeout.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a store operation exceeded its
	// deadline or was cancelled.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// String returns the code as a plain string.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore (e.g. "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}

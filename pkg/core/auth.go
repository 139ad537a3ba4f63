package core

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AuthType selects how the HTTP transport authenticates callers.
type AuthType string

// Supported authentication schemes
const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
)

// ParseAuthType validates a --http-auth-type value. Empty means none.
func ParseAuthType(s string) (AuthType, error) {
	switch t := AuthType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", AuthNone:
		return AuthNone, nil
	case AuthBearer, AuthBasic:
		return t, nil
	default:
		return "", NewError(ErrInvalidParameter, fmt.Sprintf("unknown auth type %q", s)).
			WithSuggestions(string(AuthNone), string(AuthBearer), string(AuthBasic))
	}
}

// SecureCompareString compares in constant time for equal-length inputs.
func SecureCompareString(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

var weakTokens = []string{
	"password", "secret", "token", "admin", "test", "default",
	"12345", "changeme", "letmein", "ecotrip",
}

// ValidateAuthToken rejects credentials that are empty, short or obviously
// guessable. Basic credentials must be in user:password form.
func ValidateAuthToken(authType AuthType, token string) error {
	if authType == AuthNone {
		return nil
	}
	if token == "" {
		return NewError(ErrMissingParameter, "Authentication token cannot be empty").
			WithGuidance("Set --http-auth-token or ECOTRIP_HTTP_AUTH_TOKEN.")
	}
	if authType == AuthBasic && !strings.Contains(token, ":") {
		return NewError(ErrInvalidParameter, "Basic auth credentials must look like user:password")
	}
	if len(token) < 16 {
		return NewError(ErrInvalidParameter, "Authentication token is too short").
			WithGuidance("Use a token with at least 16 characters.")
	}

	lower := strings.ToLower(token)
	for _, weak := range weakTokens {
		if strings.Contains(lower, weak) {
			return NewError(ErrInvalidParameter, "Authentication token appears to be weak").
				WithGuidance("Use a randomly generated token, e.g. `openssl rand -hex 32`.")
		}
	}
	return nil
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Authorized bool
	Error      string
	Duration   time.Duration
}

func authResult(start time.Time, errMsg string) AuthResult {
	return AuthResult{
		Authorized: errMsg == "",
		Error:      errMsg,
		Duration:   time.Since(start),
	}
}

// AuthenticateBearer checks an Authorization header against expectedToken.
func AuthenticateBearer(authHeader, expectedToken string) AuthResult {
	start := time.Now()

	if authHeader == "" {
		return authResult(start, "Missing Authorization header")
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return authResult(start, "Invalid Authorization header format")
	}
	if !SecureCompareString(strings.TrimSpace(token), expectedToken) {
		return authResult(start, "Invalid bearer token")
	}
	return authResult(start, "")
}

// AuthenticateBasic checks basic credentials against expected user:password.
func AuthenticateBasic(username, password, expectedCredentials string) AuthResult {
	start := time.Now()

	if username == "" || password == "" {
		return authResult(start, "Missing basic auth credentials")
	}
	if !SecureCompareString(username+":"+password, expectedCredentials) {
		return authResult(start, "Invalid basic auth credentials")
	}
	return authResult(start, "")
}

// AuthenticateRequest applies authType to r.
func AuthenticateRequest(r *http.Request, authType AuthType, expected string) AuthResult {
	switch authType {
	case AuthNone:
		return AuthResult{Authorized: true}
	case AuthBearer:
		return AuthenticateBearer(r.Header.Get("Authorization"), expected)
	case AuthBasic:
		username, password, ok := r.BasicAuth()
		if !ok {
			return authResult(time.Now(), "Missing basic auth credentials")
		}
		return AuthenticateBasic(username, password, expected)
	default:
		return authResult(time.Now(), "Unknown auth type")
	}
}

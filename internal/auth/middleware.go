package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/quotefault/internal/logging"
	"github.com/sakif/quotefault/internal/model"
)

// contextKey is unexported so only this package can read or write the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// Authenticator is the identity middleware.
//
// SECURITY TOGGLE:
// With securityEnabled false every authenticated caller is privileged. A
// token is still required: the username is needed to attribute writes.
type Authenticator struct {
	tokens          *TokenService
	securityEnabled bool
}

func NewAuthenticator(tokens *TokenService, securityEnabled bool) *Authenticator {
	return &Authenticator{tokens: tokens, securityEnabled: securityEnabled}
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the caller's Identity in the context otherwise.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}
		id, err := a.tokens.Validate(raw)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		ctx = logging.With(ctx, slog.String("user", id.Username))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePrivileged allows only privileged callers. It must run after
// RequireAuth.
func (a *Authenticator) RequirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, ok := a.Viewer(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}
		if !viewer.Privileged {
			writeAuthError(w, http.StatusForbidden, "forbidden", "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Viewer returns the caller as a model.Viewer, applying the security toggle.
func (a *Authenticator) Viewer(ctx context.Context) (model.Viewer, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return model.Viewer{}, false
	}
	return model.Viewer{
		Username:   id.Username,
		Privileged: id.Admin || !a.securityEnabled,
	}, true
}

// IdentityFromContext returns the identity stored by RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.Username != ""
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

var errNoBearer = errors.New("auth: no bearer token")

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// "token" cookie used by browser sessions.
func bearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errNoBearer
		}
		return strings.TrimSpace(token), nil
	}
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errNoBearer
}

func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + kind + `","message":"` + message + `"}`))
}

package handlers

import (
	"net/http"
	"strings"

	"iris-api/apperr"
	"iris-api/identity"
)

// RequireAuth verifies the bearer token and puts the caller's identity in
// the request context.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, r, apperr.New(apperr.CodeUnauthenticated, "missing bearer token"))
			return
		}
		id, err := h.Verifier.Verify(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// caller returns the identity RequireAuth stored.
func caller(r *http.Request) (identity.Identity, error) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		return identity.Identity{}, apperr.New(apperr.CodeUnauthenticated, "request is not authenticated")
	}
	return id, nil
}

package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"DecorStore/pkg/kit"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Middleware resolves the bearer token, if any, and stores the Identity on
// the request context. A token that does not authenticate is rejected even
// on public routes.
func Middleware(a Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			tok, ok := kit.BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				kit.WriteError(w, r, http.StatusUnauthorized, "malformed authorization header", nil)
				return
			}

			id, err := a.Authenticate(r.Context(), tok)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				kit.WriteAppError(w, r, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			kit.WriteError(w, r, http.StatusUnauthorized, "not authenticated", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFromContext(r.Context())
		if !id.IsAdmin() {
			kit.WriteError(w, r, http.StatusForbidden, "admin privileges required", nil)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"deja/internal/ports/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

const DebugUserHeader = "X-Debug-User-ID"

// AuthContext:
// - verifier == nil => modo dev: X-Debug-User-ID define el usuario.
// - verifier != nil => Bearer token verificado; si falla, el request sigue sin claims.
// Cada handler decide si exige auth (401).
func AuthContext(verifier auth.AuthVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				if uid := strings.TrimSpace(r.Header.Get(DebugUserHeader)); uid != "" {
					next.ServeHTTP(w, withUser(r, auth.Claims{UserID: uid}))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("token rejected")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, withUser(r, claims))
		})
	}
}

// withUser guarda los claims y suma user_id al logger del request.
func withUser(r *http.Request, c auth.Claims) *http.Request {
	uid := strings.TrimSpace(c.UserID)
	zerolog.Ctx(r.Context()).UpdateContext(func(zc zerolog.Context) zerolog.Context {
		return zc.Str("user_id", uid)
	})
	return r.WithContext(WithClaims(r.Context(), c))
}

func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

// UserID devuelve el usuario autenticado o "" si no hay claims.
func UserID(ctx context.Context) string {
	c, ok := GetClaims(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(c.UserID)
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

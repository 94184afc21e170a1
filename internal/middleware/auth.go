package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Housri/steam-auth-public/internal/auth"
	"github.com/Housri/steam-auth-public/internal/logger"
	"github.com/Housri/steam-auth-public/internal/session"
	"github.com/Housri/steam-auth-public/internal/user"
)

// unexported, collision-proof context key
type userContextKeyType struct{}

var userKey = userContextKeyType{}

// UserFromContext extracts the authenticated user record from context.
func UserFromContext(ctx context.Context) (*user.Record, bool) {
	rec, ok := ctx.Value(userKey).(*user.Record)
	return rec, ok && rec != nil
}

// WithUser returns a copy of ctx carrying rec.
func WithUser(ctx context.Context, rec *user.Record) context.Context {
	return context.WithValue(ctx, userKey, rec)
}

// SessionResolver is the part of session.Manager the middleware needs.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*user.Record, error)
}

type AuthMiddleware struct {
	Sessions    SessionResolver
	Cookie      session.CookieOptions
	LandingPath string
}

func NewAuthMiddleware(sessions SessionResolver, cookie session.CookieOptions) *AuthMiddleware {
	return &AuthMiddleware{
		Sessions:    sessions,
		Cookie:      cookie,
		LandingPath: "/",
	}
}

// resolve returns the user for the request, clearing a cookie that no
// longer resolves. It never fails the request itself.
func (a *AuthMiddleware) resolve(w http.ResponseWriter, r *http.Request) (*user.Record, bool) {
	token := session.TokenFromRequest(r, a.Cookie)
	if token == "" {
		return nil, false
	}

	rec, err := a.Sessions.Resolve(r.Context(), token)
	if err != nil || rec == nil {
		if err != nil && !errors.Is(err, auth.ErrUnauthenticated) {
			logger.Warn("session resolve failed", map[string]any{
				"error": err.Error(),
			})
		}
		session.ClearCookie(w, a.Cookie)
		return nil, false
	}
	return rec, true
}

// Authenticate attaches the user to the request context when the session
// is valid and lets every request through.
func (a *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := a.resolve(w, r); ok {
			r = r.WithContext(WithUser(r.Context(), rec))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects unauthenticated requests to the landing page.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := a.resolve(w, r)
		if !ok {
			http.Redirect(w, r, a.LandingPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), rec)))
	})
}

// RequireAuthAPI answers 401 instead of redirecting.
func (a *AuthMiddleware) RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := a.resolve(w, r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), rec)))
	})
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextUserKey is the gin.Context key holding the *user.Record.
const ContextUserKey = "user"

// Gin adapts a net/http auth middleware (Authenticate, RequireAuth,
// RequireAuthAPI) to Gin. The resolved user is mirrored into the Gin
// context under ContextUserKey.
func Gin(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		reached := false

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			c.Request = r
			if rec, ok := UserFromContext(r.Context()); ok {
				c.Set(ContextUserKey, rec)
			}
			c.Next()
		})

		mw(next).ServeHTTP(c.Writer, c.Request)

		// middleware answered on its own (redirect or 401)
		if !reached {
			c.Abort()
		}
	}
}

// GinRequireAuth is the Gin form of RequireAuth.
func GinRequireAuth(a *AuthMiddleware) gin.HandlerFunc {
	return Gin(a.RequireAuth)
}

// GinRequireAuthAPI is the Gin form of RequireAuthAPI.
func GinRequireAuthAPI(a *AuthMiddleware) gin.HandlerFunc {
	return Gin(a.RequireAuthAPI)
}

// GinAuthenticate is the Gin form of Authenticate.
func GinAuthenticate(a *AuthMiddleware) gin.HandlerFunc {
	return Gin(a.Authenticate)
}

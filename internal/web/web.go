package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Housri/steam-auth-public/internal/middleware"
	"github.com/Housri/steam-auth-public/internal/user"
)

// DefaultAvatar is shown when the provider published no large avatar.
const DefaultAvatar = "/static/default-avatar.png"

const timeLayout = "2006-01-02 15:04 MST"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Options struct {
	LoginPath     string // e.g. /auth/steam
	ProviderLabel string // shown on the login link
	Production    bool   // hides failure reasons on the error page
}

type profileView struct {
	DisplayName  string
	ExternalID   string
	ProfileURL   string
	AvatarSmall  string
	AvatarMedium string
	AvatarLarge  string
	CreatedAt    string
	LastLoginAt  string
}

func newProfileView(rec *user.Record) profileView {
	v := profileView{
		DisplayName:  rec.DisplayName,
		ExternalID:   rec.ExternalID,
		ProfileURL:   rec.ProfileURL,
		AvatarSmall:  rec.Avatar.Small,
		AvatarMedium: rec.Avatar.Medium,
		AvatarLarge:  rec.Avatar.Large,
		CreatedAt:    rec.CreatedAt.UTC().Format(timeLayout),
		LastLoginAt:  rec.LastLoginAt.UTC().Format(timeLayout),
	}
	if v.AvatarLarge == "" {
		v.AvatarLarge = DefaultAvatar
	}
	return v
}

// Register installs the templates, static assets and page routes on r.
func Register(r *gin.Engine, auth *middleware.AuthMiddleware, opts Options) error {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("web: parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("web: static assets: %w", err)
	}
	r.StaticFS("/static", http.FS(static))

	r.GET("/", middleware.GinAuthenticate(auth), func(c *gin.Context) {
		rec, _ := currentUser(c)
		c.HTML(http.StatusOK, "index.html", gin.H{
			"User":          rec,
			"LoginPath":     opts.LoginPath,
			"ProviderLabel": opts.ProviderLabel,
		})
	})

	r.GET("/profile", middleware.GinRequireAuth(auth), func(c *gin.Context) {
		rec, ok := currentUser(c)
		if !ok {
			c.Redirect(http.StatusFound, "/")
			return
		}
		c.HTML(http.StatusOK, "profile.html", newProfileView(rec))
	})

	r.GET("/error", func(c *gin.Context) {
		reason := ""
		if !opts.Production {
			reason = c.Query("reason")
		}
		c.HTML(http.StatusUnauthorized, "error.html", gin.H{"Reason": reason})
	})

	r.GET("/api/me", middleware.GinRequireAuthAPI(auth), func(c *gin.Context) {
		rec, ok := currentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	return nil
}

func currentUser(c *gin.Context) (*user.Record, bool) {
	v, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	rec, ok := v.(*user.Record)
	return rec, ok && rec != nil
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Housri/steam-auth-public/internal/auth/provider"
	"github.com/Housri/steam-auth-public/internal/auth/reconciler"
	"github.com/Housri/steam-auth-public/internal/logger"
	"github.com/Housri/steam-auth-public/internal/metrics"
	"github.com/Housri/steam-auth-public/internal/session"
	"github.com/Housri/steam-auth-public/internal/user"
)

const revertTimeout = 5 * time.Second

// SessionManager is the part of session.Manager the login flow uses.
type SessionManager interface {
	Establish(ctx context.Context, rec *user.Record) (*session.Issued, error)
	Invalidate(ctx context.Context, token string) error
}

type Options struct {
	Cookie       session.CookieOptions
	LoginTimeout time.Duration

	// Production hides failure reasons from the error redirect and marks
	// flow cookies Secure.
	Production bool

	SuccessPath string
	ErrorPath   string
	LandingPath string
}

func (o Options) withDefaults() Options {
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = 15 * time.Second
	}
	if o.SuccessPath == "" {
		o.SuccessPath = "/profile"
	}
	if o.ErrorPath == "" {
		o.ErrorPath = "/error"
	}
	if o.LandingPath == "" {
		o.LandingPath = "/"
	}
	return o
}

type Handler struct {
	providers  *provider.Registry
	sessions   SessionManager
	reconciler reconciler.Reconciler
	metrics    *metrics.Metrics
	opts       Options
}

func NewHandler(
	registry *provider.Registry,
	sessions SessionManager,
	reconciler reconciler.Reconciler,
	m *metrics.Metrics,
	opts Options,
) *Handler {
	return &Handler{
		providers:  registry,
		sessions:   sessions,
		reconciler: reconciler,
		metrics:    m,
		opts:       opts.withDefaults(),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/auth/:provider", h.login)
	r.GET("/auth/:provider/return", h.callback)
	r.POST("/auth/logout", h.Logout)
	r.GET("/logout", h.Logout)
}

func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown auth provider",
		})
		return
	}

	state, err := h.generateState(c)
	if err != nil {
		h.fail(c, providerName, "internal", err, time.Now())
		return
	}
	_, codeChallenge, err := h.generatePKCE(c)
	if err != nil {
		h.fail(c, providerName, "internal", err, time.Now())
		return
	}

	authURL, err := p.BeginAuth(c.Request.Context(), provider.AuthRequest{
		State:         state,
		CodeChallenge: codeChallenge,
	})
	if err != nil {
		h.fail(c, providerName, "internal", err, time.Now())
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// callback runs verify, reconcile and establish strictly in order. A
// failure at any step ends at the error view with no session set.
func (h *Handler) callback(c *gin.Context) {
	started := time.Now()
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown auth provider",
		})
		return
	}

	// flow cookies are single use, whatever the outcome
	stateOK := validateState(c)
	codeVerifier := getPKCEVerifier(c)
	h.clearFlowCookies(c)

	if !stateOK {
		h.fail(c, providerName, "invalid_state", errors.New("state mismatch"), started)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.LoginTimeout)
	defer cancel()

	// 1. Verify with the provider
	assertion, err := p.CompleteAuth(ctx, provider.Callback{
		Params:       c.Request.URL.Query(),
		CodeVerifier: codeVerifier,
	})
	if err != nil {
		h.fail(c, providerName, "verification_failed", err, started)
		return
	}

	// 2. Map to the local user
	res, err := h.reconciler.Reconcile(ctx, assertion)
	if err != nil {
		h.fail(c, providerName, "store_unavailable", err, started)
		return
	}

	// 3. Establish the session
	issued, err := h.sessions.Establish(ctx, res.User)
	if err != nil {
		h.revert(c.Request.Context(), res)
		h.fail(c, providerName, "session_failed", err, started)
		return
	}

	session.SetCookie(c.Writer, issued.Token, issued.ExpiresAt, h.opts.Cookie)

	h.metrics.Login(providerName, "success", started)
	logger.Info("login succeeded", map[string]any{
		"provider":    providerName,
		"external_id": res.User.ExternalID,
		"local_id":    res.User.LocalID,
		"created":     res.Created,
		"ip":          c.ClientIP(),
	})

	c.Redirect(http.StatusFound, h.opts.SuccessPath)
}

// revert removes a user created by this login when no session could be
// established for it.
func (h *Handler) revert(parent context.Context, res *reconciler.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), revertTimeout)
	defer cancel()

	if err := h.reconciler.Revert(ctx, res); err != nil {
		logger.Error("failed to revert user creation", map[string]any{
			"external_id": res.User.ExternalID,
			"error":       err.Error(),
		})
	}
}

func (h *Handler) fail(c *gin.Context, providerName, reason string, err error, started time.Time) {
	h.metrics.Login(providerName, reason, started)
	logger.Warn("login failed", map[string]any{
		"provider": providerName,
		"reason":   reason,
		"error":    err.Error(),
		"ip":       c.ClientIP(),
	})

	target := h.opts.ErrorPath
	if !h.opts.Production {
		target += "?" + url.Values{"reason": {reason}}.Encode()
	}
	c.Redirect(http.StatusFound, target)
}

// Logout invalidates the session and clears the cookie. It is idempotent.
func (h *Handler) Logout(c *gin.Context) {
	if token := session.TokenFromRequest(c.Request, h.opts.Cookie); token != "" {
		if err := h.sessions.Invalidate(c.Request.Context(), token); err != nil {
			logger.Error("session invalidation failed", map[string]any{
				"error": err.Error(),
				"ip":    c.ClientIP(),
			})
		}
	}

	session.ClearCookie(c.Writer, h.opts.Cookie)

	status := http.StatusFound
	if c.Request.Method != http.MethodGet {
		status = http.StatusSeeOther
	}
	c.Redirect(status, h.opts.LandingPath)
}

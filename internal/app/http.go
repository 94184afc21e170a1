package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Housri/steam-auth-public/internal/auth/handler"
	"github.com/Housri/steam-auth-public/internal/auth/provider"
	"github.com/Housri/steam-auth-public/internal/auth/provider/oidc"
	"github.com/Housri/steam-auth-public/internal/auth/provider/steam"
	"github.com/Housri/steam-auth-public/internal/auth/reconciler"
	"github.com/Housri/steam-auth-public/internal/config"
	"github.com/Housri/steam-auth-public/internal/metrics"
	"github.com/Housri/steam-auth-public/internal/middleware"
	"github.com/Housri/steam-auth-public/internal/session"
	"github.com/Housri/steam-auth-public/internal/web"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	router, err := buildRouter(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	return router, infra.Close, nil
}

func buildRouter(ctx context.Context, cfg config.Config, infra *Infra) (*gin.Engine, error) {

	// ----------------------------
	// Dependencies
	// ----------------------------

	m := metrics.New()
	users := infra.DB.Users()

	idp, err := newProvider(ctx, cfg, infra.Redis.Client)
	if err != nil {
		return nil, err
	}
	registry := provider.NewRegistry(idp)

	sessions, err := session.NewManager(
		session.NewRedisStore(infra.Redis.Client),
		users,
		session.Config{
			Secret:      []byte(cfg.SessionSecret),
			IdleTTL:     cfg.SessionIdleTTL,
			AbsoluteTTL: cfg.SessionAbsoluteTTL,
		},
		session.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	identities := reconciler.NewStoreReconciler(users, reconciler.WithMetrics(m))

	cookie := session.DefaultCookieOptions(cfg.Production)

	authHandler := handler.NewHandler(
		registry,
		sessions,
		identities,
		m,
		handler.Options{
			Cookie:       cookie,
			LoginTimeout: cfg.LoginTimeout,
			Production:   cfg.Production,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(sessions, cookie)

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(m.Handler()))

	// ----------------------------
	// Pages and API
	// ----------------------------

	err = web.Register(router, authMiddleware, web.Options{
		LoginPath:     "/auth/" + idp.Name(),
		ProviderLabel: providerLabel(idp.Name()),
		Production:    cfg.Production,
	})
	if err != nil {
		return nil, err
	}

	return router, nil
}

// newProvider builds the single configured identity provider.
func newProvider(ctx context.Context, cfg config.Config, rdb *goredis.Client) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderSteam:
		steamCfg := steam.Config{
			ReturnURL: cfg.ReturnURL,
			Realm:     cfg.Realm,
			APIKey:    cfg.SteamAPIKey,
			Timeout:   cfg.ProviderTimeout,
		}
		if rdb != nil {
			steamCfg.NonceStore = steam.NewRedisNonceStore(rdb)
		}
		p, err := steam.New(steamCfg)
		if err != nil {
			return nil, err
		}
		return p, nil

	case config.ProviderOIDC:
		discoveryCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
		defer cancel()

		p, err := oidc.New(
			discoveryCtx,
			cfg.OIDCIssuer,
			cfg.OIDCClientID,
			cfg.OIDCClientSecret,
			cfg.ReturnURL,
		)
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}

func providerLabel(name string) string {
	if name == config.ProviderSteam {
		return "Steam"
	}
	return "your identity provider"
}

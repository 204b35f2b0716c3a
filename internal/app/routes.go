package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
	"github.com/keyxmakerx/gatehouse/internal/metrics"
	"github.com/keyxmakerx/gatehouse/internal/middleware"
	"github.com/keyxmakerx/gatehouse/internal/plugins/auth"
	"github.com/keyxmakerx/gatehouse/internal/plugins/sessions"
	"github.com/keyxmakerx/gatehouse/internal/templates/layouts"
	"github.com/keyxmakerx/gatehouse/internal/templates/pages"
)

// healthTimeout bounds each dependency ping in /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes builds the plugins from the shared dependencies and
// registers every route. This is the single place routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo
	cfg := a.Config

	// --- Plugins ---
	sm := sessions.NewManager(
		sessions.NewRedisStore(a.Deps.Redis),
		cfg.Auth.SessionSecret,
		cfg.Auth.SessionTTL,
		cfg.IsProduction(),
	)
	authService := auth.NewAuthService(
		a.Deps.Users,
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		sm,
		a.Deps.Mail,
		cfg.BaseURL,
	)
	authHandler := auth.NewHandler(authService, sm)

	// Templates read session and CSRF data through the Go context.
	middleware.LayoutInjector = func(c echo.Context, ctx context.Context) context.Context {
		ctx = layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
		ctx = layouts.SetActivePath(ctx, c.Path())
		if session := auth.GetSession(c); session != nil {
			ctx = layouts.SetIsAuthenticated(ctx, true)
			ctx = layouts.SetUserEmail(ctx, session.Email)
		}
		return ctx
	}

	// --- Public Routes ---
	e.GET("/", func(c echo.Context) error {
		return middleware.Render(c, http.StatusOK, pages.Landing())
	}, auth.LoadSession(authService, sm))

	e.GET("/healthz", a.healthz)
	e.GET("/metrics", metrics.Handler(a.Deps.Registry))

	// --- Plugin Routes ---
	auth.RegisterRoutes(e, authHandler, authService, sm, a.Deps.Redis)
}

// healthz pings the credential store and Redis. Any failure makes the
// response a 503 so orchestrators stop routing traffic here.
func (a *App) healthz(c echo.Context) error {
	ctx := c.Request().Context()
	status := http.StatusOK
	checks := map[string]string{}
	var failure *apperror.AppError

	check := func(name string, ping func(context.Context) error) {
		pingCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		if err := ping(pingCtx); err != nil {
			failure = apperror.NewServiceUnavailable(fmt.Errorf("%s ping: %w", name, err))
			slog.Warn("health check failed", slog.String("check", name), slog.Any("error", failure))
			checks[name] = "unavailable"
			status = failure.Code
			return
		}
		checks[name] = "ok"
	}

	if a.Deps.StorePing != nil {
		check("store", a.Deps.StorePing)
	}
	check("redis", func(ctx context.Context) error {
		return a.Deps.Redis.Ping(ctx).Err()
	})

	if failure != nil {
		return c.JSON(status, map[string]any{
			"status":  "degraded",
			"message": failure.Message,
			"checks":  checks,
		})
	}
	return c.JSON(status, map[string]any{
		"status": "ok",
		"checks": checks,
	})
}

// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (credential store, Redis client,
// metrics registry, mail outbox) and wires the plugins onto Echo.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
	"github.com/keyxmakerx/gatehouse/internal/config"
	"github.com/keyxmakerx/gatehouse/internal/metrics"
	"github.com/keyxmakerx/gatehouse/internal/middleware"
	"github.com/keyxmakerx/gatehouse/internal/plugins/auth"
	"github.com/keyxmakerx/gatehouse/internal/templates/pages"
)

// Dependencies are the external resources main.go connects before building
// the App.
type Dependencies struct {
	// Users is the credential store selected by STORE_DRIVER.
	Users auth.UserRepository

	// StorePing reports whether the credential store is reachable.
	StorePing func(ctx context.Context) error

	// Redis backs sessions and rate limiting.
	Redis *redis.Client

	// Mail receives welcome emails. May be nil.
	Mail auth.Notifier

	// Registry is where the application collectors are registered and what
	// /metrics exposes.
	Registry *prometheus.Registry
}

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go.
type App struct {
	Config *config.Config
	Deps   Dependencies
	Echo   *echo.Echo
}

// New creates the App and configures Echo with global middleware and error
// handling. Call RegisterRoutes before Start.
func New(cfg *config.Config, deps Dependencies) (*App, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if err := middleware.TrustedProxies(e, cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("configuring trusted proxies: %w", err)
	}

	app := &App{
		Config: cfg,
		Deps:   deps,
		Echo:   e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler
	e.Static("/static", "static")

	return app, nil
}

// setupMiddleware registers global middleware. The request logger is
// outermost so it sees the final status of every request, panics included.
func (a *App) setupMiddleware() {
	secure := a.Config.IsProduction()

	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(metrics.Middleware())
	a.Echo.Use(middleware.SecurityHeaders(secure))
	a.Echo.Use(middleware.CSRF(secure))
}

// errorHandler maps errors to rendered error pages. Internal causes are
// logged here; the client only sees the AppError message. 401 redirects to
// the login page.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := apperror.GenericMessage

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		if apperror.IsInternal(appErr) {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		message = defaultErrorMessage(code)
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if code == http.StatusUnauthorized {
		_ = c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}

	if err := middleware.Render(c, code, pages.ErrorPage(code, message)); err != nil {
		slog.Error("rendering error page", slog.Any("error", err))
	}
}

// defaultErrorMessage returns a user-friendly message for router errors.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusRequestEntityTooLarge:
		return "The request is too large."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return apperror.GenericMessage
	}
}

// Start begins listening for HTTP requests on the configured port. It
// returns http.ErrServerClosed after Shutdown.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Gatehouse server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

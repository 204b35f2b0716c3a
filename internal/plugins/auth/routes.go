package auth

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/gatehouse/internal/middleware"
	"github.com/keyxmakerx/gatehouse/internal/plugins/sessions"
)

// RegisterRoutes sets up the auth routes. POST endpoints are rate limited
// per client IP: 10 login attempts and 5 registrations per minute.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService, sm *sessions.Manager, rdb redis.Cmdable) {
	guest := RedirectIfAuthenticated(service, sm)

	e.GET("/login", h.LoginForm, guest)
	e.POST("/login", h.Login, middleware.RateLimit(rdb, "login", 10, time.Minute))
	e.GET("/register", h.RegisterForm, guest)
	e.POST("/register", h.Register, middleware.RateLimit(rdb, "register", 5, time.Minute))

	e.GET("/dashboard", h.Dashboard, RequireAuth(service, sm))
}

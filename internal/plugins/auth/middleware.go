package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatehouse/internal/plugins/sessions"
)

// contextKeySession holds the *sessions.Session of an authenticated request.
const contextKeySession = "auth_session"

// RequireAuth returns middleware that resolves the session cookie and stores
// the session in the Echo context. Requests without a valid session are
// redirected to /login and a stale cookie is cleared. A session store fault
// is returned as an error rather than treated as logged out.
func RequireAuth(service AuthService, sm *sessions.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			handle := sm.HandleFromRequest(c)
			session, err := service.CurrentSession(c.Request().Context(), handle)
			if errors.Is(err, sessions.ErrNoSession) {
				if handle != "" {
					sm.ClearCookie(c)
				}
				return c.Redirect(http.StatusSeeOther, "/login")
			}
			if err != nil {
				return err
			}

			c.Set(contextKeySession, session)
			return next(c)
		}
	}
}

// RedirectIfAuthenticated returns middleware for the login and register
// pages: a visitor who already has a valid session is sent to /dashboard
// instead of seeing the form again. If the session store is down the form is
// shown.
func RedirectIfAuthenticated(service AuthService, sm *sessions.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			handle := sm.HandleFromRequest(c)
			if handle == "" {
				return next(c)
			}

			session, err := service.CurrentSession(c.Request().Context(), handle)
			switch {
			case err == nil:
				c.Set(contextKeySession, session)
				return c.Redirect(http.StatusSeeOther, "/dashboard")
			case errors.Is(err, sessions.ErrNoSession):
				sm.ClearCookie(c)
			default:
				slog.Warn("session lookup failed, showing form",
					slog.String("path", c.Request().URL.Path),
					slog.Any("error", err),
				)
			}
			return next(c)
		}
	}
}

// LoadSession returns middleware that attaches the session when there is
// one and never redirects. Used on public pages that adapt to the visitor.
func LoadSession(service AuthService, sm *sessions.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if handle := sm.HandleFromRequest(c); handle != "" {
				if session, err := service.CurrentSession(c.Request().Context(), handle); err == nil {
					c.Set(contextKeySession, session)
				}
			}
			return next(c)
		}
	}
}

// GetSession returns the authenticated session from the Echo context, or
// nil when the request is anonymous.
func GetSession(c echo.Context) *sessions.Session {
	session, ok := c.Get(contextKeySession).(*sessions.Session)
	if !ok {
		return nil
	}
	return session
}

package auth

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
	"github.com/keyxmakerx/gatehouse/internal/middleware"
	"github.com/keyxmakerx/gatehouse/internal/plugins/sessions"
)

// Handler handles HTTP requests for registration, login and the dashboard.
// Handlers are thin: they bind the form, call the service, and render.
type Handler struct {
	service  AuthService
	sessions *sessions.Manager
}

// NewHandler creates a new auth handler.
func NewHandler(service AuthService, sm *sessions.Manager) *Handler {
	return &Handler{service: service, sessions: sm}
}

// LoginForm renders the login page (GET /login).
func (h *Handler) LoginForm(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, LoginPage(middleware.GetCSRFToken(c), "", ""))
}

// Login processes the login form (POST /login). Failures re-render the form
// with the submitted email; success sets the session cookie and redirects.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	handle, _, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		status := formStatus(c, "login", err)
		return middleware.Render(c, status,
			LoginPage(middleware.GetCSRFToken(c), req.Email, apperror.SafeMessage(err)))
	}

	h.sessions.SetCookie(c, handle)
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// RegisterForm renders the registration page (GET /register).
func (h *Handler) RegisterForm(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, RegisterPage(middleware.GetCSRFToken(c), "", "", ""))
}

// Register processes the registration form (POST /register). Success shows a
// confirmation on the same page; the user logs in separately.
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	_, err := h.service.Register(c.Request().Context(), RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		status := formStatus(c, "register", err)
		return middleware.Render(c, status,
			RegisterPage(middleware.GetCSRFToken(c), req.Email, apperror.SafeMessage(err), ""))
	}

	return middleware.Render(c, http.StatusOK,
		RegisterPage(middleware.GetCSRFToken(c), "", "", msgRegistered))
}

// Dashboard renders the authenticated landing view (GET /dashboard).
func (h *Handler) Dashboard(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	expires := session.ExpiresAt(h.sessions.TTL())
	return middleware.Render(c, http.StatusOK, DashboardPage(session.Email, session.CreatedAt, expires))
}

// formStatus picks the status for a form re-render. Expected failures
// (validation, conflict, bad credentials) are a normal 200 page; faults are
// logged with their cause and rendered as 500.
func formStatus(c echo.Context, op string, err error) int {
	if !apperror.IsInternal(err) {
		return http.StatusOK
	}
	slog.Error("auth operation failed",
		slog.String("operation", op),
		slog.String("path", c.Request().URL.Path),
		slog.Any("error", err),
	)
	return http.StatusInternalServerError
}

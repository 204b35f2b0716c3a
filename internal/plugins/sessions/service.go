package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// CookieName is the HTTP cookie holding the signed session handle.
const CookieName = "gatehouse_session"

// sessionIDBytes is the number of random bytes in a session ID.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const sessionIDBytes = 32

// Manager creates, resolves and destroys sessions and owns the cookie that
// carries the handle.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	secure bool

	// now is swapped in tests to exercise handle expiry.
	now func() time.Time
}

// NewManager creates a session manager. secure controls the cookie's Secure
// flag and should only be set for production deployments served over TLS.
func NewManager(store Store, secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// TTL returns the fixed session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create stores a new session for the user and returns the signed handle to
// hand to the browser.
func (m *Manager) Create(ctx context.Context, userID, email string) (string, error) {
	id, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}

	now := m.now().UTC()
	s := &Session{
		ID:        id,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
	}
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return "", err
	}

	claims := jwt.RegisteredClaims{
		ID:        id,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	handle, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		_ = m.store.Delete(ctx, id)
		return "", fmt.Errorf("signing session handle: %w", err)
	}

	return handle, nil
}

// Lookup resolves a handle to its live session. It returns ErrNoSession for
// anything that is not a valid, unexpired session; any other error is a
// store fault.
func (m *Manager) Lookup(ctx context.Context, handle string) (*Session, error) {
	if handle == "" {
		return nil, ErrNoSession
	}

	claims, err := m.parse(handle, true)
	if err != nil {
		return nil, ErrNoSession
	}

	s, err := m.store.Get(ctx, claims.ID)
	if errors.Is(err, errCorruptSession) {
		slog.Warn("destroying undecodable session record", slog.Any("error", err))
		if delErr := m.store.Delete(ctx, claims.ID); delErr != nil {
			return nil, delErr
		}
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	// A record under this ID must belong to the subject that was signed.
	if s.UserID != claims.Subject {
		return nil, ErrNoSession
	}
	return s, nil
}

// Destroy removes the session behind a handle. Expired handles are still
// honored so a stale cookie can be cleaned up; garbage handles are ignored.
func (m *Manager) Destroy(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	claims, err := m.parse(handle, false)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, claims.ID)
}

// parse verifies the handle signature. With validate=false the time-based
// claims are not checked.
func (m *Manager) parse(handle string, validate bool) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if validate {
		opts = append(opts, jwt.WithExpirationRequired(), jwt.WithTimeFunc(m.now))
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(handle, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrNoSession
	}
	return &claims, nil
}

// --- Cookie helpers ---

// HandleFromRequest reads the session handle from the request cookie.
func (m *Manager) HandleFromRequest(c echo.Context) string {
	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// SetCookie attaches the handle to the response. The cookie is HttpOnly,
// SameSite=Lax, lives as long as the session, and is Secure only when the
// manager was built for production.
func (m *Manager) SetCookie(c echo.Context, handle string) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    handle,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	})
}

// ClearCookie removes the session cookie by setting MaxAge to -1.
func (m *Manager) ClearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// generateSessionID creates a cryptographically random hex-encoded ID.
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

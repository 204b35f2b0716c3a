package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
	"github.com/keyxmakerx/gatehouse/internal/config"
	"github.com/keyxmakerx/gatehouse/internal/metrics"
	"github.com/keyxmakerx/gatehouse/internal/plugins/auth"
	"github.com/keyxmakerx/gatehouse/internal/plugins/sessions"
)

// memoryUsers is an in-memory credential store.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]auth.User
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, apperror.NewNotFound("user not found")
	}
	return &u, nil
}

func (m *memoryUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return auth.ErrDuplicateEmail
	}
	m.users[user.Email] = *user
	return nil
}

type recordingMail struct {
	mu sync.Mutex
	to []string
}

func (r *recordingMail) Enqueue(to, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.to = append(r.to, to)
}

type testServer struct {
	app   *App
	mr    *miniredis.Miniredis
	mail  *recordingMail
	users *memoryUsers
	jar   map[string]*http.Cookie
}

func newTestServer(t *testing.T, storePing func(context.Context) error) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Env:            "development",
		Port:           0,
		BaseURL:        "http://localhost:3000",
		TrustedProxies: []string{"127.0.0.0/8"},
		Auth: config.AuthConfig{
			SessionSecret: "test-session-secret-0123456789abcdef",
			SessionTTL:    24 * time.Hour,
			BcryptCost:    4,
		},
	}

	reg := prometheus.NewRegistry()
	metrics.RegisterMetrics(reg)

	users := &memoryUsers{users: map[string]auth.User{}}
	mail := &recordingMail{}
	a, err := New(cfg, Dependencies{
		Users:     users,
		StorePing: storePing,
		Redis:     rdb,
		Mail:      mail,
		Registry:  reg,
	})
	require.NoError(t, err)
	a.RegisterRoutes()

	return &testServer{app: a, mr: mr, mail: mail, users: users, jar: map[string]*http.Cookie{}}
}

// do sends the request with the jar's cookies and stores any it receives,
// like a browser would.
func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.jar {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.app.Echo.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(s.jar, c.Name)
			continue
		}
		s.jar[c.Name] = c
	}
	return rec
}

var csrfField = regexp.MustCompile(`name="csrf_token" value="([0-9a-f]+)"`)

func (s *testServer) csrfToken(t *testing.T, path string) string {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	m := csrfField.FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2, "form should carry a CSRF token")
	return m[1]
}

func (s *testServer) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func TestAliceExample(t *testing.T) {
	s := newTestServer(t, nil)

	// Register alice@example.com / pw1 / pw1.
	token := s.csrfToken(t, "/register")
	rec := s.post("/register", url.Values{
		"csrf_token":      {token},
		"email":           {"alice@example.com"},
		"password":        {"pw1"},
		"confirmPassword": {"pw1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Registration successful! You can now log in.")
	assert.Empty(t, rec.Header().Get("Location"), "no auto-redirect after registration")
	assert.NotContains(t, s.jar, sessions.CookieName)
	assert.Equal(t, []string{"alice@example.com"}, s.mail.to)

	// Wrong password: generic message, email pre-filled.
	token = s.csrfToken(t, "/login")
	rec = s.post("/login", url.Values{
		"csrf_token": {token},
		"email":      {"alice@example.com"},
		"password":   {"wrong"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
	assert.Contains(t, rec.Body.String(), `value="alice@example.com"`)

	// Correct password: session cookie and redirect to the dashboard.
	rec = s.post("/login", url.Values{
		"csrf_token": {token},
		"email":      {"alice@example.com"},
		"password":   {"pw1"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	require.Contains(t, s.jar, sessions.CookieName)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")

	// Visiting /login while authenticated bounces forward.
	rec = s.do(httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	// The landing page knows the visitor.
	rec = s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Go to your dashboard")
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	s := newTestServer(t, nil)
	s.csrfToken(t, "/login")

	rec := s.post("/login", url.Values{"email": {"a@x.com"}, "password": {"pw"}})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestDashboardRedirectsAnonymous(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestNotFoundRendersErrorPage(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404 Not Found")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHealthz(t *testing.T) {
	var storeDown bool
	s := newTestServer(t, func(context.Context) error {
		if storeDown {
			return errors.New("no reachable servers")
		}
		return nil
	})

	decode := func(rec *httptest.ResponseRecorder) map[string]any {
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(rec)["status"])

	storeDown = true
	rec = s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, apperror.NewServiceUnavailable(nil).Message, body["message"])
	assert.Equal(t, map[string]any{"store": "unavailable", "redis": "ok"}, body["checks"])
	assert.NotContains(t, rec.Body.String(), "no reachable servers")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(httptest.NewRequest(http.MethodGet, "/login", nil))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gatehouse_http_requests_total{method="GET",route="/login",status="200"}`)
}

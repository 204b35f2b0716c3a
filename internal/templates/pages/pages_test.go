package pages

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/gatehouse/internal/templates/layouts"
)

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestLanding(t *testing.T) {
	anon := render(t, context.Background(), Landing())
	if !strings.Contains(anon, `href="/register"`) {
		t.Error("anonymous landing should offer registration")
	}

	authed := render(t, layouts.SetIsAuthenticated(context.Background(), true), Landing())
	if !strings.Contains(authed, "Go to your dashboard") {
		t.Error("authenticated landing should link to the dashboard")
	}
}

func TestErrorPage(t *testing.T) {
	out := render(t, context.Background(), ErrorPage(http.StatusNotFound, "No <such> page"))

	if !strings.Contains(out, "404 Not Found") {
		t.Error("expected status line")
	}
	if !strings.Contains(out, "No &lt;such&gt; page") {
		t.Error("expected escaped message")
	}
}

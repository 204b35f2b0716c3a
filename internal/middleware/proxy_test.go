package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPExtractor(t *testing.T) {
	extract, err := buildIPExtractor([]string{"10.0.0.0/8", "::1/128"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		realIP string
		xff    string
		want   string
	}{
		{"direct client", "203.0.113.7:1234", "", "", "203.0.113.7"},
		{"untrusted peer spoofing", "203.0.113.7:1234", "1.2.3.4", "5.6.7.8", "203.0.113.7"},
		{"trusted proxy with X-Real-IP", "10.0.0.2:80", "198.51.100.9", "", "198.51.100.9"},
		{"trusted proxy with XFF", "10.0.0.2:80", "", "198.51.100.9, 10.0.0.3", "198.51.100.9"},
		{"XFF client spoof is ignored", "10.0.0.2:80", "", "1.1.1.1, 198.51.100.9", "198.51.100.9"},
		{"trusted proxy without headers", "10.0.0.2:80", "", "", "10.0.0.2"},
		{"ipv6 loopback proxy", "[::1]:80", "", "198.51.100.9", "198.51.100.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, extract(req))
		})
	}
}

func TestIPExtractor_RejectsBadCIDR(t *testing.T) {
	_, err := buildIPExtractor([]string{"nope"})
	assert.Error(t, err)
}

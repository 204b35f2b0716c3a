package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/labstack/echo/v4"
)

// TrustedProxies makes c.RealIP() honour X-Real-IP / X-Forwarded-For only
// when the direct peer is inside one of trustedCIDRs. The rate limiter keys
// on the result, so an untrusted client can't pick its own bucket.
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) error {
	extractor, err := buildIPExtractor(trustedCIDRs)
	if err != nil {
		return err
	}
	e.IPExtractor = extractor
	return nil
}

func buildIPExtractor(trustedCIDRs []string) (echo.IPExtractor, error) {
	trusted := make([]netip.Prefix, 0, len(trustedCIDRs))
	for _, cidr := range trustedCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("parsing trusted proxy %q: %w", cidr, err)
		}
		trusted = append(trusted, prefix.Masked())
	}

	return func(req *http.Request) string {
		direct := peerIP(req.RemoteAddr)
		if !isTrusted(direct, trusted) {
			return direct
		}

		if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}

		// Walk X-Forwarded-For from the right, skipping our own proxies.
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop == "" {
					continue
				}
				if !isTrusted(hop, trusted) || i == 0 {
					return hop
				}
			}
		}

		return direct
	}, nil
}

func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func isTrusted(ipStr string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Package metrics holds the Prometheus collectors for Gatehouse and the
// /metrics handler. Collectors are package-level so plugins can record
// without holding a registry; RegisterMetrics must be called once at startup.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
)

// Auth outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeConflict   = "conflict"
	OutcomeInvalid    = "invalid_credentials"
	OutcomeError      = "error"
)

// Mail outcome labels.
const (
	MailSent    = "sent"
	MailFailed  = "failed"
	MailSkipped = "skipped"
)

// AuthAttempts counts registration and login attempts by outcome.
var AuthAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_auth_attempts_total",
		Help: "Registration and login attempts by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// MailDeliveries counts background transactional mail by outcome.
var MailDeliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_mail_deliveries_total",
		Help: "Transactional emails by outcome",
	},
	[]string{"outcome"},
)

// HTTPRequests counts served requests by method, route pattern and status.
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	},
	[]string{"method", "route", "status"},
)

// HTTPDuration observes request latency by route pattern.
var HTTPDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gatehouse_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// RegisterMetrics registers the collectors (plus Go and process collectors)
// with the given registry. Panics on duplicate registration, following the
// prometheus convention.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthAttempts, MailDeliveries, HTTPRequests, HTTPDuration)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// RecordAuth increments the auth attempt counter.
func RecordAuth(operation, outcome string) {
	AuthAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordMail increments the mail delivery counter.
func RecordMail(outcome string) {
	MailDeliveries.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency per route pattern. Unmatched
// routes are folded into one label so scanners can't blow up cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				// The error handler hasn't written yet; record what it will send.
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = apperror.SafeCode(err)
				}
			}

			method := c.Request().Method
			HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

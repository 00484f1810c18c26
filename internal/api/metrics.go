package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	atelierAccountsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atelier_accounts_total",
		Help: "Registered accounts by approval status.",
	}, []string{"status"})

	atelierRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	atelierRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atelier_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	atelierUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_drawing_uploads_total",
		Help: "Drawing upload attempts by result.",
	}, []string{"result"})

	atelierLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_logins_total",
		Help: "Login attempts by kind and result.",
	}, []string{"kind", "result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		atelierRequestsTotal.WithLabelValues(method, path, status).Inc()
		atelierRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordUpload records a drawing upload attempt.
func RecordUpload(success bool) {
	if success {
		atelierUploadsTotal.WithLabelValues("success").Inc()
	} else {
		atelierUploadsTotal.WithLabelValues("failure").Inc()
	}
}

// RecordLogin records a login attempt. kind is "student" or "admin".
func RecordLogin(kind string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	atelierLoginsTotal.WithLabelValues(kind, result).Inc()
}

// SetAccountsGauge sets the account count gauge for a given status.
func SetAccountsGauge(status string, count float64) {
	atelierAccountsTotal.WithLabelValues(status).Set(count)
}

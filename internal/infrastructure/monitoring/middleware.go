package monitoring

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// Handler exposes the metrics registry in the Prometheus text format
func Handler(metrics *Metrics) http.Handler {
	if metrics == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})
}

// Timer measures the duration of one system call
type Timer struct {
	start   time.Time
	metrics *Metrics
	call    string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, call string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		call:    call,
	}
}

// Stop stops the timer and records the call
func (t *Timer) Stop() {
	t.metrics.RecordSyscall(t.call, time.Since(t.start))
}

// Package middleware provides the Gin HTTP middleware of the dashboard. All middleware in
// this package is registered in internal/api/router.go before any route handlers so that
// every request is covered regardless of handler.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/telemetry"
)

// MetricsMiddleware records telemetry.HTTPRequestsTotal and telemetry.HTTPRequestDuration
// for every request except those whose route is listed in skip (probe endpoints that
// would otherwise dominate the series).
//
// The path label is the matched route template (/administracion/roles/:id/permisos),
// never the raw URL, so ids and query strings do not create new series. Unmatched
// requests share the "<no-route>" label.
//
// Register it after RecoveryMiddleware so the status written by the recovery page is
// the one observed.
func MetricsMiddleware(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if skipped[path] {
			return
		}
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

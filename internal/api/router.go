// Package api wires together all HTTP routes of the sales dashboard gateway.
//
// Route grouping:
//   - Credential screens (/login, /register, /forgot-password, /reset-password) are
//     only reachable anonymously; their POST submissions are rate limited per client.
//   - Every other page requires a session. The route guard redirects anonymous
//     requests to the login form, and each screen is additionally gated by the
//     permission it needs.
//   - /api/session exposes the current session to scripts on the dashboard pages.
//   - /health, /ready, /version and /static are public.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/api/admin"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/audit"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/config"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/credentials"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/guard"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/middleware"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/web"
)

// Version is reported by /version. cmd/server overrides it.
var Version = "0.1.0"

// ReadinessCheck is one dependency probed by /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the collaborators built by cmd/server.
type Dependencies struct {
	Backend   *backend.Client
	Sessions  *session.Manager
	Refresher session.Refresher
	Cookie    *session.Cookie
	Exchanger *credentials.Exchanger
	// Recorder ships administration writes; nil disables the audit trail.
	Recorder *audit.Recorder
	// Redis is required when rate limiting uses the redis backend.
	Redis  redis.UniversalClient
	Checks []ReadinessCheck
}

// BackgroundServices holds references to background resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	rateLimiters []*middleware.MemoryLimiter
	recorder     *audit.Recorder
}

// Shutdown stops the rate limiter goroutines and waits for pending audit entries.
// It should be called after the HTTP server has been shut down so that in-flight
// requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	bg.recorder.Wait()
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, *BackgroundServices, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}

	router := gin.New()
	router.HTMLRender = renderer
	bg := &BackgroundServices{recorder: deps.Recorder}

	// Global middleware. Order matters: recovery wraps everything, the request id
	// exists before anything logs, and the session is loaded before the guard.
	router.Use(middleware.RecoveryMiddleware(cfg.Server.IsProduction()))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware("/health", "/ready"))
	router.Use(LoggerMiddleware(cfg))
	tls := cfg.Security.TLS.Enabled
	router.Use(middleware.SecurityHeadersMiddleware(middleware.DashboardSecurityHeadersConfig(tls), middleware.APISecurityHeadersConfig(tls)))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SessionMiddleware(deps.Sessions, deps.Cookie, deps.Refresher))
	router.Use(guard.RouteGuard(guard.DefaultClassifier()))

	// Public operational endpoints
	router.GET("/health", healthCheckHandler())
	router.GET("/ready", readinessHandler(deps.Checks))
	router.GET("/version", versionHandler(cfg))
	router.StaticFS("/static", web.Static())

	d := admin.Deps{
		Client:    deps.Backend,
		Sessions:  deps.Sessions,
		Refresher: deps.Refresher,
		Cookie:    deps.Cookie,
		Exchanger: deps.Exchanger,
	}
	authHandlers := admin.NewAuthHandlers(d)
	dashboard := admin.NewDashboardHandlers(d)

	// Credential screens. Submissions share one per-client budget.
	var limited gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.Security.RateLimiting.Enabled {
		limiter, err := middleware.NewLimiter(cfg.Security.RateLimiting, deps.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		if ml, ok := limiter.(*middleware.MemoryLimiter); ok {
			bg.rateLimiters = append(bg.rateLimiters, ml)
		}
		limited = middleware.RateLimitMiddleware(limiter, authHandlers.RateLimitedHandler())
	}
	router.GET(guard.LoginPath, authHandlers.LoginPageHandler())
	router.POST(guard.LoginPath, limited, authHandlers.LoginHandler())
	router.GET("/register", authHandlers.RegisterPageHandler())
	router.POST("/register", limited, authHandlers.RegisterHandler())
	router.GET("/forgot-password", authHandlers.ForgotPasswordPageHandler())
	router.POST("/forgot-password", limited, authHandlers.ForgotPasswordHandler())
	router.GET("/reset-password/:token", authHandlers.ResetPasswordPageHandler())
	router.POST("/reset-password/:token", limited, authHandlers.ResetPasswordHandler())
	router.POST("/logout", authHandlers.LogoutHandler())

	// Session endpoints
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/session", authHandlers.SessionHandler())
		apiGroup.POST("/session/refresh", authHandlers.RefreshSessionHandler())
	}
	router.POST("/sesion/actualizar", authHandlers.RefreshSessionPageHandler())

	router.GET(guard.HomePath, dashboard.HomeHandler())
	router.GET(guard.UnauthorizedPath, dashboard.UnauthorizedHandler())

	// Administration screens. Writes are audited.
	adminGroup := router.Group(middleware.AdminPrefix)
	adminGroup.Use(middleware.AuditMiddleware(deps.Recorder))
	{
		users := admin.NewUserHandlers(d)
		usersGroup := adminGroup.Group("/usuarios")
		{
			usersGroup.GET("", guard.RequirePermission(auth.PermUsuariosVer), users.ListUsersHandler())
			usersGroup.GET("/nuevo", guard.RequirePermission(auth.PermUsuariosCrear), users.NewUserHandler())
			usersGroup.POST("", guard.RequirePermission(auth.PermUsuariosCrear), users.CreateUserHandler())
			usersGroup.GET("/:id", guard.RequirePermission(auth.PermUsuariosVer), users.GetUserHandler())
			usersGroup.GET("/:id/editar", guard.RequirePermission(auth.PermUsuariosEditar), users.EditUserHandler())
			usersGroup.POST("/:id", guard.RequirePermission(auth.PermUsuariosEditar), users.UpdateUserHandler())
			usersGroup.POST("/:id/estado", guard.RequirePermission(auth.PermUsuariosEditar), users.SetUserActiveHandler())
		}

		roles := admin.NewRoleHandlers(d)
		rolesGroup := adminGroup.Group("/roles")
		{
			rolesGroup.GET("", guard.RequirePermission(auth.PermRolesVer), roles.ListRolesHandler())
			rolesGroup.GET("/nuevo", guard.RequirePermission(auth.PermRolesCrear), roles.NewRoleHandler())
			rolesGroup.POST("", guard.RequirePermission(auth.PermRolesCrear), roles.CreateRoleHandler())
			rolesGroup.GET("/:id/editar", guard.RequirePermission(auth.PermRolesEditar), roles.EditRoleHandler())
			rolesGroup.POST("/:id", guard.RequirePermission(auth.PermRolesEditar), roles.UpdateRoleHandler())
			rolesGroup.POST("/:id/estado", guard.RequirePermission(auth.PermRolesEditar), roles.SetRoleActiveHandler())
			rolesGroup.GET("/:id/permisos", guard.RequirePermission(auth.PermRolesVer, auth.PermPermisosVer), roles.RolePermissionsHandler())
			rolesGroup.POST("/:id/permisos", guard.RequirePermission(auth.PermRolesEditar), roles.SaveRolePermissionsHandler())
		}

		auditHandlers := admin.NewAuditHandlers(d)
		adminGroup.GET("/auditoria", guard.RequirePermission(auth.PermAuditoriaVer), auditHandlers.ListAuditLogsHandler())
		adminGroup.GET("/auditoria/exportar", guard.RequirePermission(auth.PermAuditoriaExportar), auditHandlers.ExportAuditLogsHandler())

		configHandlers := admin.NewConfigHandlers(d)
		adminGroup.GET("/configuracion", guard.RequirePermission(auth.PermConfiguracionVer), configHandlers.GetConfigHandler())
		adminGroup.POST("/configuracion", guard.RequirePermission(auth.PermConfiguracionEditar), configHandlers.UpdateConfigHandler())
	}

	// Catalog lists
	for _, screen := range admin.Screens() {
		h := admin.NewCatalogHandlers(d, screen)
		router.GET(screen.Path, guard.RequirePermission(screen.View), h.ListHandler())
		router.POST(screen.Path+"/:id/estado", guard.RequirePermission(screen.Edit), h.SetActiveHandler())
		router.POST(screen.Path+"/:id/eliminar", guard.RequirePermission(screen.Delete), h.DeleteHandler())
	}

	router.NoRoute(dashboard.NotFoundHandler())

	return router, bg, nil
}

// healthCheckHandler is the liveness probe. It never touches dependencies.
func healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the session store so
// that a Kubernetes readiness gate fails when logins would error.
func readinessHandler(checks []ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		results := gin.H{}
		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				slog.Warn("readiness check failed", "check", check.Name, "error", err)
				results[check.Name] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": results,
					"error":  check.Name + " not ready",
				})
				return
			}
			results[check.Name] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": results,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the gateway version
func versionHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.Telemetry.ServiceName,
			"version": Version,
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	attrs := []slog.Attr{
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", redactQuery(query)),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", middleware.GetRequestID(c)),
		slog.String("user_agent", c.Request.UserAgent()),
	}
	if s := session.Current(c); s != nil {
		attrs = append(attrs, slog.String("user_id", s.SubjectID))
	}
	level := slog.LevelInfo
	if c.Writer.Status() >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// redactQuery hides values that must never reach the logs.
func redactQuery(raw string) string {
	if raw == "" {
		return raw
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for _, k := range []string{"token", "password", "access_token"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	return q.Encode()
}

// CORSMiddleware handles CORS for the JSON session endpoints
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", strings.Join(cfg.Security.CORS.AllowedMethods, ", "))
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions && origin != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

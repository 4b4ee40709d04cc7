// Package main is the entry point for the sales dashboard gateway binary.
// It dispatches four subcommands (serve, migrate, secret and version) via a simple
// switch on os.Args so the binary's full CLI surface is readable in one place.
// When sessions live in postgres, serve runs the session migrations on startup.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/api"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/audit"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/config"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/credentials"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/crypto"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/db"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/telemetry"
)

const (
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	// Parse command from args
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	configPath := os.Getenv("CONFIG_PATH")

	// Execute command
	switch command {
	case "serve":
		cfg, err := config.Watch(configPath, func(c *config.Config) {
			telemetry.SetLevel(c.Logging.Level)
		})
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runMigrations(cfg, os.Args[2])
	case "secret":
		secret, err := crypto.GenerateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		fmt.Println(secret)
		return nil
	case "version":
		fmt.Printf("Ventas Dashboard v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, secret, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Initialise structured logger as early as possible so all subsequent log output
	// uses the configured format (json / text) and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)
	api.Version = version

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	production := cfg.Server.IsProduction()

	// Cookie signing secret (fails in production if not set)
	secret, err := auth.LoadSessionSecret(production)
	if err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}
	sealer, err := crypto.DeriveTokenSealer(secret, cfg.Session.EncryptionSalt)
	if err != nil {
		return fmt.Errorf("failed to derive token key: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var rdb *redis.Client
	if cfg.Session.Store == "redis" || (cfg.Security.RateLimiting.Enabled && cfg.Security.RateLimiting.Backend == "redis") {
		rdb, err = session.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	store, checks, closer, err := openSessionStore(cfg, rdb)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	mgr := session.NewManager(store, sealer, cfg.Session.TTL)
	unsubscribe := mgr.Subscribe(session.RecordMetrics)
	defer unsubscribe()
	if cfg.Session.CleanupInterval > 0 {
		go mgr.RunJanitor(ctx, cfg.Session.CleanupInterval)
	}

	client, err := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.UserAgent)
	if err != nil {
		return fmt.Errorf("invalid backend configuration: %w", err)
	}
	authAPI := backend.NewAuthAPI(client, cfg.Session.TTL)

	shipper, err := audit.FromConfig(cfg.Audit, client)
	if err != nil {
		return fmt.Errorf("failed to configure audit shipping: %w", err)
	}
	defer shipper.Close()
	var recorder *audit.Recorder
	if shipper.Len() > 0 {
		recorder = audit.NewRecorder(shipper)
		slog.Info("audit shipping enabled", "shippers", shipper.Len())
	}

	secure := cfg.Session.SecureCookie || production || cfg.Security.TLS.Enabled
	deps := api.Dependencies{
		Backend:   client,
		Sessions:  mgr,
		Refresher: authAPI,
		Cookie:    session.NewCookie(cfg.Session.CookieName, secure, auth.NewCookieSigner(secret)),
		Exchanger: credentials.NewExchanger(authAPI, mgr, recorder),
		Recorder:  recorder,
		Checks:    checks,
	}
	if rdb != nil {
		deps.Redis = rdb
	}

	// Start Prometheus metrics endpoint on a dedicated port so it is not reachable
	// through the public ingress path.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	router, bgServices, err := api.NewRouter(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"backend", cfg.Backend.BaseURL,
			"session_store", cfg.Session.Store,
		)

		var err error
		if cfg.Security.TLS.Enabled {
			slog.Info("TLS enabled", "cert", cfg.Security.TLS.CertFile)
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop the janitor, rate limiter goroutines and pending audit shipping
	stop()
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

// openSessionStore builds the configured session backend together with the
// readiness checks that probe it.
func openSessionStore(cfg *config.Config, rdb *redis.Client) (session.Store, []api.ReadinessCheck, io.Closer, error) {
	switch cfg.Session.Store {
	case "", "memory":
		slog.Warn("using in-memory session store; sessions are lost on restart and not shared between replicas")
		return session.NewMemoryStore(), nil, nil, nil

	case "redis":
		check := api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}}
		return session.NewRedisStore(rdb), []api.ReadinessCheck{check}, nil, nil

	case "postgres":
		database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

		// Begin exporting DB pool statistics to Prometheus.
		telemetry.StartDBStatsCollector(database.DB)

		if err := db.RunMigrations(database.DB, "up"); err != nil {
			database.Close()
			return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if v, dirty, err := db.GetMigrationVersion(database.DB); err != nil {
			slog.Warn("failed to get migration version", "error", err)
		} else {
			slog.Info("database schema version", "version", v, "dirty", dirty)
		}

		check := api.ReadinessCheck{Name: "database", Check: database.PingContext}
		return session.NewPostgresStore(database), []api.ReadinessCheck{check}, database, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown session store: %s", cfg.Session.Store)
	}
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)

	if err := db.RunMigrations(database.DB, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	slog.Info("migration completed", "version", v, "dirty", dirty)
	return nil
}

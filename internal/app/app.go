// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/statusroom/internal/collaboration"
	collaborationpostgres "github.com/bissquit/statusroom/internal/collaboration/postgres"
	"github.com/bissquit/statusroom/internal/config"
	"github.com/bissquit/statusroom/internal/identity"
	"github.com/bissquit/statusroom/internal/identity/jwt"
	identitypostgres "github.com/bissquit/statusroom/internal/identity/postgres"
	"github.com/bissquit/statusroom/internal/organizations"
	organizationspostgres "github.com/bissquit/statusroom/internal/organizations/postgres"
	"github.com/bissquit/statusroom/internal/pkg/ctxlog"
	"github.com/bissquit/statusroom/internal/pkg/httputil"
	"github.com/bissquit/statusroom/internal/pkg/metrics"
	"github.com/bissquit/statusroom/internal/pkg/postgres"
	"github.com/bissquit/statusroom/internal/realtime"
	realtimeredis "github.com/bissquit/statusroom/internal/realtime/redis"
	"github.com/bissquit/statusroom/internal/status"
	statuspostgres "github.com/bissquit/statusroom/internal/status/postgres"
	"github.com/bissquit/statusroom/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redis.Client
	hub           *realtime.Hub
	server        *http.Server
	metricsServer *http.Server
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		LockTimeout:     cfg.Database.LockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.MigrationsPath != "" {
		if err := postgres.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	app := &App{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// The snapshot cache is optional: without Redis, joins read PostgreSQL.
	if cfg.Redis.URL != "" {
		client, err := realtimeredis.Connect(connectCtx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, snapshot cache disabled", "error", err)
		} else {
			app.redis = client
		}
	}

	if err := prometheus.Register(metrics.NewDBPoolCollector(db)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			app.closeStores()
			return nil, fmt.Errorf("register db metrics: %w", err)
		}
	}
	metrics.RecordBuildInfo(version.Version, version.GitCommit)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"snapshot_cache", a.redis != nil,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// Hijacked websocket connections are not tracked by http.Server;
	// closing the hub tells every connection to go away.
	a.hub.Close()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, server := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	a.closeStores()

	return errors.Join(errs...)
}

func (a *App) closeStores() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	a.db.Close()
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Hub returns the realtime hub. Used in tests to observe room state.
func (a *App) Hub() *realtime.Hub {
	return a.hub
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	db := postgres.NewDB(a.db)

	var cache realtime.SnapshotCache
	if a.redis != nil {
		cache = realtimeredis.NewCache(a.redis, a.config.Redis.SnapshotTTL)
	}

	statusRepo := statuspostgres.NewRepository(db)
	a.hub = realtime.NewHub(statusRepo, cache)

	statusEngine := status.NewEngine(statusRepo, a.hub)
	statusHandler := status.NewHandler(statusEngine)

	organizationsService := organizations.NewService(organizationspostgres.NewRepository(db), a.hub)
	organizationsHandler := organizations.NewHandler(organizationsService)

	collaborationService := collaboration.NewService(collaborationpostgres.NewRepository(db))
	collaborationHandler := collaboration.NewHandler(collaborationService)

	identityRepo := identitypostgres.NewRepository(db)
	jwtAuth := jwt.NewAuthenticator(identityRepo, jwt.Config{
		SecretKey:            a.config.JWT.SecretKey,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	})
	identityService := identity.NewService(identityRepo, jwtAuth)
	identityHandler := identity.NewHandler(identityService, identity.CookieSettings{
		Secure:               a.config.Cookie.Secure,
		Domain:               a.config.Cookie.Domain,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	})

	wsOrigins := a.config.Realtime.AllowedOrigins
	if len(wsOrigins) == 0 {
		wsOrigins = a.config.CORS.AllowedOrigins
	}
	wsHandler := realtime.NewHandler(a.hub, realtime.Config{
		SendBuffer:     a.config.Realtime.SendBuffer,
		WriteTimeout:   a.config.Realtime.WriteTimeout,
		PongTimeout:    a.config.Realtime.PongTimeout,
		PingInterval:   a.config.Realtime.PingInterval,
		MaxMessageSize: a.config.Realtime.MaxMessageSize,
		InboundRate:    a.config.Realtime.InboundRate,
		InboundBurst:   a.config.Realtime.InboundBurst,
		AllowedOrigins: wsOrigins,
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Viewers need no account; the socket outlives any request timeout.
		r.Method(http.MethodGet, "/ws", wsHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			identityHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.AuthMiddleware(identityService))
				r.Use(httputil.CSRFMiddleware)

				identityHandler.RegisterProtectedRoutes(r)
				organizationsHandler.RegisterRoutes(r)
				statusHandler.RegisterRoutes(r)
				collaborationHandler.RegisterRoutes(r)
			})
		})
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

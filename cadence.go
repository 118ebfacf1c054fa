// Package cadence is the public API for embedding the Cadence marketing
// analytics server.
//
// Consumers import this package to construct and run the server without
// forking it:
//
//	app, err := cadence.New(
//	    cadence.WithVersion(version),
//	    cadence.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: cadence (root) imports
// internal/*, but internal/* never imports cadence (root).
package cadence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/cadencehq/cadence/internal/auth"
	"github.com/cadencehq/cadence/internal/config"
	"github.com/cadencehq/cadence/internal/ratelimit"
	"github.com/cadencehq/cadence/internal/server"
	"github.com/cadencehq/cadence/internal/service/attribution"
	"github.com/cadencehq/cadence/internal/service/engagement"
	"github.com/cadencehq/cadence/internal/service/experiment"
	"github.com/cadencehq/cadence/internal/service/recommend"
	"github.com/cadencehq/cadence/internal/service/templatestats"
	"github.com/cadencehq/cadence/internal/storage"
	"github.com/cadencehq/cadence/internal/telemetry"
	"github.com/cadencehq/cadence/migrations"
)

// App is the Cadence server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the Cadence server. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("cadence starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	// Run embedded migrations.
	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// Create JWT manager.
	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	// Analytics services.
	templateSvc := templatestats.New(db, logger)
	attributionSvc := attribution.New(db, logger)
	engagementSvc := engagement.New(db, logger)
	experimentSvc := experiment.New(db, cfg.AvgDealValue, logger)
	recommendSvc := recommend.New(db, templateSvc, attributionSvc, engagementSvc, logger)

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// Create HTTP server.
	srv := server.New(server.ServerConfig{
		DB:                  db,
		JWTMgr:              jwtMgr,
		ExperimentSvc:       experimentSvc,
		AttributionSvc:      attributionSvc,
		EngagementSvc:       engagementSvc,
		TemplateSvc:         templateSvc,
		RecommendSvc:        recommendSvc,
		Logger:              logger,
		Limiter:             limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		MaxIngestBatchSize:  cfg.MaxIngestBatchSize,
	})

	// Seed admin client.
	if err := srv.Handlers().SeedAdmin(context.Background(), cfg.AdminAPIKey); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("admin seed: %w", err)
	}

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically — callers
// should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully stops the HTTP server, then closes the rate limiter,
// database pool, and OTEL providers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("cadence shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	if err := a.limiter.Close(); err != nil {
		a.logger.Warn("rate limiter close error", "error", err)
	}

	a.db.Close()

	if err := a.otelShutdown(ctx); err != nil {
		a.logger.Warn("otel shutdown error", "error", err)
	}

	a.logger.Info("cadence stopped")
	return nil
}

// Handler returns the root HTTP handler for use in tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

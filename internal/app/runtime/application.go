// Package runtime wires configuration, storage, domain services and
// the HTTP stack into one runnable server process.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	app "github.com/jobboardhq/jobboard/internal/app"
	"github.com/jobboardhq/jobboard/internal/app/audit"
	"github.com/jobboardhq/jobboard/internal/app/auth"
	"github.com/jobboardhq/jobboard/internal/app/httpapi"
	"github.com/jobboardhq/jobboard/internal/app/maintenance"
	"github.com/jobboardhq/jobboard/internal/app/metrics"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/internal/app/storage/memory"
	"github.com/jobboardhq/jobboard/internal/app/storage/postgres"
	"github.com/jobboardhq/jobboard/internal/app/storage/sqlite"
	"github.com/jobboardhq/jobboard/internal/config"
	"github.com/jobboardhq/jobboard/internal/middleware"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = 5 * time.Minute
)

// Application owns every runtime component of the server process.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	store   storage.Store
	audit   *audit.Log
	sink    *audit.FileSink
	server  *http.Server
	version string
}

// NewApplication builds the full application from configuration. The
// storage backend is selected by cfg.DatabaseURL; an unusable database
// location fails construction, keeping startup fail-fast.
func NewApplication(cfg *config.Config, version string, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if log == nil {
		log = logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}).
			WithField("service", "jobboard")
	}

	store, dataDir, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.WithField("backend", store.Backend()).Info("storage ready")

	tokens, err := auth.NewManager(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("configure token manager: %w", err)
	}

	application, err := app.New(app.Stores{
		Users:        store,
		Jobs:         store,
		Applications: store,
	}, tokens, log, app.WithHashCost(cfg.BcryptCost))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("assemble application: %w", err)
	}

	var sink *audit.FileSink
	if cfg.AuditLogPath != "" {
		sink, err = audit.NewFileSink(cfg.AuditLogPath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open audit sink: %w", err)
		}
	}
	auditLog := audit.NewLog(cfg.AuditCapacity, sinkOrNil(sink))

	upkeep := maintenance.New(maintenance.Config{
		Cron:          cfg.MaintenanceCron,
		StatsInterval: cfg.StatsInterval,
		DataDir:       dataDir,
	}, store, log)
	if err := application.Attach(upkeep); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("attach maintenance service: %w", err)
	}

	handler := httpapi.NewHandler(application, store, auditLog, version, log)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	limiter.StartCleanup(cleanupInterval)
	cors := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins)
	tracing := middleware.NewTracingMiddleware(log)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           tracing.Handler(cors.Handler(limiter.Handler(handler))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	metrics.SetBuildInfo(version)

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		store:   store,
		audit:   auditLog,
		sink:    sink,
		server:  server,
		version: version,
	}, nil
}

// Run starts the services and the HTTP server and blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(map[string]any{
			"addr":    a.server.Addr,
			"version": a.version,
		}).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains in-flight requests, stops the services and releases
// the database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		firstErr = err
	}
	if err := a.app.Stop(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.WithError(err).Warn("error closing audit sink")
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("error closing database")
	}
	return firstErr
}

// openStore selects and opens the storage backend named by the
// database URL. It returns the directory holding the data for the
// disk-usage gauge; backends without a local file report none.
func openStore(databaseURL string) (storage.Store, string, error) {
	url := strings.TrimSpace(databaseURL)
	switch {
	case url == "":
		return nil, "", fmt.Errorf("database url is required")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := postgres.Open(ctx, url)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case url == "memory://", url == "memory":
		return memory.New(), "", nil
	default:
		path := strings.TrimPrefix(url, "sqlite://")
		path = strings.TrimPrefix(path, "sqlite3://")
		path = strings.TrimPrefix(path, "file:")
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, "", err
		}
		return store, filepath.Dir(filepath.Clean(path)), nil
	}
}

// sinkOrNil keeps a typed-nil *FileSink from reaching the audit log as
// a non-nil Sink interface.
func sinkOrNil(sink *audit.FileSink) audit.Sink {
	if sink == nil {
		return nil
	}
	return sink
}

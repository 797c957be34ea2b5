// Package app provides application lifecycle management for the Driftline
// planning server.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	httpapi "github.com/driftline/driftline/internal/api/http"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/history"
	"github.com/driftline/driftline/internal/server"
	"github.com/driftline/driftline/internal/snapshot"
	"github.com/driftline/driftline/internal/storage"
)

// App owns the planning server's shared resources: snapshot storage, the
// build-history catalog, and the HTTP server.
type App struct {
	cfg *config.Config

	storage  storage.ObjectStorage
	catalog  history.Catalog
	store    *snapshot.Store
	notifier *events.Notifier
	shutdown *server.ShutdownManager

	httpServer *http.Server

	mu      sync.Mutex
	running bool
}

// New creates an App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		shutdown: server.NewShutdownManager(0),
	}, nil
}

// Start initializes shared resources and serves HTTP until shutdown.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := a.initResources(ctx); err != nil {
		return err
	}

	a.notifier = events.NewNotifier(64)
	go a.logEvents(a.notifier.SubscribeAutoID())

	planH := httpapi.NewPlanHandler(a.catalog, a.notifier)
	buildsH := httpapi.NewBuildsHandler(a.catalog)
	snapsH := httpapi.NewSnapshotsHandler(a.store, a.catalog, a.notifier)

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      httpapi.Routes(planH, buildsH, snapsH),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	log.Printf("planning server listening on %s (storage=%s, history=%s)",
		a.cfg.HTTP.Addr, a.cfg.Storage.Type, a.cfg.HistoryPath())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.NewGracefulHTTPServer(a.httpServer, a.shutdown).ListenAndServe()
	}()

	go func() {
		if err := a.shutdown.ListenForSignals(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	return <-errCh
}

// Stop initiates graceful shutdown.
func (a *App) Stop(ctx context.Context) error {
	return a.shutdown.Shutdown(ctx)
}

// logEvents logs build lifecycle events until the subscriber channel
// closes at shutdown.
func (a *App) logEvents(ch chan events.Event) {
	for ev := range ch {
		switch ev.Type {
		case events.BuildValidated:
			log.Printf("build validated: plan=%s name=%q %s", ev.PlanID, ev.PlanName, ev.Detail)
		case events.BuildFailed:
			log.Printf("build failed validation: plan=%s name=%q %s", ev.PlanID, ev.PlanName, ev.Detail)
		case events.SnapshotSaved:
			log.Printf("snapshot saved: %s/%s", ev.Environment, ev.Detail)
		}
	}
}

// initResources builds the storage backend and opens the history catalog.
func (a *App) initResources(ctx context.Context) error {
	switch a.cfg.Storage.Type {
	case "s3":
		s3store, err := storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		a.storage = s3store
	default:
		local, err := storage.NewLocalStorage(a.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize local storage: %w", err)
		}
		a.storage = local
	}

	catalog, err := history.NewCatalog(a.cfg.HistoryPath())
	if err != nil {
		return err
	}
	a.catalog = catalog
	a.shutdown.RegisterCloser(catalog)

	a.store = snapshot.NewStore(a.storage)
	return nil
}

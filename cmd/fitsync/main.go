package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fitsync/internal/backend"
	"fitsync/internal/config"
	"fitsync/internal/connectivity"
	"fitsync/internal/install"
	"fitsync/internal/models"
	"fitsync/internal/queue"
	"fitsync/internal/server"
	"fitsync/internal/status"
	"fitsync/internal/storage"
	"fitsync/internal/syncer"
	"fitsync/internal/update"
)

// version is the build's application version, compared against the
// release manifest by the update monitor.
var version = "1.0.0"

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", ":8080", "address for the status server")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("initialise storage: %v", err)
	}
	defer store.Close()

	actionQueue := queue.New(store, cfg.Queue.RetryCeiling)
	log.Printf("Loaded queue with %d pending action(s)", actionQueue.Len())

	connMonitor := connectivity.NewMonitor(cfg.Connectivity, nil)
	connMonitor.Start()
	defer connMonitor.Stop()

	drains := storage.NewDrainHistory(store, cfg.Sync.HistoryLimit)

	coordinator := syncer.New(actionQueue, connMonitor, newDeliverer(cfg.Backend), drains, store, syncer.Options{
		DeliveryTimeout: time.Duration(cfg.Sync.DeliveryTimeoutSeconds) * time.Second,
		RetryBase:       time.Duration(cfg.Sync.RetryBaseSeconds) * time.Second,
		SuccessDisplay:  time.Duration(cfg.Sync.SuccessDisplaySeconds) * time.Second,
	})
	coordinator.Start()
	defer coordinator.Stop()

	var releases update.ReleaseSource
	if cfg.Update.ManifestURL != "" {
		releases = update.NewHTTPReleaseSource(cfg.Update.ManifestURL, cfg.Update.APIKey,
			time.Duration(cfg.Update.TimeoutSeconds)*time.Second)
	}
	updateMonitor := update.NewMonitor(releases, nil, store, version,
		time.Duration(cfg.Update.CheckIntervalMinutes)*time.Minute)
	updateMonitor.Start()
	defer updateMonitor.Stop()

	installMonitor := install.NewMonitor(newInstallPlatform(cfg.Backend))

	presenter := status.NewPresenter(coordinator, connMonitor, updateMonitor, installMonitor)
	srv := server.New(*addr, presenter, coordinator, connMonitor, updateMonitor, installMonitor, drains, newDataClient(cfg.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("fitsync %s listening on %s (backend %s, storage %s)",
		version, *addr, cfg.Backend.Mode, cfg.Storage.Driver)
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func openStore(cfg config.Config) (storage.KV, error) {
	if cfg.Storage.Driver == "sqlite" {
		return storage.NewSQLiteStore(filepath.Join(cfg.DataDirectory, "fitsync.db"))
	}
	return storage.NewFileStore(cfg.DataDirectory)
}

func newDeliverer(cfg config.Backend) backend.Deliverer {
	if cfg.Mode == "http" {
		return backend.NewHTTPDeliverer(cfg.URL, cfg.APIKey)
	}
	return backend.NewSimulator(time.Duration(cfg.LatencyMs)*time.Millisecond, cfg.FailureRate)
}

func newInstallPlatform(cfg config.Backend) install.Platform {
	if cfg.Mode == "http" {
		// A real shell would push its prompt and install signals in;
		// until one is wired, the monitor reports not installable.
		return install.NopPlatform{}
	}
	return install.StaticPlatform{
		Initial: models.InstallStatus{PromptAvailable: true},
		Accept:  true,
	}
}

func newDataClient(cfg config.Backend) *backend.Client {
	if cfg.Mode == "http" {
		return backend.NewClient(backend.NewHTTPFetcher(cfg.URL, cfg.APIKey), 5*time.Minute, 100)
	}
	fetcher := backend.StaticFetcher{
		"students": []byte(`[]`),
		"plans":    []byte(`[]`),
		"messages": []byte(`[]`),
	}
	return backend.NewClient(fetcher, 5*time.Minute, 100)
}

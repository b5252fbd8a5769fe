package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Meirbek-dev/ai-reception/internal/bootstrap"
	"github.com/Meirbek-dev/ai-reception/internal/config"
	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
	"github.com/Meirbek-dev/ai-reception/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: m.Handler(),
	}
	go func() {
		log.Printf("worker metrics on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()

	go runMaintenance(ctx, app, m)

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, event ports.IngestEvent) error {
		m.ObserveEvent(service, string(event.Outcome), time.Since(event.CreatedAt))
		app.Logger.Info("ingest event",
			"document_id", event.DocumentID,
			"category", event.Category,
			"status", event.Status,
			"confidence", event.Confidence,
			"outcome", event.Outcome)
		return nil
	})
	if err != nil {
		log.Printf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

// runMaintenance periodically evicts expired cache entries and deletes
// stored files past the retention age.
func runMaintenance(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics) {
	interval := time.Duration(app.Config.CleanupIntervalSeconds) * time.Second
	maxAge := time.Duration(app.Config.MaxFileAgeDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := app.Cache.Sweep(ctx)
			m.ObserveSweep(service, "cache", removed, err)
			if err != nil {
				app.Logger.Warn("cache sweep failed", "error", err)
			}

			removed, err = app.Storage.SweepOlderThan(ctx, maxAge)
			m.ObserveSweep(service, "storage", removed, err)
			if err != nil {
				app.Logger.Warn("storage sweep failed", "error", err)
			}
		}
	}
}

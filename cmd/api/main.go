package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/Meirbek-dev/ai-reception/internal/adapters/http"
	"github.com/Meirbek-dev/ai-reception/internal/bootstrap"
	"github.com/Meirbek-dev/ai-reception/internal/config"
	"github.com/Meirbek-dev/ai-reception/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(app.IngestUC, app.ReviewUC, app.Storage, m, httpadapter.Config{
		Service:        "api",
		MaxRequestSize: cfg.MaxRequestSize,
		MaxFiles:       cfg.MaxFilesPerUpload,
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		OCRWorkers:     cfg.OCRWorkers,
		UploadPath:     cfg.UploadPath,
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Idle client entries in the upload limiter are reclaimed here; the
	// limiter itself only prunes entries it is asked about.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.RateWindowSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := app.Limiter.Sweep(); removed > 0 {
					app.Logger.Debug("limiter sweep", "removed", removed)
				}
			}
		}
	}()

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}

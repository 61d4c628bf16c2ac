// Package main implements the Slicing Service server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/printforge/printforge-go-components/internal/common"
	"github.com/printforge/printforge-go-components/internal/slicingservice/admission"
	api "github.com/printforge/printforge-go-components/internal/slicingservice/api"
	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
	"github.com/printforge/printforge-go-components/internal/slicingservice/pipeline"
	"github.com/printforge/printforge-go-components/internal/slicingservice/pricing"
	"github.com/printforge/printforge-go-components/internal/slicingservice/runner"
	"github.com/printforge/printforge-go-components/internal/slicingservice/storage"
)

func runServer(ctx context.Context, configPath string) error {
	common.PrintSplash()
	log.Default().Println("Loading Slicing Service...")
	log.Default().Println("Config Path:", configPath)

	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.Paths.InputDir, cfg.Paths.OutputDir, cfg.Paths.LogsDir, cfg.Paths.ConfigsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	// === Pricing persistence ===
	store, err := buildPricingStore(ctx, cfg)
	if err != nil {
		log.Printf("❌ Pricing backend unavailable: %v", err)
		return err
	}
	registry := pricing.NewRegistry(store)
	log.Println("✅ Pricing registry loaded")

	// === Artifact storage ===
	artifacts, err := storage.NewLocalStore(cfg.Paths.OutputDir)
	if err != nil {
		return err
	}
	artifacts.StartRetentionSweep(ctx, time.Duration(cfg.Retention.OutputHours)*time.Hour)

	var mirror storage.ArtifactStore
	if cfg.Storage.S3.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage.S3.Bucket, cfg.Storage.S3.Region, cfg.Storage.S3.Prefix)
		if err != nil {
			log.Printf("⚠️ S3 artifact mirror disabled: %v", err)
		} else {
			mirror = s3Store
			log.Printf("✅ S3 artifact mirror enabled (bucket %s)", cfg.Storage.S3.Bucket)
		}
	}

	// === Rolling error log ===
	errorLog := logger.NewErrorLog(filepath.Join(cfg.Paths.LogsDir, "log.json"), cfg.Retention.ErrorLogDays)
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				errorLog.Prune()
			}
		}
	}()

	// === Pipeline and admission ===
	pipe := &pipeline.Pipeline{
		Runner:                  runner.New(cfg.Slicer.DebugCommandLogs),
		Rates:                   registry,
		Classifier:              pipeline.NewHintClassifier(),
		Mirror:                  mirror,
		InputDir:                cfg.Paths.InputDir,
		OutputDir:               cfg.Paths.OutputDir,
		ConfigsDir:              cfg.Paths.ConfigsDir,
		ConvertersDir:           cfg.Paths.ConvertersDir,
		SlicerBinary:            cfg.Slicer.Binary,
		Python:                  cfg.Slicer.Python,
		MaxZipEntries:           cfg.Limits.MaxZipEntries,
		MaxZipUncompressedBytes: cfg.Limits.MaxZipUncompressedBytes,
	}

	queue := admission.NewSliceQueue(
		cfg.Admission.MaxConcurrentSlices,
		cfg.Admission.MaxQueueLength,
		time.Duration(cfg.Admission.MaxQueueWaitMillis)*time.Millisecond,
	)
	limiter := admission.NewRateLimiter(
		time.Duration(cfg.Admission.RateLimitWindowMillis)*time.Millisecond,
		cfg.Admission.RateLimitMaxRequests,
	)

	// === Main Router ===
	r := chi.NewRouter()
	common.AddCors(r, cfg)
	common.AddHealthEndpoint(r, cfg)
	common.AddSwaggerUI(r, cfg)

	svc := api.NewSlicingServiceAPIService(cfg, registry, pipe, queue, limiter, errorLog, artifacts)
	apiRouter := chi.NewRouter()
	svc.RegisterRoutes(apiRouter)

	base := common.NormalizeBasePath(cfg.Server.ContextPath)
	r.Mount(base, apiRouter)

	// === Start Server ===
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("▶️ Slicing Service listening on %s (contextPath=%q)\n", addr, cfg.Server.ContextPath)

	server := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		log.Printf("Queue shutdown: %v", err)
	}
	return nil
}

// buildPricingStore selects the configured persistence backend.
func buildPricingStore(ctx context.Context, cfg *common.Config) (pricing.Store, error) {
	switch cfg.Pricing.Backend {
	case "", "file":
		return pricing.NewFileStore(cfg.Pricing.File.Path), nil
	case "mongo":
		log.Printf("🗄️  Connecting to MongoDB for pricing persistence")
		return pricing.NewMongoStore(ctx, cfg.Pricing.Mongo.URI, cfg.Pricing.Mongo.Database, cfg.Pricing.Mongo.Collection)
	default:
		return nil, fmt.Errorf("unknown pricing backend %q", cfg.Pricing.Backend)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := ""
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()
	if err := runServer(ctx, configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

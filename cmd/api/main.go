package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beatpress/api/internal/api"
	"github.com/beatpress/api/internal/cleanup"
	"github.com/beatpress/api/internal/config"
	"github.com/beatpress/api/internal/credentials"
	"github.com/beatpress/api/internal/db"
	"github.com/beatpress/api/internal/metadata"
	"github.com/beatpress/api/internal/pipeline"
	"github.com/beatpress/api/internal/services"
	"github.com/beatpress/api/internal/storage"
)

func main() {
	log.Println("Starting Beatpress API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Working directory for uploads, renders and scrape artifacts
	uploads, err := storage.NewUploadStore(cfg.TempDir)
	if err != nil {
		log.Fatalf("Failed to prepare temp dir: %v", err)
	}

	// Publish history is optional: no DATABASE_URL, no ledger
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to prepare database schema: %v", err)
		}
	} else {
		log.Println("DATABASE_URL not set — publish history disabled")
	}

	// OAuth credential lifecycle
	creds := credentials.NewManager(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		credentials.NewFileStore(cfg.CredentialsFile),
	)

	// Pipeline services
	scraper := metadata.NewPageScraper(
		cfg.TempDir,
		cfg.ScrapeAttempts,
		time.Duration(cfg.ScrapeTimeoutSeconds)*time.Second,
		cfg.ChromeHeadless,
	)
	resolver := metadata.NewResolver(scraper)
	ffmpegSvc := services.NewFFmpegService()
	youtubeSvc := services.NewYouTubeService(creds)

	// Jobs run under their own context so an in-flight job survives a client
	// disconnect; shutdown stops the serializer instead.
	serializer := pipeline.NewSerializer(context.Background())

	var history pipeline.History
	if database != nil {
		history = database
	}
	p := pipeline.New(serializer, resolver, ffmpegSvc, youtubeSvc, history, cfg.TempDir, cfg.YouTubeCategoryID)

	// Periodic sweep for crash debris the per-job cleanup never saw
	sweeper := cleanup.NewSweeper(cfg.TempDir, time.Duration(cfg.SweepMaxAgeMinutes)*time.Minute)
	if err := sweeper.Start(time.Duration(cfg.SweepEveryMinutes) * time.Minute); err != nil {
		log.Fatalf("Failed to start sweeper: %v", err)
	}

	handler := api.NewHandler(p, uploads, creds, database)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
		// No write timeout: a submission holds its connection for the whole
		// render and upload.
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
	}

	// Let the in-flight job finish, then refuse the rest
	serializer.Stop()
	sweeper.Stop()

	log.Println("Server exited")
}

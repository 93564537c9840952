package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caine128/NotesApp-sub000/internal/auth"
	"github.com/caine128/NotesApp-sub000/internal/blob"
	"github.com/caine128/NotesApp-sub000/internal/config"
	"github.com/caine128/NotesApp-sub000/internal/db"
	"github.com/caine128/NotesApp-sub000/internal/httpapi"
	"github.com/caine128/NotesApp-sub000/internal/service/assetservice"
	"github.com/caine128/NotesApp-sub000/internal/service/syncservice"
	"github.com/caine128/NotesApp-sub000/internal/store/postgres"
)

func main() {
	// Configure structured logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "notesapp-sync").Logger()

	cfg := config.Load()

	// Pretty logging for local dev
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	st := postgres.NewStore(pool)

	blobs, err := blob.NewFSStore(cfg.AssetStorage.StorageRoot)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob storage")
	}

	signer := &blob.Signer{
		Secret:   []byte(cfg.JWTSecret),
		BaseURL:  cfg.PublicBaseURL,
		Validity: cfg.AssetStorage.DownloadURLValidity,
	}

	srv := &httpapi.Server{
		Push:    syncservice.NewPushService(st),
		Pull:    syncservice.NewPullService(st, signer, cfg.Sync.DefaultPullMaxItemsPerEntity),
		Resolve: syncservice.NewResolveService(st),
		Upload: assetservice.NewUploadService(st, blobs, signer,
			cfg.AssetStorage.ContainerName, cfg.AssetStorage.MaxFileSizeBytes),
		Signer: signer,
		Blobs:  blobs,
	}

	jwtCfg := auth.JWTCfg{
		HS256Secret: cfg.JWTSecret,
		DevMode:     cfg.AuthDevMode,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(jwtCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/listing-snap/internal/config"
	"github.com/raine/listing-snap/internal/listing"
	"github.com/raine/listing-snap/internal/llm"
	"github.com/raine/listing-snap/internal/pipeline"
	"github.com/raine/listing-snap/internal/server"
	"github.com/raine/listing-snap/internal/store"
)

const logFileName = "listing-snap.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	config.LoadEnvFile()

	// Check if required config is missing
	if missing := config.CheckRequired(); len(missing) > 0 {
		if isInteractiveTerminal() {
			// Interactive terminal - run setup wizard
			if !runSetupWizard() {
				waitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			fatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it, and ProtectSystem=strict
	// makes the working directory read-only).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local development: log to both stderr and file
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		multiWriter := io.MultiWriter(consoleWriter, fileWriter)
		log.Logger = log.Output(multiWriter)

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	cfg := config.FromEnv()

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Object store for listing images
	imageStore, err := store.NewS3Store(ctx, store.S3Config{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Bucket:          cfg.S3Bucket,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		fatalWithWait("failed to initialize object store: %v", err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("object store initialized")

	// Listing repository
	repo, err := listing.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		fatalWithWait("failed to initialize listing repository: %v", err)
	}
	defer repo.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("listing repository initialized")

	// Gemini extractor for listing fields
	geminiExtractor, err := llm.NewGeminiExtractor(ctx, cfg.GeminiAPIKey)
	if err != nil {
		fatalWithWait("failed to initialize gemini extractor: %v", err)
	}
	log.Info().Msg("gemini extractor initialized")

	// Wrap with cache
	extractor := llm.NewCachedExtractor(geminiExtractor, repo)
	log.Info().Msg("extraction caching enabled")

	// OpenAI image editor for background removal
	editor := llm.NewOpenAIEditor(cfg.OpenAIAPIKey)

	pipelines := pipeline.New(imageStore, extractor, editor, repo)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(pipelines, repo).Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

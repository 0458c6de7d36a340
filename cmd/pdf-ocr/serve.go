package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-ocr/internal/extract"
	"github.com/spherical/pdf-ocr/internal/httpapi"
	"github.com/spherical/pdf-ocr/internal/llm"
	"github.com/spherical/pdf-ocr/internal/pdf"
)

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes POST /api/ocr, which accepts a multipart upload (file,
api_configs) and answers with a text/event-stream of OCR events, and
GET /health.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger.Info().
		Str("addr", cfg.Addr()).
		Int("providers", len(cfg.Providers)).
		Dur("heartbeat", cfg.Stream.HeartbeatInterval).
		Msg("Starting pdf-ocr API")

	opts := extract.Options{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		FanInCapacity:     cfg.Stream.FanInCapacity,
		EventBuffer:       cfg.Stream.EventBuffer,
		PageTimeout:       cfg.Stream.PageTimeout,
	}
	factory := llm.Factory(llm.Options{
		Stream:           cfg.Stream.StreamResponses,
		RateLimitRetries: cfg.Stream.RateLimitRetries,
		Logger:           logger,
	})
	converter := pdf.NewConverter(pdf.ConverterOptions{
		DPI:      cfg.Render.DPI,
		Quality:  cfg.Render.Quality,
		MaxPages: cfg.Render.MaxPages,
	})

	ocr := httpapi.NewOCRHandler(logger, converter, extract.NewMultiplexer(factory, opts, logger), cfg.Providers, cfg.Server.MaxUploadBytes)
	router := httpapi.NewRouter(logger, httpapi.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, ocr)

	// No WriteTimeout: event streams stay open for as long as the providers work.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt or error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server error")
			return err
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
	return nil
}

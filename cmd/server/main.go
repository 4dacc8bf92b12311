package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elitedev/sdr-agent/internal/agent"
	"github.com/elitedev/sdr-agent/internal/calendar"
	"github.com/elitedev/sdr-agent/internal/config"
	"github.com/elitedev/sdr-agent/internal/crm"
	"github.com/elitedev/sdr-agent/internal/dates"
	"github.com/elitedev/sdr-agent/internal/httpapi"
	"github.com/elitedev/sdr-agent/internal/model"
	"github.com/elitedev/sdr-agent/internal/observability"
	"github.com/elitedev/sdr-agent/internal/schedule"
	"github.com/elitedev/sdr-agent/internal/session"
	"github.com/elitedev/sdr-agent/internal/tool"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("primary_model", cfg.GeminiPrimaryModel).
		Str("fallback_model", cfg.GeminiFallbackModel).
		Str("timezone", cfg.Timezone).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("SDR Agent Service starting")

	normalizer, err := dates.NewNormalizer(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid timezone configuration")
	}

	calClient, err := calendar.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create calendar client")
	}

	crmClient := crm.NewClient(cfg, logger)
	if cfg.PipefyAccessToken == "" {
		logger.Warn().Msg("No CRM token configured, running in simulation mode")
	}

	resolver := schedule.NewResolver(calClient, crmClient, normalizer, logger)
	registry := tool.NewRegistry(resolver, crmClient, normalizer, tool.DefaultsFromConfig(cfg))
	sdrAgent := agent.New(model.NewClient(cfg), registry, normalizer, cfg)

	var transcripts httpapi.TranscriptStore
	if cfg.DatabaseURL != "" {
		store, err := session.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open transcript store")
		}
		defer store.Close()
		transcripts = store
		logger.Info().Msg("Transcript store enabled")
	}

	api := httpapi.NewServer(sdrAgent, transcripts, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a turn can wait out two 40s backoffs
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

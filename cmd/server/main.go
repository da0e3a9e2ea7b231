package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synthara-ai/tts-gateway/internal/config"
	"github.com/synthara-ai/tts-gateway/internal/observability"
	"github.com/synthara-ai/tts-gateway/internal/server"
	"github.com/synthara-ai/tts-gateway/internal/tts"
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
		Str("voice", cfg.Voice).
		Str("model", cfg.Model).
		Str("encoding", cfg.Encoding).
		Int("sample_rate", cfg.SampleRate).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("TTS Gateway Service starting")

	engine, err := tts.NewEngine(cfg.Synthesis(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create synthesis engine")
	}

	gateway := server.NewGateway(engine, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/streams/synthesize", gateway.HandleSynthesisWS())
	mux.HandleFunc("/synthesize", gateway.HandleSynthesize())
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"synthesis_engine": func(ctx context.Context) (bool, error) {
			// Credential presence was validated at engine construction;
			// a live probe would cost a billable request.
			return engine != nil, nil
		},
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/synthesize", cfg.Port)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Live synthesis sessions are torn down before the listener so no
	// session outlives the engine.
	if err := engine.CloseAll(); err != nil {
		logger.Warn().Err(err).Msg("Error closing synthesis sessions")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

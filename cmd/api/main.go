package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptolock-ai/whatsapp-relay/internal/api/router"
	appconfig "github.com/cryptolock-ai/whatsapp-relay/internal/config"
	"github.com/cryptolock-ai/whatsapp-relay/internal/conversation"
	"github.com/cryptolock-ai/whatsapp-relay/internal/messaging"
	"github.com/cryptolock-ai/whatsapp-relay/internal/observability/metrics"
	"github.com/cryptolock-ai/whatsapp-relay/internal/prompt"
	"github.com/cryptolock-ai/whatsapp-relay/internal/relay"
	"github.com/cryptolock-ai/whatsapp-relay/internal/session"
	"github.com/cryptolock-ai/whatsapp-relay/pkg/logging"
)

const (
	serviceName    = "cryptolock-whatsapp-relay"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp relay API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// System instruction rendered once at startup.
	instruction := prompt.LoadOrDefault(cfg.PromptTemplatePath)
	if instruction == prompt.DefaultInstruction {
		logger.Warn("prompt template unavailable, using default instruction", "path", cfg.PromptTemplatePath)
	}

	geminiClient, err := conversation.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	defer geminiClient.Close()
	chat := conversation.NewChat(geminiClient, logger)

	var messenger relay.Messenger
	if cfg.TwilioConfigured() {
		messenger = messaging.NewWhatsAppSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, logger)
	} else {
		logger.Warn("twilio credentials incomplete, replies will not be delivered")
	}

	store := session.NewStore(cfg.SessionTTL, logger)
	store.StartSweeper(ctx, cfg.SessionSweepInterval)

	relayMetrics := metrics.NewRelayMetrics(nil, func() float64 {
		return float64(store.Count())
	})

	orchestrator := relay.NewOrchestrator(store, chat, messenger, func() string { return instruction }, relayMetrics, logger)
	relayHandler := relay.NewHandler(
		orchestrator,
		store,
		cfg.VerifyToken,
		cfg.TwilioWebhookSecret,
		cfg.PublicBaseURL+"/webhook",
		relay.ServiceInfo{
			Name:               serviceName,
			Version:            serviceVersion,
			Env:                cfg.Env,
			GeminiModel:        cfg.GeminiModel,
			TwilioConfigured:   cfg.TwilioConfigured(),
			TwilioWhatsAppFrom: cfg.TwilioWhatsAppFrom,
		},
		relayMetrics,
		logger,
	)

	// Setup router
	r := router.New(&router.Config{
		Logger:         logger,
		RelayHandler:   relayHandler,
		MetricsHandler: promhttp.Handler(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation"
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction/llm"
	"github.com/isaacasamoah/piano-move-ai/internal/geo"
	"github.com/isaacasamoah/piano-move-ai/internal/handoff"
	apphttp "github.com/isaacasamoah/piano-move-ai/internal/http"
	"github.com/isaacasamoah/piano-move-ai/internal/http/router"
	"github.com/isaacasamoah/piano-move-ai/internal/messaging"
	"github.com/isaacasamoah/piano-move-ai/internal/messaging/email"
	"github.com/isaacasamoah/piano-move-ai/internal/messaging/sms"
	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
	"github.com/isaacasamoah/piano-move-ai/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	val := validator.New()

	catalog := bizconfig.NewLoader(cfg.GetBusinessConfigDir(), val, log)
	if err := catalog.LoadAll(); err != nil {
		log.Error("failed to load business configs", "error", err)
		panic("failed to load business configs: " + err.Error())
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	distance := geo.NewService(cfg, log)

	var primary extraction.Extractor
	if cfg.IsLLMExtractorEnabled() {
		llmExtractor, err := llm.New(ctx, cfg, log)
		if err != nil {
			log.Error("failed to initialize model extractor", "error", err)
			panic("failed to initialize model extractor: " + err.Error())
		}
		primary = llmExtractor
		log.Info("model extractor enabled", "model", cfg.GeminiModel)
	} else {
		log.Warn("GEMINI_API_KEY not configured; running on the deterministic extractor only")
	}
	fallback := extraction.NewFallback()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	conversationModule, err := conversation.NewModule(cfg, catalog, primary, fallback, distance, eventBus, log)
	if err != nil {
		log.Error("failed to initialize conversation module", "error", err)
		panic("failed to initialize conversation module: " + err.Error())
	}

	// Messaging and handoff modules subscribe to engine events (not HTTP-facing)
	var texts messaging.TextMessenger
	if client := sms.NewClient(cfg, log); client != nil {
		texts = client
	}
	var emails messaging.EmailSender
	if sender := email.NewSender(cfg); sender != nil {
		emails = sender
	}
	messaging.NewModule(eventBus, catalog, texts, emails, log)

	var transferrer handoff.Transferrer
	if client := handoff.NewClient(cfg, log); client != nil {
		transferrer = client
	}
	handoff.NewModule(eventBus, transferrer, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	var health apphttp.HealthChecker
	if pinger, ok := conversationModule.Registry().(apphttp.HealthChecker); ok {
		health = pinger
	}

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			conversationModule,
		},
	}

	engine := router.New(app)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
		// Let in-flight quote deliveries and handoffs finish.
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

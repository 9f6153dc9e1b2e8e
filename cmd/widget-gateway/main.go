// Package main is the entry point for the widget gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/expat-assistant/internal/analytics"
	"github.com/capitalize-ai/expat-assistant/internal/client"
	"github.com/capitalize-ai/expat-assistant/internal/config"
	"github.com/capitalize-ai/expat-assistant/internal/handler"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	natsclient "github.com/capitalize-ai/expat-assistant/internal/nats"
	"github.com/capitalize-ai/expat-assistant/internal/service"
	"github.com/capitalize-ai/expat-assistant/internal/store"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
	"github.com/capitalize-ai/expat-assistant/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	defer logger.SetGlobal(log)()

	log.Info("starting widget gateway")
	if cfg.UsesDevSecret() {
		log.Warn("using the development JWT secret, set JWT_SECRET in production")
	}

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "expat-assistant-gateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Query API transport
	apiClient, err := client.New(client.Config{
		BaseURL: client.ResolveBaseURL(cfg.APIBaseURL, cfg.PageOrigin),
		Timeout: cfg.APITimeout,
	}, log)
	if err != nil {
		log.Fatal("failed to create query API client", zap.Error(err))
	}
	log.Info("query API configured", zap.String("base_url", apiClient.BaseURL()))

	beacon := analytics.New(apiClient.BaseURL(), apiClient.HTTPClient(), cfg.AnalyticsEnabled, log)

	// Session store: Redis when configured, otherwise in-process memory
	var (
		sessionStore store.SessionStore
		storePinger  handler.Pinger
	)
	if cfg.RedisAddr != "" {
		redisStore := store.NewRedisStore(store.NewRedisClient(store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.SessionTTL)
		if err := redisStore.Ping(ctx); err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisStore.Close()
		sessionStore = redisStore
		storePinger = redisStore
	} else {
		sessionStore = store.NewMemoryStore(cfg.SessionTTL)
	}

	// Transcript journal: optional NATS JetStream
	var (
		natsClient *natsclient.Client
		journal    service.Journal
	)
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		j := natsclient.NewJournal(natsClient)
		if err := j.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure transcript stream", zap.Error(err))
		}
		journal = j
	}

	// Initialize services
	sessionSvc := service.NewSessionService(service.Config{
		JWTSecret:       cfg.JWTSecret,
		SessionTTL:      cfg.SessionTTL,
		DefaultLanguage: cfg.DefaultLanguage,
		PageSize:        cfg.PageSize,
		ChainDelay:      cfg.ChainDelay,
		Widget: model.WidgetConfig{
			APIURL:       apiClient.BaseURL(),
			Position:     cfg.WidgetPosition,
			PrimaryColor: cfg.WidgetPrimaryColor,
			Greeting:     cfg.WidgetGreeting,
			Placeholder:  cfg.WidgetPlaceholder,
			Suggestions:  cfg.WidgetSuggestions,
		},
	}, apiClient, beacon, sessionStore, journal, log)

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRequests:  cfg.RateLimitRequests,
		RateLimitWindow:    cfg.RateLimitWindow,
		NATSClient:         natsClient,
		Store:              storePinger,
	}, sessionSvc, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	sessionSvc.Close()
	beacon.Wait()

	log.Info("server stopped")
}

// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/internal/booking"
	"github.com/capitalize-ai/flight-concierge/internal/config"
	"github.com/capitalize-ai/flight-concierge/internal/conversation"
	"github.com/capitalize-ai/flight-concierge/internal/dialogue"
	"github.com/capitalize-ai/flight-concierge/internal/handler"
	"github.com/capitalize-ai/flight-concierge/internal/llm"
	"github.com/capitalize-ai/flight-concierge/internal/middleware"
	natsclient "github.com/capitalize-ai/flight-concierge/internal/nats"
	"github.com/capitalize-ai/flight-concierge/internal/provider"
	"github.com/capitalize-ai/flight-concierge/internal/service"
	"github.com/capitalize-ai/flight-concierge/internal/store"
	"github.com/capitalize-ai/flight-concierge/internal/validator"
	"github.com/capitalize-ai/flight-concierge/pkg/logger"
	"github.com/capitalize-ai/flight-concierge/pkg/tracing"
)

const serviceName = "flight-concierge"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	checks := map[string]handler.Check{}

	// Audit log
	var (
		publisher service.Publisher
		eventLog  handler.EventLog
	)
	if cfg.NATSEnabled {
		natsClient, err := natsclient.Connect(natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			Name:     serviceName,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient, cfg.AuditMaxAge)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		publisher = streamManager
		eventLog = streamManager
		checks["nats"] = natsClient.Check
	}

	// Session store
	var sessions store.SessionStore = store.NewMemorySessionStore()
	if cfg.UsesRedis() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		sessions = store.NewRedisSessionStore(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info("using Redis session store", zap.String("addr", cfg.RedisAddr))
	}

	// Booking repository
	var bookings store.BookingRepository = store.NewMemoryBookingRepository()
	if cfg.UsesMongo() {
		mc, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer mc.Disconnect(context.Background())

		repo, err := store.NewMongoBookingRepository(ctx, mc.Database(cfg.MongoDatabase))
		if err != nil {
			log.Fatal("failed to prepare booking repository", zap.Error(err))
		}
		bookings = repo
		checks["mongo"] = func(ctx context.Context) error { return mc.Ping(ctx, nil) }
		log.Info("using MongoDB booking repository", zap.String("database", cfg.MongoDatabase))
	}

	// Booking core
	providerClient := provider.NewHTTPClient(provider.Config{
		BaseURL:   cfg.ProviderBaseURL,
		Token:     cfg.ProviderToken,
		Version:   cfg.ProviderVersion,
		RateLimit: cfg.ProviderRateLimit,
		Burst:     cfg.ProviderBurst,
	}, log)
	orchestrator := booking.NewOrchestrator(providerClient, booking.Config{
		RequestTimeout:         cfg.ProviderRequestTimeout,
		SearchTimeout:          cfg.SearchTimeout,
		MultiCitySearchTimeout: cfg.MultiCitySearchTimeout,
		SearchLimit:            cfg.SearchLimit,
		EnrichConcurrency:      cfg.EnrichConcurrency,
		DefaultCountryCode:     cfg.DefaultCountryCode,
		FallbackGender:         cfg.FallbackGender,
	}, log)

	// Free-text dialogue is enabled only when the chosen model has a key
	var interpreter service.Interpreter
	if llmClient, err := newLLMClient(ctx, cfg); err != nil {
		log.Warn("LLM features disabled", zap.Error(err))
	} else {
		interpreter = dialogue.NewInterpreter(llmClient, cfg.LLMModel, cfg.DialogueHistory, log)
		log.Info("dialogue enabled", zap.String("llm", llmClient.Name()))
	}

	// Initialize services
	conversationSvc := service.NewConversationService(service.Dependencies{
		Sessions:     sessions,
		Bookings:     bookings,
		Orchestrator: orchestrator,
		Validator:    validator.New(),
		Interpreter:  interpreter,
		Publisher:    publisher,
	}, service.Config{
		SessionTTL:      cfg.SessionTTL,
		ResultSize:      cfg.ResultSize,
		RequireAuth:     cfg.RequireAuth,
		RequirePassport: cfg.RequirePassport,
		Limits: conversation.Limits{
			SearchHistory:  cfg.SearchHistoryLimit,
			ViewedOffers:   cfg.ViewedOffersLimit,
			RejectedOffers: cfg.RejectedOffersLimit,
		},
	}, log)

	go service.NewSweeper(conversationSvc, cfg.SweepInterval, log).Run(ctx)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(checks)
	sessionHandler := handler.NewSessionHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(conversationSvc, log)
	streamHandler := handler.NewStreamHandler(eventLog, conversationSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Sessions may be anonymous until authentication
		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWTSecret))
			r.Post("/", sessionHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.SessionID)

				r.Get("/", sessionHandler.Get)
				r.Post("/messages", messageHandler.Send)
				r.Post("/search", sessionHandler.Search)
				r.Post("/filter", sessionHandler.Filter)
				r.Post("/select", sessionHandler.Select)
				r.With(middleware.Auth(cfg.JWTSecret)).Post("/authenticate", sessionHandler.Authenticate)
				r.Post("/passengers", sessionHandler.Passengers)
				r.Get("/services", sessionHandler.ListServices)
				r.Post("/services", sessionHandler.AddServices)
				r.Post("/book", sessionHandler.Book)
				r.Post("/pay", sessionHandler.Pay)
				r.Post("/cancel", sessionHandler.Cancel)

				// Streaming
				r.Get("/events", streamHandler.Events)
			})
		})

		r.With(middleware.Auth(cfg.JWTSecret)).Get("/bookings", sessionHandler.ListBookings)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// newLLMClient builds the client of the configured provider, failing when its key is unset.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	keys := llm.Keys{
		Anthropic: cfg.AnthropicAPIKey,
		OpenAI:    cfg.OpenAIAPIKey,
		Gemini:    cfg.GeminiAPIKey,
	}

	name := llm.Provider(cfg.DefaultLLM)
	var key string
	switch name {
	case llm.ProviderOpenAI:
		key = keys.OpenAI
	case llm.ProviderGemini:
		key = keys.Gemini
	default:
		key = keys.Anthropic
	}
	if key == "" {
		return nil, fmt.Errorf("no API key for %q", name)
	}
	return llm.NewClient(ctx, name, keys)
}

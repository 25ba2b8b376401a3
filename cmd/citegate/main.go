package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citegate/internal/config"
	dbRedis "github.com/kailas-cloud/citegate/internal/db/redis"
	"github.com/kailas-cloud/citegate/internal/domain"
	logpkg "github.com/kailas-cloud/citegate/internal/logger"
	"github.com/kailas-cloud/citegate/internal/metrics"
	budgetrepo "github.com/kailas-cloud/citegate/internal/repository/budget"
	historyrepo "github.com/kailas-cloud/citegate/internal/repository/history"
	chiTransport "github.com/kailas-cloud/citegate/internal/transport/chi"
	geminiGen "github.com/kailas-cloud/citegate/internal/transport/gemini"
	openaiGen "github.com/kailas-cloud/citegate/internal/transport/openai"
	"github.com/kailas-cloud/citegate/internal/transport/vertexrag"
	chatuc "github.com/kailas-cloud/citegate/internal/usecase/chat"
	generationuc "github.com/kailas-cloud/citegate/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/citegate/internal/usecase/health"
	usageuc "github.com/kailas-cloud/citegate/internal/usecase/usage"
	"github.com/kailas-cloud/citegate/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting citegate API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("generation_provider", cfg.Generation.Provider),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register generation metrics explicitly (no init())
	metrics.RegisterGenerationMetrics()

	// Single BudgetTracker shared between the generator and usage service.
	var budget *generationuc.BudgetTracker
	budgetCfg := cfg.Generation.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := generationuc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = generationuc.BudgetActionReject
		}
		budget = generationuc.NewBudgetTracker(
			cfg.Generation.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		// Connect persistence store — loads current counters from DB.
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker generationuc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	generator, genHealth, err := buildGenerator(ctx, cfg, budgetChecker, logger)
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}
	logger.Info("Generator created",
		zap.String("provider", cfg.Generation.Provider),
		zap.String("model", cfg.Generation.Model),
	)

	retriever, err := vertexrag.New(ctx, cfg.Vertex.Project, cfg.Vertex.Location, cfg.Vertex.RAGCorpus, logger)
	if err != nil {
		logger.Fatal("Failed to create retriever", zap.Error(err))
	}
	defer func() { _ = retriever.Close() }()

	history := historyrepo.New(store, cfg.Storage.KeyPrefix, time.Duration(cfg.Session.TTLHours)*time.Hour)

	// Create use case services
	chatSvc := chatuc.New(
		retriever, generator, history,
		cfg.Chat.SystemPrompt, cfg.Vertex.DefaultTopK, cfg.Vertex.MaxTopK, logger,
	)

	// Usage service — reads from shared BudgetTracker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	// Health service
	healthSvc := healthuc.New(store, genHealth)

	// Create chi server
	server := chiTransport.NewServer(chatSvc, usageSvc, healthSvc, logger)

	sessionTTL := time.Duration(cfg.Session.TTLHours) * time.Hour

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware)
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(chiTransport.SessionMiddleware(cfg.Session.CookieName, sessionTTL))
	r.Use(metrics.Middleware())

	r.Post("/chat", server.Chat)
	r.Post("/clear", server.Clear)
	r.Get("/usage", server.Usage)
	r.Get("/healthz", server.Healthz)
	r.Get("/metrics", server.Metrics)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildGenerator assembles the provider chain: base provider -> Instrumented.
// The base provider is also returned as the health checker.
func buildGenerator(
	ctx context.Context,
	cfg config.Config,
	budget generationuc.BudgetChecker,
	logger *zap.Logger,
) (domain.Generator, healthuc.GenerationChecker, error) {
	var base domain.Generator
	var health healthuc.GenerationChecker

	switch cfg.Generation.Provider {
	case "gemini":
		g, err := geminiGen.New(ctx, geminiGen.Config{
			Project:     cfg.Vertex.Project,
			Location:    cfg.Vertex.Location,
			RAGCorpus:   cfg.Vertex.RAGCorpus,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			TopK:        cfg.Vertex.DefaultTopK,
		})
		if err != nil {
			return nil, nil, err
		}
		base, health = g, g
	case "openai":
		g := openaiGen.NewGenerator(&openaiGen.Config{
			APIKey:      cfg.Generation.OpenAI.APIKey,
			BaseURL:     cfg.Generation.OpenAI.BaseURL,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			Logger:      logger,
		})
		base, health = g, g
	default:
		return nil, nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}

	instrumented := generationuc.NewInstrumentedGenerator(
		base, cfg.Generation.Provider, cfg.Generation.Model, budget, logger,
	)
	return instrumented, health, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

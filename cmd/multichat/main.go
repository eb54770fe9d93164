package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/winterlabs/multichat/config"
	"github.com/winterlabs/multichat/internal/account"
	"github.com/winterlabs/multichat/internal/chatstore"
	"github.com/winterlabs/multichat/internal/httpapi"
	"github.com/winterlabs/multichat/internal/ledger"
	"github.com/winterlabs/multichat/internal/orchestrator"
	"github.com/winterlabs/multichat/internal/provider/gemini"
	"github.com/winterlabs/multichat/internal/provider/openrouter"
	"github.com/winterlabs/multichat/internal/seeder"
	"github.com/winterlabs/multichat/internal/task"
	"github.com/winterlabs/multichat/internal/telemetry"
	"github.com/winterlabs/multichat/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("multichat", cfg)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}
	log.Println("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	log.Println("Redis connected")

	// 5. Init accounts and sessions
	accountStore := account.NewPostgresStore(pool)
	sessions := account.NewSessions(rdb)
	authMiddleware := account.NewMiddleware(sessions)

	// 6. Init stores
	ledgerStore := ledger.NewPostgresStore(pool)
	chats := chatstore.NewRedisStore(rdb)

	// 7. Init rate limiter
	limiter := ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitTPM)

	// 8. Init providers and orchestration
	native := gemini.New(cfg.GeminiAPIKey, cfg.GeminiBaseURL)
	compatible := openrouter.New(cfg.OpenRouterBaseURL)
	responder := orchestrator.New(native, compatible)

	// 9. Init background task runner
	tasks := task.NewRunner()

	// 10. Init handler
	tracer := otel.GetTracerProvider().Tracer("multichat")
	handler := httpapi.NewHandler(responder, chats, accountStore, sessions, ledgerStore, limiter, tasks, tracer, cfg.SignupBalanceUSD)

	// 11. Seed demo user if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedDemoUser(ctx, accountStore, cfg.SignupBalanceUSD)
	}

	// 12. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"multichat"}`))
	})
	r.Post("/v1/auth/register", handler.HandleRegister)
	r.Post("/v1/auth/login", handler.HandleLogin)
	r.Get("/v1/models", handler.HandleModels)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Put("/v1/profile/api-key", handler.HandleUpdateAPIKey)
		r.Post("/v1/chats", handler.HandleCreateChat)
		r.Get("/v1/chats", handler.HandleListChats)
		r.Delete("/v1/chats/{chatID}", handler.HandleDeleteChat)
		r.Put("/v1/chats/{chatID}/model", handler.HandleSetChatModel)
		r.Post("/v1/chats/{chatID}/messages", handler.HandleSendMessage)
		r.Get("/v1/usage", handler.HandleUsage)
	})

	// 13. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("MultiChat starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	tasks.Wait()
	log.Println("Server stopped")
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zapvendas/bot-server-go/internal/ai"
	"github.com/zapvendas/bot-server-go/internal/config"
	"github.com/zapvendas/bot-server-go/internal/database"
	"github.com/zapvendas/bot-server-go/internal/events"
	"github.com/zapvendas/bot-server-go/internal/handler"
	"github.com/zapvendas/bot-server-go/internal/jobs"
	"github.com/zapvendas/bot-server-go/internal/middleware"
	"github.com/zapvendas/bot-server-go/internal/pipeline"
	"github.com/zapvendas/bot-server-go/internal/redis"
	"github.com/zapvendas/bot-server-go/internal/repository"
	"github.com/zapvendas/bot-server-go/internal/retrieval"
	"github.com/zapvendas/bot-server-go/internal/session"
	"github.com/zapvendas/bot-server-go/internal/wa"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	aiClient, err := ai.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.ChatModel, cfg.EmbeddingModel, cfg.RemoteTimeout())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create ai client")
	}
	defer aiClient.Close()

	productRepo := repository.NewProductRepository(db.DB)
	retrievalClient := retrieval.NewClient(productRepo, aiClient, cfg.ScoreThreshold, cfg.RetrievalTopK)

	broker := events.NewBroker(redisClient)
	defer broker.Close()

	sessionManager := session.NewManager(wa.Dialer(cfg.WADBPath), cfg.ReconnectDelay(), broker)

	contexts := pipeline.NewContextTracker(cfg.ContextCap)
	messagePipeline := pipeline.New(retrievalClient, aiClient, sessionManager, contexts, broker, cfg.RemoteTimeout())
	sessionManager.OnMessage(messagePipeline.Handle)

	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	qrHandler := handler.NewQRHandler(sessionManager)
	sessionHandler := handler.NewSessionHandler(sessionManager)
	productHandler := handler.NewProductHandler(retrievalClient)
	chatHandler := handler.NewChatHandler(retrievalClient, aiClient)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("bot server is running\n"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"state":     sessionManager.State(),
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Get("/qr", qrHandler.ServeHTTP)
	r.Get("/events", eventsHandler.ServeHTTP)
	r.Get("/session", sessionHandler.GetStatus)
	r.Post("/disconnect", sessionHandler.Disconnect)
	r.Post("/send", sessionHandler.Send)

	r.Group(func(r chi.Router) {
		r.Use(rateLimitMiddleware.Handler)
		r.Post("/product", productHandler.ServeHTTP)
		r.Post("/chat", chatHandler.ServeHTTP)
	})

	sweeper := jobs.NewContextSweeper(contexts, cfg.ContextTTL(), config.ContextSweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	go func() {
		if err := sessionManager.Start(context.Background()); err != nil {
			log.Error().Err(err).Msg("initial session start failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	sessionManager.Close()
	messagePipeline.Close()

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"dropcheck/internal/auth"
	"dropcheck/internal/config"
	"dropcheck/internal/database"
	"dropcheck/internal/device"
	"dropcheck/internal/geminiservice"
	"dropcheck/internal/recommendation"
	"dropcheck/internal/server"
	"dropcheck/internal/session"
	"dropcheck/internal/utility"
	"github.com/rs/zerolog/log"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

// newStore picks Postgres when a database URL is configured and the
// in-memory store otherwise.
func newStore(ctx context.Context, cfg config.Config) (session.KV, server.HealthChecker, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, session state is kept in memory and lost on restart")
		kv := session.NewMemoryKV()
		return kv, kv, func() {}, nil
	}
	db, err := database.NewService(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return db, db, db.Close, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Fatal error: could not load configuration")
	}
	utility.InitLogger(cfg.Env, cfg.LogLevel)

	ctx := context.Background()

	kv, store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Fatal error: could not initialize storage")
	}
	defer closeStore()

	state, err := session.NewState(kv, session.Options{
		CacheSize:       cfg.CacheSize,
		SeedDemoHistory: cfg.SeedDemoHistory,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Fatal error: could not initialize session state")
	}

	if cfg.Gemini.APIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, recommendation requests will fail")
	}
	var generator recommendation.Generator = geminiservice.NewClient(cfg.Gemini)
	var breaker server.BreakerState
	if cfg.CircuitBreaker {
		b := geminiservice.NewBreaker(generator, geminiservice.BreakerConfig{})
		generator, breaker = b, b
		log.Info().Msg("Circuit breaker enabled for model calls")
	}

	deps := server.Deps{
		Store:              store,
		State:              state,
		Recommender:        recommendation.NewRequestor(generator),
		Device:             device.NewSimulator(cfg.Device),
		Auth:               auth.NewAuthenticator(cfg.SessionSecret, cfg.IsProduction()),
		Hub:                utility.NewHub(),
		Breaker:            breaker,
		RateLimitPerMinute: cfg.RateLimitPerMin,
	}

	apiServer := server.NewServer(cfg.Port, deps)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, done)

	log.Info().Int("port", cfg.Port).Str("env", cfg.Env).Str("model", cfg.Gemini.Model).Msg("DropCheck API listening")

	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("Graceful shutdown complete.")
}

package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dropcheck/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connection.
	Close()

	// Pool exposes the underlying pgx pool.
	Pool() *pgxpool.Pool

	// Session state lives in the app_state table.
	session.KV
}

type service struct {
	pool *pgxpool.Pool
	name string
	*StateStore
}

// NewService connects to databaseURL, applies pending migrations and
// returns a ready Service.
func NewService(ctx context.Context, databaseURL string) (Service, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	if err := Migrate(ctx, databaseURL); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Str("database", cfg.ConnConfig.Database).Msg("Connected to database")

	return &service{
		pool:       pool,
		name:       cfg.ConnConfig.Database,
		StateStore: NewStateStore(pool),
	}, nil
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

// Health checks the health of the database connection.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	stats["backend"] = "postgres"

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Msg("db down")
		return stats
	}

	poolStats := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(poolStats.MaxConns()))
	stats["acquire_count"] = strconv.FormatInt(poolStats.AcquireCount(), 10)
	stats["acquire_duration_ms"] = strconv.FormatInt(poolStats.AcquireDuration().Milliseconds(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(poolStats.EmptyAcquireCount(), 10)
	stats["canceled_acquire_count"] = strconv.FormatInt(poolStats.CanceledAcquireCount(), 10)

	if poolStats.AcquiredConns() > (poolStats.MaxConns() * 8 / 10) { // 80% capacity
		stats["message"] = "The database connection pool is experiencing heavy load."
	}
	if poolStats.EmptyAcquireCount() > 0 {
		stats["message"] = "The application has tried to acquire a connection from an empty pool. Consider increasing max connections."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() {
	log.Info().Str("database", s.name).Msg("Disconnected from database")
	s.pool.Close()
}

package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/config"
	"jobmate/matching-service/internal/db"
	"jobmate/matching-service/internal/eligibility"
	"jobmate/matching-service/internal/lock"
	"jobmate/matching-service/internal/logger"
	"jobmate/matching-service/internal/profile"
	"jobmate/matching-service/internal/ranking"
	"jobmate/matching-service/internal/scoring"
)

const app = "matching-service"

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "matching-service ranks candidates against job openings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file; environment variables take precedence")
}

// loadConfig reads the config and builds the logger it describes.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	lg, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, lg, nil
}

// deps are the wired components shared by serve and recompute.
type deps struct {
	pool   *pgxpool.Pool
	rdb    *redis.Client
	jobs   *ranking.PostgresJobs
	loader *eligibility.PostgresLoader
	coord  *ranking.Coordinator
}

func (d *deps) Close() {
	d.rdb.Close()
	d.pool.Close()
}

func wire(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*deps, error) {
	// ── PostgreSQL ───────────────────────────────────────────────────────────
	lg.Info("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	lg.Info("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	engine, err := scoring.NewEngine(cfg.Weights)
	if err != nil {
		rdb.Close()
		pool.Close()
		return nil, fmt.Errorf("scoring: %w", err)
	}

	var locker lock.Locker = lock.NewRegistry()
	if cfg.LockBackend == config.LockRedis {
		locker = lock.NewRedisLease(rdb, cfg.LockLease, lg.Named("lock"))
	}

	retries := cfg.PersistRetries
	if retries == 0 {
		retries = -1
	}

	jobs := ranking.NewPostgresJobs(pool)
	coord := ranking.NewCoordinator(
		jobs,
		profile.NewAggregator(profile.NewPostgresSource(pool)),
		engine,
		ranking.NewPostgresStore(pool),
		locker,
		ranking.NewRedisPublisher(rdb),
		lg.Named("ranking"),
		ranking.Options{
			Workers:        cfg.ScoringWorkers,
			LockTimeout:    cfg.LockTimeout,
			PersistRetries: retries,
			RetryBackoff:   cfg.RetryBackoff,
		},
	)

	lg.Info("dependencies ready",
		zap.String("lockBackend", cfg.LockBackend),
		zap.Any("weights", engine.Weights()),
	)
	return &deps{
		pool:   pool,
		rdb:    rdb,
		jobs:   jobs,
		loader: eligibility.NewPostgresLoader(pool),
		coord:  coord,
	}, nil
}

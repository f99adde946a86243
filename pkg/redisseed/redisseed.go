// Package redisseed implements the Redis seeding target: each seed file's
// payload is stored as a JSON string under a db:container:id key.
package redisseed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seedctl/seedctl/pkg/seed"
)

// Prometheus metrics for redis seeding.
var (
	redisKeysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedctl_redis_keys_total",
		Help: "Total redis keys written by outcome",
	}, []string{"outcome"}) // "written", "failed", "skipped"
)

// Config holds the redis seeder configuration.
type Config struct {
	// DefaultDatabase keys files without a db of their own.
	DefaultDatabase string

	// DefaultContainer keys files without a container override.
	DefaultContainer string
}

// Seeder writes seed file payloads into Redis.
type Seeder struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// New creates a redis seeder.
func New(redisClient *redis.Client, cfg Config) (*Seeder, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.DefaultDatabase == "" {
		cfg.DefaultDatabase = "seed"
	}
	if cfg.DefaultContainer == "" {
		cfg.DefaultContainer = "items"
	}
	return &Seeder{
		redis:  redisClient,
		config: cfg,
		logger: log.With().Str("component", "redis-seeder").Logger(),
	}, nil
}

// Key builds the storage key for one document.
func (s *Seeder) Key(db, container, id string) string {
	if db == "" {
		db = s.config.DefaultDatabase
	}
	if container == "" {
		container = s.config.DefaultContainer
	}
	return db + ":" + container + ":" + id
}

// Run seeds every file under dir. Malformed files are logged and skipped;
// write failures fail the file but not the batch.
func (s *Seeder) Run(ctx context.Context, dir string) (written, failed int, err error) {
	files, err := seed.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	if len(files) == 0 {
		return 0, 0, fmt.Errorf("no seed files found in %s", dir)
	}

	for _, file := range files {
		parsed, err := seed.Parse(file.Data)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", file.Path).Msg("Skipping unparseable seed file")
			redisKeysTotal.WithLabelValues("skipped").Inc()
			failed++
			continue
		}
		if parsed.SeedConfig.ID == "" {
			s.logger.Warn().Str("path", file.Path).Msg("Skipping seed file without document id")
			redisKeysTotal.WithLabelValues("skipped").Inc()
			failed++
			continue
		}

		if err := s.Put(ctx, parsed); err != nil {
			s.logger.Error().Err(err).Str("path", file.Path).Msg("Redis write failed")
			redisKeysTotal.WithLabelValues("failed").Inc()
			failed++
			continue
		}
		written++
	}

	s.logger.Info().
		Int("written", written).
		Int("failed", failed).
		Msg("Redis seed run complete")
	return written, failed, nil
}

// Put stores one parsed seed file's payload.
func (s *Seeder) Put(ctx context.Context, f *seed.File) error {
	value, err := json.Marshal(f.SeedData)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	key := s.Key(f.SeedConfig.DB, f.SeedConfig.Container, f.SeedConfig.ID)
	if err := s.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	redisKeysTotal.WithLabelValues("written").Inc()
	s.logger.Debug().Str("key", key).Msg("Seed payload written")
	return nil
}

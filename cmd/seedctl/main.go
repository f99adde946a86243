// Command seedctl seeds JSON documents into a Cosmos DB-style document
// database, a Service Bus queue/topic, or Redis, and exports database
// containers back into seed files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/seedctl/seedctl/internal/config"
	"github.com/seedctl/seedctl/pkg/broker"
	"github.com/seedctl/seedctl/pkg/cosmos"
	"github.com/seedctl/seedctl/pkg/exporter"
	"github.com/seedctl/seedctl/pkg/importer"
	"github.com/seedctl/seedctl/pkg/logging"
	"github.com/seedctl/seedctl/pkg/redisseed"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Run.UseManagedIdentity {
		return fmt.Errorf("managed identity authentication is not implemented; use a connection string")
	}

	switch cfg.Run.Target {
	case config.TargetCosmos:
		if cfg.Run.Source == config.SourceCosmos {
			return runExport(ctx, cfg, logger)
		}
		return runImport(ctx, cfg, logger)
	case config.TargetServiceBus:
		return runBroker(ctx, cfg)
	case config.TargetRedis:
		return runRedis(ctx, cfg)
	default:
		return fmt.Errorf("unknown target %q", cfg.Run.Target)
	}
}

func runImport(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Cosmos.ConnectionString == "" {
		return fmt.Errorf("cosmos connection string is required")
	}

	client, err := cosmos.NewFromConnectionString(cfg.Cosmos.ConnectionString)
	if err != nil {
		return err
	}

	importerCfg := importer.DefaultConfig()
	importerCfg.DatabaseFilter = cfg.Run.Database
	importerCfg.ContainerFilter = cfg.Run.Container
	importerCfg.DropAndRecreate = cfg.Run.Drop

	summary, err := importer.New(client, importerCfg).Run(ctx, cfg.Run.Path)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to seed", summary.Failed, summary.Failed+summary.Succeeded)
	}
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Cosmos.ConnectionString == "" {
		return fmt.Errorf("cosmos connection string is required for export")
	}
	if cfg.Run.Database == "" {
		return fmt.Errorf("database is required for export")
	}

	client, err := cosmos.NewFromConnectionString(cfg.Cosmos.ConnectionString)
	if err != nil {
		return err
	}

	exporterCfg := exporter.Config{
		OutputDir:   cfg.Run.Path,
		PageSize:    cfg.Export.PageSize,
		MaxPageSize: cfg.Export.MaxPageSize,
		MaxRU:       cfg.Export.MaxRU,
		ForceUpdate: cfg.Export.ForceUpdate,
	}
	engine, err := exporter.New(client, exporterCfg)
	if err != nil {
		return err
	}

	stats, err := engine.ExportDatabase(ctx, cfg.Run.Database, cfg.Run.Container)
	if err != nil {
		return err
	}
	logger.Info().
		Int("processed", stats.Processed).
		Int("exported", stats.Exported).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Msg("Export complete")
	return nil
}

func runBroker(ctx context.Context, cfg *config.Config) error {
	if cfg.Broker.ConnectionString == "" {
		return fmt.Errorf("service bus connection string is required")
	}

	brokerCfg, err := broker.ParseConnectionString(cfg.Broker.ConnectionString)
	if err != nil {
		return err
	}
	seeder, err := broker.New(brokerCfg)
	if err != nil {
		return err
	}

	_, failed, err := seeder.Run(ctx, cfg.Run.Path)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d broker messages failed to publish", failed)
	}
	return nil
}

func runRedis(ctx context.Context, cfg *config.Config) error {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	seeder, err := redisseed.New(redisClient, redisseed.Config{})
	if err != nil {
		return err
	}

	_, failed, err := seeder.Run(ctx, cfg.Run.Path)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d seed files failed to write", failed)
	}
	return nil
}

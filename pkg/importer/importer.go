// Package importer implements the file-to-database import engine: container
// grouping, partition key inference, lazy database/container creation, and
// idempotent per-document upserts.
package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seedctl/seedctl/pkg/cosmos"
	"github.com/seedctl/seedctl/pkg/seed"
)

// Prometheus metrics for import operations.
var (
	importDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedctl_import_documents_total",
		Help: "Total imported documents by outcome",
	}, []string{"outcome"}) // "created", "conflict", "failed", "skipped"

	importContainersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedctl_import_containers_total",
		Help: "Total containers touched by import runs",
	})
)

// Config holds the import engine configuration.
type Config struct {
	// PartitionKeyPath is the container partition key path (default "/pk").
	PartitionKeyPath string

	// DefaultDatabase receives files that don't parse well enough to name
	// their own database.
	DefaultDatabase string

	// DefaultContainer is the fallback container for files without an
	// override (and for unparseable files).
	DefaultContainer string

	// DatabaseFilter restricts the run to one database name ("" = all).
	DatabaseFilter string

	// ContainerFilter restricts the run to one container name ("" = all).
	ContainerFilter string

	// DropAndRecreate deletes each target container before seeding it.
	DropAndRecreate bool
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		PartitionKeyPath: seed.DefaultPartitionKeyPath,
		DefaultDatabase:  "seed",
		DefaultContainer: "items",
	}
}

// Summary reports the outcome of one import run.
type Summary struct {
	Databases  int
	Containers int
	Succeeded  int
	Failed     int
}

// Importer seeds documents from files into the database.
type Importer struct {
	client *cosmos.Client
	config Config
	logger zerolog.Logger
}

// New creates an import engine.
func New(client *cosmos.Client, cfg Config) *Importer {
	if cfg.PartitionKeyPath == "" {
		cfg.PartitionKeyPath = seed.DefaultPartitionKeyPath
	}
	if cfg.DefaultDatabase == "" {
		cfg.DefaultDatabase = "seed"
	}
	if cfg.DefaultContainer == "" {
		cfg.DefaultContainer = "items"
	}
	return &Importer{
		client: client,
		config: cfg,
		logger: log.With().Str("component", "importer").Logger(),
	}
}

// Run imports every seed file under dir. A failure inside one database or
// container aborts only that unit; the run continues with its siblings.
func (i *Importer) Run(ctx context.Context, dir string) (*Summary, error) {
	files, err := seed.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no seed files found in %s", dir)
	}

	summary := &Summary{}
	for _, db := range i.databaseNames(files) {
		if i.config.DatabaseFilter != "" && db != i.config.DatabaseFilter {
			continue
		}
		summary.Databases++
		i.importDatabase(ctx, db, i.filesForDatabase(files, db), summary)
	}
	i.logger.Info().
		Int("databases", summary.Databases).
		Int("containers", summary.Containers).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Import run complete")
	return summary, nil
}

// databaseNames collects the distinct target databases in sorted order.
// Unparseable files and files without a db target the default database.
func (i *Importer) databaseNames(files []seed.SourceFile) []string {
	seen := make(map[string]bool)
	for _, file := range files {
		seen[i.databaseOf(file)] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (i *Importer) databaseOf(file seed.SourceFile) string {
	parsed, err := seed.Parse(file.Data)
	if err != nil || parsed.SeedConfig.DB == "" {
		return i.config.DefaultDatabase
	}
	return parsed.SeedConfig.DB
}

func (i *Importer) filesForDatabase(files []seed.SourceFile, db string) []seed.SourceFile {
	var matched []seed.SourceFile
	for _, file := range files {
		if i.databaseOf(file) == db {
			matched = append(matched, file)
		}
	}
	return matched
}

// importDatabase creates the database idempotently and seeds each of its
// container groups.
func (i *Importer) importDatabase(ctx context.Context, db string, files []seed.SourceFile, summary *Summary) {
	if err := i.client.CreateDatabase(ctx, db); err != nil && !cosmos.IsConflict(err) {
		i.logger.Error().Err(err).Str("db", db).Msg("Database creation failed, skipping database")
		summary.Failed += len(files)
		return
	}

	groups := seed.GroupByContainer(files, i.config.DefaultContainer)

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, container := range names {
		if i.config.ContainerFilter != "" && container != i.config.ContainerFilter {
			continue
		}
		summary.Containers++
		importContainersTotal.Inc()

		succeeded, failed := i.importContainer(ctx, db, container, groups[container])
		summary.Succeeded += succeeded
		summary.Failed += failed
	}
}

// importContainer prepares one container and upserts its batch of files.
func (i *Importer) importContainer(ctx context.Context, db, container string, files []seed.SourceFile) (succeeded, failed int) {
	needsExplicit := seed.NeedsExplicitPartitionKey(files)
	i.logger.Info().
		Str("db", db).
		Str("container", container).
		Int("files", len(files)).
		Str("strategy", seed.StrategyLabel(needsExplicit)).
		Msg("Seeding container")

	if i.config.DropAndRecreate {
		if err := i.client.DeleteCollection(ctx, db, container); err != nil && !cosmos.IsNotFound(err) {
			i.logger.Error().Err(err).Str("db", db).Str("container", container).
				Msg("Container drop failed, skipping container")
			return 0, len(files)
		}
	}

	if err := i.client.CreateCollection(ctx, db, container, i.config.PartitionKeyPath); err != nil && !cosmos.IsConflict(err) {
		i.logger.Error().Err(err).Str("db", db).Str("container", container).
			Msg("Container creation failed, skipping container")
		return 0, len(files)
	}

	for _, file := range files {
		if i.importFile(ctx, db, container, file) {
			succeeded++
		} else {
			failed++
		}
	}

	i.logger.Info().
		Str("db", db).
		Str("container", container).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("Container seeded")
	return succeeded, failed
}

// importFile upserts one seed file. Input errors skip the file without
// aborting the batch.
func (i *Importer) importFile(ctx context.Context, db, container string, file seed.SourceFile) bool {
	parsed, err := seed.Parse(file.Data)
	if err != nil {
		i.logger.Warn().Err(err).Str("path", file.Path).Msg("Skipping unparseable seed file")
		importDocumentsTotal.WithLabelValues("skipped").Inc()
		return false
	}
	if parsed.SeedConfig.ID == "" {
		i.logger.Warn().Str("path", file.Path).Msg("Skipping seed file without document id")
		importDocumentsTotal.WithLabelValues("skipped").Inc()
		return false
	}

	if err := i.Upsert(ctx, db, container, parsed.SeedConfig.ID, parsed.SeedConfig.PK, parsed.SeedData); err != nil {
		i.logger.Error().Err(err).
			Str("path", file.Path).
			Str("doc_id", parsed.SeedConfig.ID).
			Msg("Document upsert failed")
		return false
	}
	return true
}

// Upsert writes one document. An empty partition key is synthesized from
// the document id, so every stored document is guaranteed a partition key.
// The payload's own id and pk fields are overwritten with the resolved
// values. A "document already exists" conflict counts as success so that
// re-running a seed never fails the batch.
func (i *Importer) Upsert(ctx context.Context, db, container, id, pk string, payload map[string]any) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}

	synthesized := pk == ""
	if synthesized {
		pk = id
	}

	doc := make(map[string]any, len(payload)+2)
	for name, value := range payload {
		doc[name] = value
	}
	doc["id"] = id
	doc[seed.PartitionKeyField] = pk

	err := i.client.CreateDocument(ctx, db, container, pk, doc)
	switch {
	case err == nil:
		importDocumentsTotal.WithLabelValues("created").Inc()
	case cosmos.IsConflict(err):
		importDocumentsTotal.WithLabelValues("conflict").Inc()
		i.logger.Debug().
			Str("db", db).
			Str("container", container).
			Str("doc_id", id).
			Msg("Document already exists, treating as success")
	default:
		importDocumentsTotal.WithLabelValues("failed").Inc()
		return err
	}

	i.logger.Info().
		Str("db", db).
		Str("container", container).
		Str("doc_id", id).
		Str("pk", pk).
		Bool("synthesized_pk", synthesized).
		Msg("Document seeded")
	return nil
}

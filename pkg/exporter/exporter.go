// Package exporter implements the database-to-file export engine: partition
// key range discovery, continuation-token paging, change detection against
// previously exported files, and adaptive RU budget management.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seedctl/seedctl/pkg/cosmos"
	"github.com/seedctl/seedctl/pkg/ru"
	"github.com/seedctl/seedctl/pkg/seed"
)

// Prometheus metrics for export operations.
var (
	exportDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedctl_export_documents_total",
		Help: "Total exported documents by outcome",
	}, []string{"outcome"}) // "exported", "updated", "skipped"

	exportPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedctl_export_pages_total",
		Help: "Total document pages fetched by export runs",
	})

	exportAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedctl_export_aborts_total",
		Help: "Total aborted export units by scope",
	}, []string{"scope"}) // "container", "range"
)

// Outcome classifies what happened to one document during export.
type Outcome string

const (
	// OutcomeExported means the file did not previously exist.
	OutcomeExported Outcome = "exported"

	// OutcomeUpdated means the file existed and was overwritten.
	OutcomeUpdated Outcome = "updated"

	// OutcomeSkipped means the file existed with identical content.
	OutcomeSkipped Outcome = "skipped"
)

// selectQuery feeds the partition-range-scoped reads.
var selectQuery = cosmos.Query{Query: "SELECT * FROM c"}

// Config holds the export engine configuration.
type Config struct {
	// OutputDir receives the exported seed files.
	OutputDir string

	// PageSize is the initial max-item-count per page (default 100).
	PageSize int

	// MaxPageSize is the page size ceiling (default 1000).
	MaxPageSize int

	// MaxRU is the per-page RU budget (default 400).
	MaxRU float64

	// ForceUpdate overwrites files even when content is unchanged.
	ForceUpdate bool
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(outputDir string) Config {
	return Config{
		OutputDir:   outputDir,
		PageSize:    100,
		MaxPageSize: 1000,
		MaxRU:       400,
	}
}

// Stats accumulates progress for one container export.
type Stats struct {
	Processed     int
	Exported      int
	Updated       int
	Skipped       int
	Pages         int
	RequestCharge float64
}

// Exporter reads a database's documents back into seed files.
type Exporter struct {
	client *cosmos.Client
	config Config
	logger zerolog.Logger
}

// New creates an export engine.
func New(client *cosmos.Client, cfg Config) (*Exporter, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 1000
	}
	if cfg.PageSize > cfg.MaxPageSize {
		cfg.PageSize = cfg.MaxPageSize
	}
	if cfg.MaxRU <= 0 {
		cfg.MaxRU = 400
	}
	return &Exporter{
		client: client,
		config: cfg,
		logger: log.With().Str("component", "exporter").Logger(),
	}, nil
}

// ExportDatabase exports every container of a database. A failing container
// is logged and skipped; its siblings still run. The optional filter
// restricts the run to one container name.
func (e *Exporter) ExportDatabase(ctx context.Context, db, containerFilter string) (*Stats, error) {
	collections, err := e.client.ListCollections(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("list containers of %s: %w", db, err)
	}

	total := &Stats{}
	var failed []string
	for _, coll := range collections {
		if containerFilter != "" && coll.ID != containerFilter {
			continue
		}
		stats, err := e.ExportContainer(ctx, db, coll.ID)
		if stats != nil {
			total.add(stats)
		}
		if err != nil {
			exportAbortsTotal.WithLabelValues("container").Inc()
			e.logger.Error().Err(err).
				Str("db", db).
				Str("container", coll.ID).
				Msg("Container export aborted")
			failed = append(failed, coll.ID)
		}
	}

	if len(failed) > 0 {
		return total, fmt.Errorf("export failed for containers: %s", strings.Join(failed, ", "))
	}
	return total, nil
}

// ExportContainer exports all documents of one container. The strategy is
// chosen once from container metadata: partition-range mode when the
// container has a partition key path, plain paging mode otherwise. Both
// modes share the same per-page document processing.
func (e *Exporter) ExportContainer(ctx context.Context, db, container string) (*Stats, error) {
	if err := os.MkdirAll(e.config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	coll, err := e.client.GetCollection(ctx, db, container)
	if err != nil {
		return nil, fmt.Errorf("container metadata: %w", err)
	}
	pkPath := coll.PartitionKeyPath()

	tracker := ru.NewTracker(ru.NewState(e.config.MaxRU, e.config.PageSize, e.config.MaxPageSize), e.logger)
	stats := &Stats{}

	if count, err := e.client.DocumentCount(ctx, db, container); err == nil {
		e.logger.Info().
			Str("db", db).
			Str("container", container).
			Int("documents", count).
			Str("pk_path", pkPath).
			Msg("Starting container export")
	}

	if pkPath == "" {
		// No partition key path: a single continuation-driven loop over
		// the whole container.
		if err := e.runPageLoop(ctx, db, container, pkPath, "", tracker, stats); err != nil {
			return stats, err
		}
		e.logSummary(db, container, stats)
		return stats, nil
	}

	ranges, err := e.client.PartitionKeyRanges(ctx, db, container)
	if err != nil {
		return stats, fmt.Errorf("partition key ranges: %w", err)
	}

	var rangeErrs []error
	for _, r := range ranges {
		rangeStats := &Stats{}
		if err := e.runPageLoop(ctx, db, container, pkPath, r.ID, tracker, rangeStats); err != nil {
			exportAbortsTotal.WithLabelValues("range").Inc()
			e.logger.Error().Err(err).
				Str("db", db).
				Str("container", container).
				Str("range_id", r.ID).
				Msg("Partition range export aborted")
			rangeErrs = append(rangeErrs, fmt.Errorf("range %s: %w", r.ID, err))
		}
		e.logger.Info().
			Str("db", db).
			Str("container", container).
			Str("range_id", r.ID).
			Int("processed", rangeStats.Processed).
			Msg("Partition range complete")
		stats.add(rangeStats)
	}

	e.logSummary(db, container, stats)
	if len(rangeErrs) > 0 {
		return stats, errors.Join(rangeErrs...)
	}
	return stats, nil
}

// runPageLoop drives one continuation-token loop, either over a single
// partition key range (rangeID set) or over the whole container. A fetch
// failure stops the loop early and surfaces to the caller.
func (e *Exporter) runPageLoop(ctx context.Context, db, container, pkPath, rangeID string, tracker *ru.Tracker, stats *Stats) error {
	continuation := ""
	for {
		opts := cosmos.PageOptions{
			MaxItemCount:        tracker.PageSize(),
			Continuation:        continuation,
			PartitionKeyRangeID: rangeID,
		}

		var page *cosmos.DocumentPage
		var err error
		if rangeID != "" {
			page, err = e.client.QueryDocuments(ctx, db, container, selectQuery, opts)
		} else {
			page, err = e.client.ListDocuments(ctx, db, container, opts)
		}
		if err != nil {
			return err
		}

		stats.Pages++
		exportPagesTotal.Inc()

		if err := e.processPage(db, container, pkPath, page.Documents, stats); err != nil {
			return err
		}

		stats.RequestCharge += page.RequestCharge
		if err := tracker.Observe(ctx, page.RequestCharge); err != nil {
			return err
		}

		e.logger.Info().
			Str("db", db).
			Str("container", container).
			Str("range_id", rangeID).
			Int("page", stats.Pages).
			Int("page_size", tracker.PageSize()).
			Int("processed", stats.Processed).
			Int("exported", stats.Exported).
			Int("updated", stats.Updated).
			Int("skipped", stats.Skipped).
			Float64("request_charge", page.RequestCharge).
			Float64("cumulative_ru", tracker.Cumulative()).
			Msg("Page processed")

		continuation = page.Continuation
		if continuation == "" {
			return nil
		}
	}
}

// processPage turns one page of raw documents into seed files. Documents
// without an id are logged and skipped without failing the page.
func (e *Exporter) processPage(db, container, pkPath string, docs []map[string]any, stats *Stats) error {
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			e.logger.Warn().
				Str("db", db).
				Str("container", container).
				Msg("Skipping document without id")
			continue
		}

		pk := ""
		if pkPath != "" {
			pk = seed.ValueAtPath(doc, pkPath)
		}

		record := &seed.File{
			SeedConfig: seed.Config{
				ID:        id,
				DB:        db,
				Container: container,
				PK:        pk,
			},
			SeedData: seed.StripSystemFields(doc),
		}

		outcome, err := e.writeRecord(db, container, id, record)
		if err != nil {
			return err
		}

		stats.Processed++
		switch outcome {
		case OutcomeExported:
			stats.Exported++
		case OutcomeUpdated:
			stats.Updated++
		case OutcomeSkipped:
			stats.Skipped++
		}
		exportDocumentsTotal.WithLabelValues(string(outcome)).Inc()

		e.logger.Debug().
			Str("db", db).
			Str("container", container).
			Str("doc_id", id).
			Str("outcome", string(outcome)).
			Msg("Document classified")
	}
	return nil
}

// writeRecord classifies the export outcome against the existing file and
// overwrites it for exported/updated outcomes. The on-disk files double as
// the change-detection cache between runs.
func (e *Exporter) writeRecord(db, container, id string, record *seed.File) (Outcome, error) {
	data, err := record.Marshal()
	if err != nil {
		return "", err
	}

	path := e.recordPath(db, container, id)
	existing, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		return OutcomeExported, nil
	case err != nil:
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	if seed.ContentEqual(existing, data) && !e.config.ForceUpdate {
		return OutcomeSkipped, nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return OutcomeUpdated, nil
}

// recordPath builds the per-document output file name.
func (e *Exporter) recordPath(db, container, id string) string {
	name := sanitize(db) + "_" + sanitize(container) + "_" + sanitize(id) + ".json"
	return filepath.Join(e.config.OutputDir, name)
}

// sanitize replaces path-hostile characters in a file name component.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, s)
}

func (s *Stats) add(other *Stats) {
	s.Processed += other.Processed
	s.Exported += other.Exported
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Pages += other.Pages
	s.RequestCharge += other.RequestCharge
}

func (e *Exporter) logSummary(db, container string, stats *Stats) {
	e.logger.Info().
		Str("db", db).
		Str("container", container).
		Int("processed", stats.Processed).
		Int("exported", stats.Exported).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Int("pages", stats.Pages).
		Float64("cumulative_ru", stats.RequestCharge).
		Msg("Container export complete")
}

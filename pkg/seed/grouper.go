package seed

import (
	"github.com/rs/zerolog/log"
)

// GroupByContainer classifies seed files into named containers. A file's
// non-empty container override wins; everything else lands in the fallback
// container. Unparseable files also land in the fallback container with a
// warning, never aborting the batch.
//
// Grouping is stable: group membership is a partition of the input, and
// order within each group follows input enumeration order.
func GroupByContainer(files []SourceFile, fallback string) map[string][]SourceFile {
	logger := log.With().Str("component", "grouper").Logger()

	groups := make(map[string][]SourceFile)
	for _, file := range files {
		name := fallback

		parsed, err := Parse(file.Data)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("path", file.Path).
				Str("container", fallback).
				Msg("Unparseable seed file assigned to default container")
		} else if parsed.SeedConfig.Container != "" {
			name = parsed.SeedConfig.Container
		}

		groups[name] = append(groups[name], file)
	}

	return groups
}

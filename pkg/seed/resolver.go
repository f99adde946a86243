package seed

// NeedsExplicitPartitionKey reports whether a container's batch of seed
// files declares partition keys of its own. It returns true if any file
// carries a non-empty pk in its seedConfig or, defensively, inside its
// seedData payload.
//
// An unparseable file makes the answer true: when in doubt, assume the
// stricter schema rather than silently excluding the document. Note the
// deliberate asymmetry with GroupByContainer, which sends unparseable
// files to the default container instead.
//
// The decision is made once per container batch and only determines the
// strategy reported to the operator; whether an individual document gets a
// synthesized key is always decided per document at import time.
func NeedsExplicitPartitionKey(files []SourceFile) bool {
	for _, file := range files {
		parsed, err := Parse(file.Data)
		if err != nil {
			return true
		}
		if parsed.SeedConfig.PK != "" {
			return true
		}
		if pk, ok := parsed.SeedData[PartitionKeyField].(string); ok && pk != "" {
			return true
		}
	}
	return false
}

// StrategyLabel renders the partition key strategy for operator output.
func StrategyLabel(needsExplicit bool) string {
	if needsExplicit {
		return "with explicit partition keys"
	}
	return "using document id as partition key"
}

package cosmos

// Database is a named grouping of collections.
type Database struct {
	ID string `json:"id"`
}

// PartitionKeyDef describes a collection's partition key definition.
type PartitionKeyDef struct {
	Paths []string `json:"paths"`
	Kind  string   `json:"kind"`
}

// Collection is a document container inside a database.
type Collection struct {
	ID           string           `json:"id"`
	PartitionKey *PartitionKeyDef `json:"partitionKey,omitempty"`
}

// PartitionKeyPath returns the collection's partition key path,
// or "" if the collection has no partition key definition.
func (c *Collection) PartitionKeyPath() string {
	if c == nil || c.PartitionKey == nil || len(c.PartitionKey.Paths) == 0 {
		return ""
	}
	return c.PartitionKey.Paths[0]
}

// PartitionKeyRange is a server-reported sub-partition of a collection's
// key space. Each range can be queried independently via its range id.
type PartitionKeyRange struct {
	ID           string `json:"id"`
	MinInclusive string `json:"minInclusive"`
	MaxExclusive string `json:"maxExclusive"`
}

// Query is a parameterized SQL query.
type Query struct {
	Query      string           `json:"query"`
	Parameters []QueryParameter `json:"parameters,omitempty"`
}

// QueryParameter is a single named query parameter.
type QueryParameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// PageOptions controls a single paged read.
type PageOptions struct {
	// MaxItemCount is the requested page size (x-ms-max-item-count).
	MaxItemCount int

	// Continuation resumes a previous page loop (x-ms-continuation).
	Continuation string

	// PartitionKeyRangeID scopes the read to one partition key range.
	PartitionKeyRangeID string
}

// DocumentPage is one page of documents plus the paging/cost metadata
// reported by the server.
type DocumentPage struct {
	// Documents are the raw documents of this page, system fields included.
	Documents []map[string]any

	// Continuation is the opaque cursor for the next page ("" = done).
	Continuation string

	// RequestCharge is the RU cost the server reported for this page.
	RequestCharge float64
}

// documentsEnvelope is the wire shape of a document feed response.
type documentsEnvelope struct {
	Documents []map[string]any `json:"Documents"`
	Count     int              `json:"_count"`
}

// collectionsEnvelope is the wire shape of a collection listing.
type collectionsEnvelope struct {
	DocumentCollections []Collection `json:"DocumentCollections"`
}

// pkRangesEnvelope is the wire shape of a partition key range listing.
type pkRangesEnvelope struct {
	PartitionKeyRanges []PartitionKeyRange `json:"PartitionKeyRanges"`
}

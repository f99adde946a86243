// Package testutil provides testing utilities for seedctl, most notably an
// in-memory mock of the Cosmos REST surface.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// PartitionKeyRange mirrors the wire shape of a server-reported range.
type PartitionKeyRange struct {
	ID           string `json:"id"`
	MinInclusive string `json:"minInclusive"`
	MaxExclusive string `json:"maxExclusive"`
}

type mockCollection struct {
	id     string
	pkPath string
	docs   []map[string]any
	ranges []PartitionKeyRange
}

type mockDatabase struct {
	collections map[string]*mockCollection
	order       []string
}

// MockCosmos is a configurable in-memory mock of the document database's
// REST surface: database/collection lifecycle, document creation with
// conflict detection, and paged document reads with continuation tokens,
// partition key ranges, and a request-charge header.
type MockCosmos struct {
	server    *httptest.Server
	mu        sync.RWMutex
	databases map[string]*mockDatabase

	// PageCharge is the RU charge reported for every docs response.
	PageCharge float64

	// FailPath forces FailStatus for requests whose path contains it.
	FailPath   string
	FailStatus int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockCosmos creates a mock server with an empty account.
func NewMockCosmos() *MockCosmos {
	mock := &MockCosmos{
		databases:  make(map[string]*mockDatabase),
		PageCharge: 5,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockCosmos) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCosmos) Close() {
	m.server.Close()
}

// CreateDatabase preloads a database.
func (m *MockCosmos) CreateDatabase(db string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureDatabase(db)
}

// CreateCollection preloads a collection with a partition key path
// ("" = no partition key definition) and one default key range.
func (m *MockCosmos) CreateCollection(db, coll, pkPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.ensureDatabase(db)
	if _, exists := d.collections[coll]; exists {
		return
	}
	d.collections[coll] = &mockCollection{
		id:     coll,
		pkPath: pkPath,
		ranges: []PartitionKeyRange{{ID: "0", MinInclusive: "", MaxExclusive: "FF"}},
	}
	d.order = append(d.order, coll)
}

// SetPartitionKeyRanges overrides a collection's key ranges. Documents are
// assigned to ranges by insertion order (round-robin), which keeps per-range
// paging deterministic for tests.
func (m *MockCosmos) SetPartitionKeyRanges(db, coll string, ranges []PartitionKeyRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.collection(db, coll); c != nil {
		c.ranges = ranges
	}
}

// SeedDocument preloads a document without going through the REST surface.
func (m *MockCosmos) SeedDocument(db, coll string, doc map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.collection(db, coll); c != nil {
		c.docs = append(c.docs, doc)
	}
}

// SetDocuments replaces a collection's documents wholesale.
func (m *MockCosmos) SetDocuments(db, coll string, docs []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.collection(db, coll); c != nil {
		c.docs = docs
	}
}

// Documents returns a copy of a collection's documents.
func (m *MockCosmos) Documents(db, coll string) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.collection(db, coll)
	if c == nil {
		return nil
	}
	docs := make([]map[string]any, len(c.docs))
	copy(docs, c.docs)
	return docs
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCosmos) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

func (m *MockCosmos) ensureDatabase(db string) *mockDatabase {
	if d, exists := m.databases[db]; exists {
		return d
	}
	d := &mockDatabase{collections: make(map[string]*mockCollection)}
	m.databases[db] = d
	return d
}

func (m *MockCosmos) collection(db, coll string) *mockCollection {
	d, exists := m.databases[db]
	if !exists {
		return nil
	}
	return d.collections[coll]
}

func (m *MockCosmos) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	m.mu.Unlock()

	if m.FailPath != "" && strings.Contains(r.URL.Path, m.FailPath) {
		status := m.FailStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"message": "injected failure"})
		return
	}

	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodPost && len(segments) == 1 && segments[0] == "dbs":
		m.handleCreateDatabase(w, r)
	case r.Method == http.MethodPost && len(segments) == 3 && segments[2] == "colls":
		m.handleCreateCollection(w, r, segments[1])
	case r.Method == http.MethodGet && len(segments) == 3 && segments[2] == "colls":
		m.handleListCollections(w, segments[1])
	case r.Method == http.MethodDelete && len(segments) == 4 && segments[2] == "colls":
		m.handleDeleteCollection(w, segments[1], segments[3])
	case r.Method == http.MethodGet && len(segments) == 4 && segments[2] == "colls":
		m.handleGetCollection(w, segments[1], segments[3])
	case len(segments) == 5 && segments[4] == "docs":
		m.handleDocs(w, r, segments[1], segments[3])
	case r.Method == http.MethodGet && len(segments) == 5 && segments[4] == "pkranges":
		m.handlePartitionKeyRanges(w, segments[1], segments[3])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown path " + r.URL.Path})
	}
}

func (m *MockCosmos) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid database body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.databases[body.ID]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "database already exists"})
		return
	}
	m.ensureDatabase(body.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": body.ID})
}

func (m *MockCosmos) handleCreateCollection(w http.ResponseWriter, r *http.Request, db string) {
	var body struct {
		ID           string `json:"id"`
		PartitionKey *struct {
			Paths []string `json:"paths"`
		} `json:"partitionKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid collection body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, exists := m.databases[db]
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "database not found"})
		return
	}
	if _, exists := d.collections[body.ID]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "collection already exists"})
		return
	}

	pkPath := ""
	if body.PartitionKey != nil && len(body.PartitionKey.Paths) > 0 {
		pkPath = body.PartitionKey.Paths[0]
	}
	d.collections[body.ID] = &mockCollection{
		id:     body.ID,
		pkPath: pkPath,
		ranges: []PartitionKeyRange{{ID: "0", MinInclusive: "", MaxExclusive: "FF"}},
	}
	d.order = append(d.order, body.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": body.ID})
}

func (m *MockCosmos) handleListCollections(w http.ResponseWriter, db string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, exists := m.databases[db]
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "database not found"})
		return
	}

	colls := make([]map[string]any, 0, len(d.order))
	for _, name := range d.order {
		colls = append(colls, collectionMetadata(d.collections[name]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"DocumentCollections": colls,
		"_count":              len(colls),
	})
}

func (m *MockCosmos) handleDeleteCollection(w http.ResponseWriter, db, coll string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, exists := m.databases[db]
	if !exists || d.collections[coll] == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "collection not found"})
		return
	}
	delete(d.collections, coll)
	for i, name := range d.order {
		if name == coll {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockCosmos) handleGetCollection(w http.ResponseWriter, db, coll string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.collection(db, coll)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "collection not found"})
		return
	}
	writeJSON(w, http.StatusOK, collectionMetadata(c))
}

func (m *MockCosmos) handlePartitionKeyRanges(w http.ResponseWriter, db, coll string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.collection(db, coll)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "collection not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"PartitionKeyRanges": c.ranges,
		"_count":             len(c.ranges),
	})
}

func (m *MockCosmos) handleDocs(w http.ResponseWriter, r *http.Request, db, coll string) {
	isQuery := r.Header.Get("x-ms-documentdb-isquery") == "true"

	switch {
	case r.Method == http.MethodGet || (r.Method == http.MethodPost && isQuery):
		m.handleReadDocs(w, r, db, coll, isQuery)
	case r.Method == http.MethodPost:
		m.handleCreateDocument(w, r, db, coll)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "unsupported method"})
	}
}

func (m *MockCosmos) handleCreateDocument(w http.ResponseWriter, r *http.Request, db, coll string) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid document body"})
		return
	}
	id, _ := doc["id"].(string)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "document id is required"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(db, coll)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "collection not found"})
		return
	}
	for _, existing := range c.docs {
		if existing["id"] == id {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "document already exists"})
			return
		}
	}

	c.docs = append(c.docs, doc)
	w.Header().Set("x-ms-request-charge", fmt.Sprintf("%g", m.PageCharge))
	writeJSON(w, http.StatusCreated, doc)
}

// handleReadDocs serves the list and query paths, both paged. COUNT queries
// get a scalar result; everything else pages through the (optionally
// range-scoped) document list via an index-based continuation token.
func (m *MockCosmos) handleReadDocs(w http.ResponseWriter, r *http.Request, db, coll string, isQuery bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.collection(db, coll)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "collection not found"})
		return
	}

	if isQuery {
		var query struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&query); err == nil &&
			strings.Contains(strings.ToUpper(query.Query), "COUNT(") {
			w.Header().Set("x-ms-request-charge", fmt.Sprintf("%g", m.PageCharge))
			writeJSON(w, http.StatusOK, map[string]any{
				"Documents": []int{len(c.docs)},
				"_count":    1,
			})
			return
		}
	}

	docs := c.docs
	if rangeID := r.Header.Get("x-ms-documentdb-partitionkeyrangeid"); rangeID != "" {
		docs = docsForRange(c, rangeID)
	}

	maxItems := len(docs)
	if v := r.Header.Get("x-ms-max-item-count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxItems = n
		}
	}

	start := 0
	if v := r.Header.Get("x-ms-continuation"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}

	end := start + maxItems
	if end > len(docs) {
		end = len(docs)
	}
	page := docs[start:end]

	w.Header().Set("x-ms-request-charge", fmt.Sprintf("%g", m.PageCharge))
	if end < len(docs) {
		w.Header().Set("x-ms-continuation", strconv.Itoa(end))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"Documents": page,
		"_count":    len(page),
	})
}

// docsForRange assigns documents to ranges round-robin by insertion index.
func docsForRange(c *mockCollection, rangeID string) []map[string]any {
	rangeIndex := -1
	for i, r := range c.ranges {
		if r.ID == rangeID {
			rangeIndex = i
			break
		}
	}
	if rangeIndex < 0 {
		return nil
	}

	var docs []map[string]any
	for i, doc := range c.docs {
		if i%len(c.ranges) == rangeIndex {
			docs = append(docs, doc)
		}
	}
	return docs
}

func collectionMetadata(c *mockCollection) map[string]any {
	metadata := map[string]any{"id": c.id}
	if c.pkPath != "" {
		metadata["partitionKey"] = map[string]any{
			"paths": []string{c.pkPath},
			"kind":  "Hash",
		}
	}
	return metadata
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

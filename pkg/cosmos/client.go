// Package cosmos implements a signed-request client for a Cosmos DB-style
// document database REST surface: database/collection lifecycle, document
// creation, and paged document reads carrying request-charge and
// continuation-token metadata.
package cosmos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Request/response headers of the Cosmos REST surface.
const (
	headerDate                 = "x-ms-date"
	headerVersion              = "x-ms-version"
	headerMaxItemCount         = "x-ms-max-item-count"
	headerContinuation         = "x-ms-continuation"
	headerRequestCharge        = "x-ms-request-charge"
	headerPartitionKey         = "x-ms-documentdb-partitionkey"
	headerPartitionKeyRangeID  = "x-ms-documentdb-partitionkeyrangeid"
	headerIsQuery              = "x-ms-documentdb-isquery"
	headerEnableCrossPartition = "x-ms-documentdb-query-enablecrosspartition"

	apiVersion       = "2018-12-31"
	queryContentType = "application/query+json"
)

// Prometheus metrics for database requests.
var (
	cosmosRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedctl_cosmos_requests_total",
		Help: "Total database requests by operation and status",
	}, []string{"operation", "status"})

	cosmosRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seedctl_cosmos_request_duration_seconds",
		Help:    "Database request duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	cosmosRequestChargeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedctl_cosmos_request_charge_total",
		Help: "Cumulative request units consumed by operation",
	}, []string{"operation"})
)

// Config holds the client configuration.
type Config struct {
	// Endpoint is the account endpoint, e.g. "https://localhost:8081".
	Endpoint string

	// Key is the base64-encoded master key used to sign requests.
	Key string

	// Timeout is the per-request HTTP timeout (default 30s).
	Timeout time.Duration
}

// Client issues signed requests against one database account.
// It is reused serially across collections; it has no internal locking.
type Client struct {
	httpClient *http.Client
	endpoint   string
	key        []byte
	logger     zerolog.Logger
}

// New creates a new signed-request client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("account key is required")
	}

	key, err := decodeKey(cfg.Key)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		key:        key,
		logger:     log.With().Str("component", "cosmos-client").Logger(),
	}, nil
}

// NewFromConnectionString creates a client from an
// "AccountEndpoint=...;AccountKey=...;" connection string.
func NewFromConnectionString(connectionString string) (*Client, error) {
	cs, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	return New(Config{Endpoint: cs.Endpoint, Key: cs.Key})
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// response carries the parts of a REST response the resource operations need.
type response struct {
	body          []byte
	continuation  string
	requestCharge float64
}

// do signs and executes one request. Non-2xx statuses become a *Error
// carrying the status and response body; the caller decides whether the
// status is fatal (conflicts on create are success for seeding).
func (c *Client) do(ctx context.Context, operation, verb, resourceType, resourceLink, path string, headers map[string]string, body []byte) (*response, error) {
	start := time.Now()
	defer func() {
		cosmosRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, verb, c.endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	date := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set(headerDate, date)
	req.Header.Set(headerVersion, apiVersion)
	req.Header.Set("Authorization", authToken(c.key, verb, resourceType, resourceLink, date))
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cosmosRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		c.logger.Error().Err(err).Str("operation", operation).Msg("Database request failed")
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response body: %w", operation, err)
	}

	cosmosRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	charge := parseRequestCharge(resp.Header)
	cosmosRequestChargeTotal.WithLabelValues(operation).Add(charge)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Str("operation", operation).
			Int("status_code", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("Non-success database response")
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Operation:  operation,
			Body:       string(respBody),
		}
	}

	c.logger.Debug().
		Str("operation", operation).
		Int("status_code", resp.StatusCode).
		Float64("request_charge", charge).
		Msg("Database request complete")

	return &response{
		body:          respBody,
		continuation:  resp.Header.Get(headerContinuation),
		requestCharge: charge,
	}, nil
}

// parseRequestCharge reads the RU cost header; absent or malformed means 0.
func parseRequestCharge(headers http.Header) float64 {
	chargeStr := headers.Get(headerRequestCharge)
	if chargeStr == "" {
		return 0
	}
	charge, err := strconv.ParseFloat(chargeStr, 64)
	if err != nil {
		return 0
	}
	return charge
}

// CreateDatabase creates a database. A 409 conflict surfaces as a *Error;
// use IsConflict for idempotent create-if-not-exists behavior.
func (c *Client) CreateDatabase(ctx context.Context, db string) error {
	body, err := json.Marshal(Database{ID: db})
	if err != nil {
		return fmt.Errorf("marshal database body: %w", err)
	}
	_, err = c.do(ctx, "create_database", http.MethodPost, "dbs", "", "/dbs", nil, body)
	return err
}

// CreateCollection creates a collection with a hash partition key at
// pkPath (e.g. "/pk").
func (c *Client) CreateCollection(ctx context.Context, db, coll, pkPath string) error {
	body, err := json.Marshal(Collection{
		ID: coll,
		PartitionKey: &PartitionKeyDef{
			Paths: []string{pkPath},
			Kind:  "Hash",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal collection body: %w", err)
	}
	link := "dbs/" + db
	_, err = c.do(ctx, "create_collection", http.MethodPost, "colls", link, "/"+link+"/colls", nil, body)
	return err
}

// DeleteCollection deletes a collection and all of its documents.
func (c *Client) DeleteCollection(ctx context.Context, db, coll string) error {
	link := "dbs/" + db + "/colls/" + coll
	_, err := c.do(ctx, "delete_collection", http.MethodDelete, "colls", link, "/"+link, nil, nil)
	return err
}

// ListCollections lists the collections of a database.
func (c *Client) ListCollections(ctx context.Context, db string) ([]Collection, error) {
	link := "dbs/" + db
	resp, err := c.do(ctx, "list_collections", http.MethodGet, "colls", link, "/"+link+"/colls", nil, nil)
	if err != nil {
		return nil, err
	}

	var envelope collectionsEnvelope
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return nil, fmt.Errorf("parse collection listing: %w", err)
	}
	return envelope.DocumentCollections, nil
}

// GetCollection fetches collection metadata, including the partition key
// definition the export engine uses to choose its strategy.
func (c *Client) GetCollection(ctx context.Context, db, coll string) (*Collection, error) {
	link := "dbs/" + db + "/colls/" + coll
	resp, err := c.do(ctx, "get_collection", http.MethodGet, "colls", link, "/"+link, nil, nil)
	if err != nil {
		return nil, err
	}

	var collection Collection
	if err := json.Unmarshal(resp.body, &collection); err != nil {
		return nil, fmt.Errorf("parse collection metadata: %w", err)
	}
	return &collection, nil
}

// CreateDocument creates a document. The partition key travels in the
// transport header as a single-element JSON array.
func (c *Client) CreateDocument(ctx context.Context, db, coll, partitionKey string, doc map[string]any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	pkHeader, err := json.Marshal([]string{partitionKey})
	if err != nil {
		return fmt.Errorf("marshal partition key header: %w", err)
	}

	link := "dbs/" + db + "/colls/" + coll
	headers := map[string]string{
		headerPartitionKey: string(pkHeader),
	}
	_, err = c.do(ctx, "create_document", http.MethodPost, "docs", link, "/"+link+"/docs", headers, body)
	return err
}

// ListDocuments reads one page of a collection's document feed.
func (c *Client) ListDocuments(ctx context.Context, db, coll string, opts PageOptions) (*DocumentPage, error) {
	link := "dbs/" + db + "/colls/" + coll

	headers := map[string]string{}
	if opts.MaxItemCount > 0 {
		headers[headerMaxItemCount] = strconv.Itoa(opts.MaxItemCount)
	}
	if opts.Continuation != "" {
		headers[headerContinuation] = opts.Continuation
	}
	if opts.PartitionKeyRangeID != "" {
		headers[headerPartitionKeyRangeID] = opts.PartitionKeyRangeID
	}

	resp, err := c.do(ctx, "list_documents", http.MethodGet, "docs", link, "/"+link+"/docs", headers, nil)
	if err != nil {
		return nil, err
	}
	return parseDocumentPage(resp)
}

// QueryDocuments runs a query against one page of a collection, optionally
// scoped to a single partition key range.
func (c *Client) QueryDocuments(ctx context.Context, db, coll string, query Query, opts PageOptions) (*DocumentPage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	link := "dbs/" + db + "/colls/" + coll
	headers := map[string]string{
		"Content-Type":             queryContentType,
		headerIsQuery:              "true",
		headerEnableCrossPartition: "true",
	}
	if opts.MaxItemCount > 0 {
		headers[headerMaxItemCount] = strconv.Itoa(opts.MaxItemCount)
	}
	if opts.Continuation != "" {
		headers[headerContinuation] = opts.Continuation
	}
	if opts.PartitionKeyRangeID != "" {
		headers[headerPartitionKeyRangeID] = opts.PartitionKeyRangeID
	}

	resp, err := c.do(ctx, "query_documents", http.MethodPost, "docs", link, "/"+link+"/docs", headers, body)
	if err != nil {
		return nil, err
	}
	return parseDocumentPage(resp)
}

// PartitionKeyRanges lists the collection's partition key ranges.
func (c *Client) PartitionKeyRanges(ctx context.Context, db, coll string) ([]PartitionKeyRange, error) {
	link := "dbs/" + db + "/colls/" + coll
	resp, err := c.do(ctx, "partition_key_ranges", http.MethodGet, "pkranges", link, "/"+link+"/pkranges", nil, nil)
	if err != nil {
		return nil, err
	}

	var envelope pkRangesEnvelope
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return nil, fmt.Errorf("parse partition key ranges: %w", err)
	}
	return envelope.PartitionKeyRanges, nil
}

// DocumentCount returns the collection's document count via a
// SELECT VALUE COUNT(1) query.
func (c *Client) DocumentCount(ctx context.Context, db, coll string) (int, error) {
	body, err := json.Marshal(Query{Query: "SELECT VALUE COUNT(1) FROM c"})
	if err != nil {
		return 0, fmt.Errorf("marshal count query: %w", err)
	}

	link := "dbs/" + db + "/colls/" + coll
	headers := map[string]string{
		"Content-Type":             queryContentType,
		headerIsQuery:              "true",
		headerEnableCrossPartition: "true",
	}
	resp, err := c.do(ctx, "document_count", http.MethodPost, "docs", link, "/"+link+"/docs", headers, body)
	if err != nil {
		return 0, err
	}

	var envelope struct {
		Documents []int `json:"Documents"`
	}
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return 0, fmt.Errorf("parse count result: %w", err)
	}
	if len(envelope.Documents) == 0 {
		return 0, nil
	}
	return envelope.Documents[0], nil
}

// parseDocumentPage decodes a document feed response.
func parseDocumentPage(resp *response) (*DocumentPage, error) {
	var envelope documentsEnvelope
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return nil, fmt.Errorf("parse document feed: %w", err)
	}
	return &DocumentPage{
		Documents:     envelope.Documents,
		Continuation:  resp.continuation,
		RequestCharge: resp.requestCharge,
	}, nil
}

package cosmos

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/seedctl/seedctl/internal/testutil"
)

func newTestClient(t *testing.T, mock *testutil.MockCosmos) *Client {
	t.Helper()

	client, err := New(Config{
		Endpoint: mock.URL(),
		Key:      base64.StdEncoding.EncodeToString([]byte("a-test-master-key")),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name: "valid config",
			config: Config{
				Endpoint: "https://localhost:8081",
				Key:      base64.StdEncoding.EncodeToString([]byte("key")),
			},
			expectError: false,
		},
		{
			name:        "missing endpoint",
			config:      Config{Key: "Zm9v"},
			expectError: true,
		},
		{
			name:        "missing key",
			config:      Config{Endpoint: "https://localhost:8081"},
			expectError: true,
		},
		{
			name: "invalid key encoding",
			config: Config{
				Endpoint: "https://localhost:8081",
				Key:      "not base64 !!!",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.expectError && err == nil {
				t.Error("expected an error")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateDatabase_ConflictDetectable(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	client := newTestClient(t, mock)
	ctx := context.Background()

	if err := client.CreateDatabase(ctx, "mydb"); err != nil {
		t.Fatalf("first CreateDatabase() error = %v", err)
	}

	err := client.CreateDatabase(ctx, "mydb")
	if err == nil {
		t.Fatal("second CreateDatabase() should conflict")
	}
	if !IsConflict(err) {
		t.Errorf("expected a conflict error, got %v", err)
	}
}

func TestCreateDocument_PartitionKeyHeader(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	mock.CreateCollection("mydb", "orders", "/pk")
	client := newTestClient(t, mock)

	doc := map[string]any{"id": "doc-1", "pk": "tenant-a", "name": "first"}
	if err := client.CreateDocument(context.Background(), "mydb", "orders", "tenant-a", doc); err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	// The partition key travels as a single-element JSON array.
	header := mock.LastRequestHeader.Get("x-ms-documentdb-partitionkey")
	if header != `["tenant-a"]` {
		t.Errorf("partition key header = %q, want [\"tenant-a\"]", header)
	}

	docs := mock.Documents("mydb", "orders")
	if len(docs) != 1 {
		t.Fatalf("stored document count = %d, want 1", len(docs))
	}
	if docs[0]["name"] != "first" {
		t.Errorf("stored payload = %v", docs[0])
	}
}

func TestCreateDocument_Conflict(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	mock.CreateCollection("mydb", "orders", "/pk")
	client := newTestClient(t, mock)
	ctx := context.Background()

	doc := map[string]any{"id": "doc-1", "pk": "doc-1"}
	if err := client.CreateDocument(ctx, "mydb", "orders", "doc-1", doc); err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	err := client.CreateDocument(ctx, "mydb", "orders", "doc-1", doc)
	if !IsConflict(err) {
		t.Errorf("duplicate create should conflict, got %v", err)
	}
}

func TestListDocuments_Paging(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	mock.CreateCollection("mydb", "orders", "")
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		mock.SeedDocument("mydb", "orders", map[string]any{"id": id})
	}
	client := newTestClient(t, mock)
	ctx := context.Background()

	var all []string
	continuation := ""
	pages := 0
	for {
		page, err := client.ListDocuments(ctx, "mydb", "orders", PageOptions{
			MaxItemCount: 2,
			Continuation: continuation,
		})
		if err != nil {
			t.Fatalf("ListDocuments() error = %v", err)
		}
		pages++
		for _, doc := range page.Documents {
			all = append(all, doc["id"].(string))
		}
		if page.RequestCharge <= 0 {
			t.Error("expected a positive request charge")
		}
		continuation = page.Continuation
		if continuation == "" {
			break
		}
	}

	if pages != 3 {
		t.Errorf("page count = %d, want 3", pages)
	}
	if len(all) != 5 {
		t.Errorf("document count = %d, want 5", len(all))
	}
}

func TestGetCollection_PartitionKeyPath(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	mock.CreateCollection("mydb", "orders", "/pk")
	mock.CreateCollection("mydb", "plain", "")
	client := newTestClient(t, mock)
	ctx := context.Background()

	coll, err := client.GetCollection(ctx, "mydb", "orders")
	if err != nil {
		t.Fatalf("GetCollection() error = %v", err)
	}
	if coll.PartitionKeyPath() != "/pk" {
		t.Errorf("partition key path = %q, want /pk", coll.PartitionKeyPath())
	}

	plain, err := client.GetCollection(ctx, "mydb", "plain")
	if err != nil {
		t.Fatalf("GetCollection() error = %v", err)
	}
	if plain.PartitionKeyPath() != "" {
		t.Errorf("partition key path = %q, want empty", plain.PartitionKeyPath())
	}
}

func TestPartitionKeyRanges(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	mock.CreateCollection("mydb", "orders", "/pk")
	mock.SetPartitionKeyRanges("mydb", "orders", []testutil.PartitionKeyRange{
		{ID: "0", MinInclusive: "", MaxExclusive: "7F"},
		{ID: "1", MinInclusive: "7F", MaxExclusive: "FF"},
	})
	client := newTestClient(t, mock)

	ranges, err := client.PartitionKeyRanges(context.Background(), "mydb", "orders")
	if err != nil {
		t.Fatalf("PartitionKeyRanges() error = %v", err)
	}
	if len(ranges) != 2 {
		t.Fatalf("range count = %d, want 2", len(ranges))
	}
	if ranges[0].ID != "0" || ranges[1].ID != "1" {
		t.Errorf("unexpected range ids: %v", ranges)
	}
	if ranges[1].MinInclusive != "7F" || ranges[1].MaxExclusive != "FF" {
		t.Errorf("unexpected range bounds: %+v", ranges[1])
	}
}

func TestQueryDocuments_RangeScoped(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	mock.CreateCollection("mydb", "orders", "/pk")
	mock.SetPartitionKeyRanges("mydb", "orders", []testutil.PartitionKeyRange{
		{ID: "0", MinInclusive: "", MaxExclusive: "7F"},
		{ID: "1", MinInclusive: "7F", MaxExclusive: "FF"},
	})
	for _, id := range []string{"a", "b", "c", "d"} {
		mock.SeedDocument("mydb", "orders", map[string]any{"id": id, "pk": id})
	}
	client := newTestClient(t, mock)
	ctx := context.Background()

	total := 0
	for _, rangeID := range []string{"0", "1"} {
		page, err := client.QueryDocuments(ctx, "mydb", "orders",
			Query{Query: "SELECT * FROM c"},
			PageOptions{MaxItemCount: 10, PartitionKeyRangeID: rangeID})
		if err != nil {
			t.Fatalf("QueryDocuments(range %s) error = %v", rangeID, err)
		}
		total += len(page.Documents)
	}

	if total != 4 {
		t.Errorf("range-scoped documents = %d, want all 4", total)
	}
}

func TestDocumentCount(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	mock.CreateCollection("mydb", "orders", "/pk")
	for _, id := range []string{"a", "b", "c"} {
		mock.SeedDocument("mydb", "orders", map[string]any{"id": id})
	}
	client := newTestClient(t, mock)

	count, err := client.DocumentCount(context.Background(), "mydb", "orders")
	if err != nil {
		t.Fatalf("DocumentCount() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestListCollections(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	mock.CreateCollection("mydb", "orders", "/pk")
	mock.CreateCollection("mydb", "users", "/pk")
	client := newTestClient(t, mock)

	colls, err := client.ListCollections(context.Background(), "mydb")
	if err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	if len(colls) != 2 {
		t.Fatalf("collection count = %d, want 2", len(colls))
	}
	if colls[0].ID != "orders" || colls[1].ID != "users" {
		t.Errorf("unexpected collections: %v", colls)
	}
}

func TestDeleteCollection_NotFound(t *testing.T) {
	mock := testutil.NewMockCosmos()
	defer mock.Close()
	mock.CreateDatabase("mydb")
	client := newTestClient(t, mock)

	err := client.DeleteCollection(context.Background(), "mydb", "absent")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

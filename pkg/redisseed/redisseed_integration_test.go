//go:build integration

package redisseed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestSeeder_Integration_Run(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	dir := t.TempDir()
	files := map[string]string{
		"a.json": `{"seedConfig": {"id": "o-1", "db": "shop", "container": "orders"}, "seedData": {"total": 10}}`,
		"b.json": `{"seedConfig": {"id": "d-1"}, "seedData": {"name": "default placement"}}`,
		"c.json": `{broken`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	seeder, err := New(redisClient, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	written, failed, err := seeder.Run(ctx, dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if written != 2 {
		t.Errorf("written = %d, want 2", written)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1 (the broken file)", failed)
	}

	value, err := redisClient.Get(ctx, "shop:orders:o-1").Result()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != `{"total":10}` {
		t.Errorf("stored value = %q, want the payload JSON", value)
	}

	if err := redisClient.Get(ctx, "seed:items:d-1").Err(); err != nil {
		t.Errorf("default-placed key missing: %v", err)
	}
}

func TestSeeder_Integration_RerunOverwrites(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	if err := os.WriteFile(path, []byte(`{"seedConfig": {"id": "x"}, "seedData": {"v": 1}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	seeder, err := New(redisClient, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if _, _, err := seeder.Run(ctx, dir); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"seedConfig": {"id": "x"}, "seedData": {"v": 2}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := seeder.Run(ctx, dir); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	value, err := redisClient.Get(ctx, "seed:items:x").Result()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != `{"v":2}` {
		t.Errorf("stored value = %q, want the refreshed payload", value)
	}
}

package storage

import (
	"context"
	"os"
	"testing"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CELLMLHUB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CELLMLHUB_TEST_POSTGRES_DSN is not set")
	}
	ctx := context.Background()
	store := NewPostgresStore(dsn)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.db.ExecContext(context.Background(), `DROP TABLE IF EXISTS entities`)
		_ = store.Close()
	})
	if _, err := store.db.ExecContext(ctx, `TRUNCATE entities`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseStore(t, store)
}

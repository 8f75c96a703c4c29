package storage

import (
	"context"
	"errors"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	if err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestNewStorePostgresNeedsDSN(t *testing.T) {
	store, err := NewStore("postgres", "")
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	if err := store.Init(context.Background()); err == nil {
		t.Fatal("expected missing data source error")
	}
	if _, err := store.LoadGraph(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestDefaultStoreKindIsBuildable(t *testing.T) {
	if _, err := NewStore(DefaultStoreKind(), t.TempDir()+"/cellml.db"); err != nil {
		t.Fatalf("default store kind %q: %v", DefaultStoreKind(), err)
	}
}

//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"cellmlhub/internal/model"
)

func TestSQLiteStore(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "cellml.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	exerciseStore(t, store)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cellml.db")

	store := NewSQLiteStore(path)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	g := model.NewGraph()
	mustAdd(t, g, &model.Model{Named: model.Named{ID: "m1", Name: "hh", Owner: "alice"}})
	if err := store.Apply(ctx, model.Diff(model.NewGraph(), g)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewSQLiteStore(path)
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	e, ok, err := reopened.GetEntity(ctx, model.Ref{Kind: model.KindModel, ID: "m1"})
	if err != nil || !ok {
		t.Fatalf("get model: ok=%v err=%v", ok, err)
	}
	if e.Base().Owner != "alice" {
		t.Fatalf("unexpected owner: %q", e.Base().Owner)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
}

package storage

import (
	"context"
	"errors"

	"cellmlhub/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store persists the entity arena. Apply writes a whole change set or
// nothing.
type Store interface {
	Init(ctx context.Context) error
	LoadGraph(ctx context.Context) (*model.Graph, error)
	Apply(ctx context.Context, changes model.ChangeSet) error
	GetEntity(ctx context.Context, ref model.Ref) (model.Entity, bool, error)
	ListEntities(ctx context.Context, kind model.Kind) ([]model.Entity, error)
}

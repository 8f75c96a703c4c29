package storage

import "fmt"

// NewStore builds a backend by name. location is the database file for
// sqlite and the connection string for postgres.
func NewStore(kind, location string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(location)
	case "postgres":
		return NewPostgresStore(location), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// DefaultStoreKind is sqlite when the build includes it, memory otherwise.
func DefaultStoreKind() string {
	return defaultStoreKind
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

//go:build sqlite

package storage

import (
	_ "modernc.org/sqlite"
)

const defaultStoreKind = "sqlite"

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: `
		CREATE TABLE IF NOT EXISTS entities (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			owner TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			UNIQUE (kind, id)
		);
		CREATE INDEX IF NOT EXISTS entities_kind_seq ON entities (kind, seq);
	`,
}

func NewSQLiteStore(path string) *SQLStore {
	return newSQLStore(sqliteDialect, path)
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

package storage

import (
	_ "github.com/jackc/pgx/v4/stdlib"
)

var postgresDialect = dialect{
	name:     "postgres",
	driver:   "pgx",
	numbered: true,
	schema: `
		CREATE TABLE IF NOT EXISTS entities (
			seq BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			owner TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BYTEA NOT NULL,
			UNIQUE (kind, id)
		);
		CREATE INDEX IF NOT EXISTS entities_kind_seq ON entities (kind, seq);
	`,
}

// NewPostgresStore connects through the pgx database/sql driver; dsn is
// any connection string pgx accepts.
func NewPostgresStore(dsn string) *SQLStore {
	return newSQLStore(postgresDialect, dsn)
}

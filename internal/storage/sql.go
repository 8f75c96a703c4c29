package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cellmlhub/internal/model"
)

// dialect holds what differs between the relational backends.
type dialect struct {
	name   string
	driver string
	schema string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

// SQLStore keeps every entity as one row of a single table: indexed
// columns for the fields listings filter on plus the versioned payload.
type SQLStore struct {
	dialect dialect
	dsn     string

	mu sync.RWMutex
	db *sql.DB
}

func newSQLStore(d dialect, dsn string) *SQLStore {
	return &SQLStore{dialect: d, dsn: dsn}
}

func (s *SQLStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return fmt.Errorf("%s data source is required", s.dialect.name)
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open(s.dialect.driver, s.dsn)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if _, err := db.ExecContext(ctx, s.dialect.schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create %s tables: %w", s.dialect.name, err)
	}

	s.db = db
	return nil
}

func (s *SQLStore) LoadGraph(ctx context.Context) (*model.Graph, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT kind, id, payload FROM entities ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	g := model.NewGraph()
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		if err := g.Put(e); err != nil {
			return nil, err
		}
	}
	return g, rows.Err()
}

func (s *SQLStore) Apply(ctx context.Context, changes model.ChangeSet) (err error) {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upsert := s.bind(`
		INSERT INTO entities (kind, id, name, owner, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			name = excluded.name,
			owner = excluded.owner,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`)
	for _, e := range changes.Upserts {
		payload, encErr := EncodeEntity(e)
		if encErr != nil {
			return encErr
		}
		base := e.Base()
		if _, err = tx.ExecContext(ctx, upsert,
			string(e.Kind()), base.ID, base.Name, string(base.Owner),
			CurrentSchemaVersion, CurrentCodecVersion, payload,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", model.RefOf(e), err)
		}
	}

	remove := s.bind(`DELETE FROM entities WHERE kind = ? AND id = ?`)
	for _, ref := range changes.Deletes {
		if _, err = tx.ExecContext(ctx, remove, string(ref.Kind), ref.ID); err != nil {
			return fmt.Errorf("delete %s: %w", ref, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetEntity(ctx context.Context, ref model.Ref) (model.Entity, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	row := db.QueryRowContext(ctx, s.bind(`SELECT kind, id, payload FROM entities WHERE kind = ? AND id = ?`), string(ref.Kind), ref.ID)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return e, true, nil
}

func (s *SQLStore) ListEntities(ctx context.Context, kind model.Kind) ([]model.Entity, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if _, err := model.New(kind); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, s.bind(`SELECT kind, id, payload FROM entities WHERE kind = ? ORDER BY seq`), string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// bind rewrites ? placeholders for dialects that number them.
func (s *SQLStore) bind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (model.Entity, error) {
	var (
		kind, id string
		payload  []byte
	)
	if err := row.Scan(&kind, &id, &payload); err != nil {
		return nil, err
	}
	e, err := DecodeEntity(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s:%s: %w", kind, id, err)
	}
	return e, nil
}

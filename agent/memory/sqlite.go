package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS memory_items (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
)`

const sqliteUpsert = `
INSERT INTO memory_items (namespace, key, value, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (namespace, key) DO UPDATE SET
	value = json_patch(memory_items.value, excluded.value),
	updated_at = excluded.updated_at`

// SQLiteStore keeps items in a local SQLite file through the pure-Go modernc
// driver. Values are JSON text merged with json_patch on upsert.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps SQLITE_BUSY away
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create memory_items: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	payload, err := json.Marshal(merge(nil, value))
	if err != nil {
		return fmt.Errorf("encode memory value: %w", err)
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	if _, err := s.db.ExecContext(ctx, sqliteUpsert, joinNamespace(namespace), key, string(payload), now, now); err != nil {
		return fmt.Errorf("put memory item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace []string, key string) (*Item, error) {
	if err := validate(namespace, key); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT namespace, key, value, created_at, updated_at FROM memory_items WHERE namespace = ? AND key = ?`,
		joinNamespace(namespace), key)

	item, err := scanSQLiteItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory item: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) Search(ctx context.Context, namespace []string) ([]Item, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace, key, value, created_at, updated_at FROM memory_items WHERE namespace = ? ORDER BY key ASC`,
		joinNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("search memory items: %w", err)
	}
	defer rows.Close()

	out := make([]Item, 0)
	for rows.Next() {
		item, err := scanSQLiteItem(rows)
		if err != nil {
			return nil, fmt.Errorf("search memory items: %w", err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search memory items: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteItem(row rowScanner) (*Item, error) {
	var ns, key, value, created, updated string
	if err := row.Scan(&ns, &key, &value, &created, &updated); err != nil {
		return nil, err
	}

	item := &Item{
		Namespace: splitNamespace(ns),
		Key:       key,
	}
	if err := json.Unmarshal([]byte(value), &item.Value); err != nil {
		return nil, fmt.Errorf("decode memory value: %w", err)
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	item.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return item, nil
}

package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type memoryItemModel struct {
	bun.BaseModel `bun:"table:memory_items,alias:mi"`

	Namespace string         `bun:"namespace,pk"`
	Key       string         `bun:"key,pk"`
	Value     map[string]any `bun:"value,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

func (m *memoryItemModel) toItem() Item {
	return Item{
		Namespace: splitNamespace(m.Namespace),
		Key:       m.Key,
		Value:     m.Value,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// OpenPostgres connects bun to Postgres through pgdriver.
func OpenPostgres(dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// PostgresStore keeps items in a jsonb table. Put merges with the jsonb ||
// operator inside the upsert, so concurrent writers never lose each other's
// fields.
type PostgresStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Init creates the table when it does not exist.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*memoryItemModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create memory_items: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	now := s.now().UTC()
	row := &memoryItemModel{
		Namespace: joinNamespace(namespace),
		Key:       key,
		Value:     merge(nil, value),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (namespace, key) DO UPDATE").
		Set("value = mi.value || EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put memory item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, namespace []string, key string) (*Item, error) {
	if err := validate(namespace, key); err != nil {
		return nil, err
	}

	row := new(memoryItemModel)
	err := s.db.NewSelect().
		Model(row).
		Where("mi.namespace = ?", joinNamespace(namespace)).
		Where("mi.key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory item: %w", err)
	}

	item := row.toItem()
	return &item, nil
}

func (s *PostgresStore) Search(ctx context.Context, namespace []string) ([]Item, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	var rows []memoryItemModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("mi.namespace = ?", joinNamespace(namespace)).
		OrderExpr("mi.key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search memory items: %w", err)
	}

	out := make([]Item, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toItem())
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

package outfit

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

type outfitModel struct {
	bun.BaseModel `bun:"table:outfits,alias:o"`

	ID        string `bun:"id,pk"`
	Date      string `bun:"date,notnull"`
	Title     string `bun:"title"`
	Season    string `bun:"season"`
	Image     string `bun:"image"`
	DressUp   string `bun:"dress_it_up"`
	DressDown string `bun:"dress_it_down"`
}

func (m *outfitModel) toOutfit() *Outfit {
	return &Outfit{
		ID:          m.ID,
		Description: orUnknown(m.Title),
		ImageURL:    m.Image,
		Season:      orUnknown(m.Season),
		DressUp:     m.DressUp,
		DressDown:   m.DressDown,
		Date:        m.Date,
	}
}

type PostgresRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ Repository = (*PostgresRepository)(nil)

func OpenPostgres(dsn string) (*PostgresRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("outfit postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return NewPostgresRepository(bun.NewDB(sqldb, pgdialect.New())), nil
}

func NewPostgresRepository(db *bun.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Init(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*outfitModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create outfits: %w", err)
	}
	return nil
}

// Insert stores one outfit row. Used for seeding.
func (r *PostgresRepository) Insert(ctx context.Context, o Outfit) error {
	if _, err := time.Parse(DateLayout, o.Date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, o.Date)
	}
	row := &outfitModel{
		ID:        o.ID,
		Date:      o.Date,
		Title:     o.Description,
		Season:    o.Season,
		Image:     o.ImageURL,
		DressUp:   o.DressUp,
		DressDown: o.DressDown,
	}
	if _, err := r.db.NewInsert().Model(row).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
		return fmt.Errorf("insert outfit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByDate(ctx context.Context, date string) (*Outfit, error) {
	day, err := resolveDate(date, r.now)
	if err != nil {
		return nil, err
	}

	row := new(outfitModel)
	err = r.db.NewSelect().
		Model(row).
		Where("o.date = ?", day).
		OrderExpr("o.id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outfit by date: %w", err)
	}
	return row.toOutfit(), nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

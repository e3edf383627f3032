package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

type Backend string

const (
	BackendInMemory Backend = "inmemory"
	BackendUpstash  Backend = "upstash"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

type Config struct {
	Backend    Backend       `envconfig:"BACKEND" split_words:"true" default:"inmemory"`
	URL        string        `envconfig:"URL" split_words:"true"`
	Token      string        `envconfig:"TOKEN" split_words:"true"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	KeyPrefix  string        `envconfig:"KEY_PREFIX" split_words:"true" default:"stylist:memory:"`
	TTL        time.Duration `envconfig:"TTL" split_words:"true" default:"0s"`
	DSN        string        `envconfig:"DSN" split_words:"true"`
	SQLitePath string        `envconfig:"SQLITE_PATH" split_words:"true" default:"stylist-memory.db"`
}

// New opens the configured backend. Postgres tables are created on first use.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(string(cfg.Backend)))) {
	case BackendInMemory, "":
		return NewInMemoryStore(), nil
	case BackendUpstash:
		return NewUpstashStore(
			UpstashConfig{URL: cfg.URL, Token: cfg.Token, Timeout: cfg.Timeout},
			WithKeyPrefix(cfg.KeyPrefix),
			WithTTL(cfg.TTL),
		)
	case BackendPostgres:
		db, err := OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(db)
		if err := store.Init(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: unknown memory backend %q", contractx.ErrValidation, cfg.Backend)
	}
}

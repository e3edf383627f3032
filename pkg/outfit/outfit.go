package outfit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	unknown    = "Unknown"
)

var ErrInvalidDate = errors.New("outfit date must be YYYY-MM-DD")

type Backend string

const (
	BackendYAML     Backend = "yaml"
	BackendPostgres Backend = "postgres"
)

type Config struct {
	Backend Backend `split_words:"true" default:"yaml"`
	Path    string  `split_words:"true" default:"outfits.yaml"`
	DSN     string  `split_words:"true"`
}

// Outfit is the outfit of the day as published for one calendar date.
type Outfit struct {
	ID          string
	Description string
	ImageURL    string
	Season      string
	DressUp     string
	DressDown   string
	Date        string
}

// Repository looks up the outfit for a date. An empty date means today.
// A date with no outfit yields (nil, nil).
type Repository interface {
	GetByDate(ctx context.Context, date string) (*Outfit, error)
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config) (Repository, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(string(cfg.Backend)))) {
	case BackendYAML, "":
		return LoadCatalog(cfg.Path)
	case BackendPostgres:
		repo, err := OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := repo.Init(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown outfit backend %q", cfg.Backend)
	}
}

// resolveDate defaults an empty date to today and rejects anything that is
// not a calendar date.
func resolveDate(date string, now func() time.Time) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return now().Format(DateLayout), nil
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return date, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}

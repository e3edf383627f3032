package outfit

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// catalogFile mirrors the published outfit documents: a pattern block with
// title and season, plus image and the two styling variants.
type catalogFile struct {
	Outfits []catalogEntry `yaml:"outfits"`
}

type catalogEntry struct {
	ID       string `yaml:"id"`
	Date     string `yaml:"date"`
	Patterns struct {
		Title  string `yaml:"title"`
		Season string `yaml:"season"`
	} `yaml:"patterns"`
	Image     string `yaml:"image"`
	DressUp   string `yaml:"dress_it_up"`
	DressDown string `yaml:"dress_it_down"`
}

func (e catalogEntry) toOutfit() *Outfit {
	return &Outfit{
		ID:          e.ID,
		Description: orUnknown(e.Patterns.Title),
		ImageURL:    e.Image,
		Season:      orUnknown(e.Patterns.Season),
		DressUp:     e.DressUp,
		DressDown:   e.DressDown,
		Date:        e.Date,
	}
}

// CatalogRepository serves outfits from a YAML file loaded once at startup.
type CatalogRepository struct {
	byDate map[string]catalogEntry
	now    func() time.Time
}

var _ Repository = (*CatalogRepository)(nil)

func LoadCatalog(path string) (*CatalogRepository, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read outfit catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog builds a repository from YAML bytes. The first entry wins when
// two share a date.
func ParseCatalog(raw []byte) (*CatalogRepository, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse outfit catalog: %w", err)
	}

	repo := &CatalogRepository{
		byDate: make(map[string]catalogEntry, len(file.Outfits)),
		now:    time.Now,
	}
	for i, e := range file.Outfits {
		date := strings.TrimSpace(e.Date)
		if _, err := time.Parse(DateLayout, date); err != nil {
			return nil, fmt.Errorf("outfit catalog entry %d: %w", i, ErrInvalidDate)
		}
		e.Date = date
		if _, dup := repo.byDate[date]; !dup {
			repo.byDate[date] = e
		}
	}
	return repo, nil
}

func (r *CatalogRepository) GetByDate(_ context.Context, date string) (*Outfit, error) {
	day, err := resolveDate(date, r.now)
	if err != nil {
		return nil, err
	}
	e, ok := r.byDate[day]
	if !ok {
		return nil, nil
	}
	return e.toOutfit(), nil
}

func (r *CatalogRepository) Len() int { return len(r.byDate) }

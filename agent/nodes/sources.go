package orchestratornode

import (
	"context"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
	"github.com/tanpawarit/ali-stylist-agent/pkg/openmeteo"
	"github.com/tanpawarit/ali-stylist-agent/pkg/outfit"
)

type outfitSource struct {
	repo outfit.Repository
}

// OutfitSource exposes an outfit repository to the turn pipeline.
func OutfitSource(repo outfit.Repository) contractx.OutfitSource {
	if repo == nil {
		return nil
	}
	return outfitSource{repo: repo}
}

func (s outfitSource) GetByDate(ctx context.Context, date string) (*statex.OutfitReference, error) {
	o, err := s.repo.GetByDate(ctx, date)
	if err != nil || o == nil {
		return nil, err
	}
	return &statex.OutfitReference{
		ID:          o.ID,
		Description: o.Description,
		ImageURL:    o.ImageURL,
		Season:      o.Season,
		DressUp:     o.DressUp,
		DressDown:   o.DressDown,
		Date:        o.Date,
	}, nil
}

type environmentSource struct {
	lookup openmeteo.Lookup
}

// EnvironmentSource exposes a weather lookup to the turn pipeline. Error
// reports become errors wrapping openmeteo.ErrLookup.
func EnvironmentSource(lookup openmeteo.Lookup) contractx.EnvironmentSource {
	if lookup == nil {
		return nil
	}
	return environmentSource{lookup: lookup}
}

func (s environmentSource) CurrentEnvironment(ctx context.Context, place string) (*statex.EnvironmentData, error) {
	r := s.lookup.GetCurrentWeather(ctx, place)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return &statex.EnvironmentData{
		Location:    r.Location,
		Temperature: r.Temperature,
		Condition:   r.Condition,
		Source:      r.Source,
	}, nil
}

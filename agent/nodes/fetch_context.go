package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

// FetchContext refreshes the outfit and weather snapshots concurrently. A
// failed or empty lookup clears the snapshot; projection then feeds the
// "not available" placeholder instead.
func FetchContext(
	ctx context.Context,
	in *GraphState,
	outfits contractx.OutfitSource,
	environment contractx.EnvironmentSource,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	st := in.Session
	logger := log.With().Str("session_id", st.SessionID).Str("user_id", st.UserID).Logger()

	var (
		outfit *statex.OutfitReference
		env    *statex.EnvironmentData
	)

	g, gctx := errgroup.WithContext(ctx)
	if outfits != nil {
		g.Go(func() error {
			o, err := outfits.GetByDate(gctx, st.OutfitDate)
			if err != nil {
				logger.Warn().Err(err).Str("date", st.OutfitDate).Msg("outfit lookup failed")
				return nil
			}
			outfit = o
			return nil
		})
	}
	if environment != nil && st.City != "" {
		g.Go(func() error {
			e, err := environment.CurrentEnvironment(gctx, st.City)
			if err != nil {
				logger.Warn().Err(err).Str("city", st.City).Msg("weather lookup failed")
				return nil
			}
			env = e
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st.Outfit = outfit
	st.Environment = env
	return in, nil
}

package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

// LoadSession fetches a private copy of the session. Sessions are created
// explicitly, so a missing id surfaces statex.ErrSessionNotFound.
func LoadSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := store.Load(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	in.Session = st
	return in, nil
}

package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

// CommitSession validates the finished turn and saves it. Nothing before this
// node touches the stored session.
func CommitSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in.Session.Touch(in.Now)
	if err := in.Session.Validate(); err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}
	if err := store.Save(ctx, in.Session); err != nil {
		return nil, err
	}
	return in, nil
}

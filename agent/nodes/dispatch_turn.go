package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/dispatch"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

func AppendUserMessage(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	in.Session.Append(statex.NewMessage(statex.RoleUser, in.Text, in.Now))
	return in, nil
}

// DispatchTurn runs the router/handler loop over the session copy.
func DispatchTurn(
	ctx context.Context,
	in *GraphState,
	graph *dispatch.Graph,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	out, err := graph.Run(ctx, in.Session)
	if err != nil {
		return nil, err
	}
	in.Outcome = out
	return in, nil
}

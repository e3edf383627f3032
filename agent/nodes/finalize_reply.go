package orchestratornode

import (
	"fmt"
	"slices"
	"strings"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Outcome.Reply.Content)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: turn produced no reply", contractx.ErrValidation)
	}
	return GraphOutput{
		SessionID:      in.SessionID,
		Reply:          reply,
		Trace:          slices.Clone(in.Outcome.Trace),
		Degraded:       in.Outcome.Degraded,
		HopLimitHit:    in.Outcome.HopLimitHit,
		SummaryUpdated: in.Outcome.SummaryUpdated,
		PersistErr:     in.Outcome.PersistErr,
	}, nil
}

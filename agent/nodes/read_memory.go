package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

// ReadMemory hydrates the session summary from long-term memory the first
// time a session sees its user. A failed read leaves the session usable and
// is retried next turn.
func ReadMemory(
	ctx context.Context,
	in *GraphState,
	memory contractx.MemoryStore,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	if err := HydrateSummary(ctx, in.Session, memory); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn().Err(err).
			Str("session_id", in.Session.SessionID).
			Str("user_id", in.Session.UserID).
			Msg("memory read failed; continuing without summary")
	}
	return in, nil
}

// HydrateSummary loads the persisted summary into st unless it was already
// loaded for the current user.
func HydrateSummary(ctx context.Context, st *statex.SessionState, memory contractx.MemoryStore) error {
	if st == nil {
		return statex.ErrNilSessionState
	}
	if st.MemoryLoaded || memory == nil {
		return nil
	}

	summary, err := memory.ReadSummary(ctx, st.UserID)
	if err != nil {
		return err
	}
	if summary != "" {
		st.Summary = summary
	}
	st.MemoryLoaded = true
	return nil
}

package orchestratornode

import (
	"errors"
	"strings"
	"time"

	"github.com/tanpawarit/ali-stylist-agent/agent/dispatch"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = statex.ErrInvalidSession
)

// MaxMessageRunes bounds a single user utterance.
const MaxMessageRunes = 4000

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	SessionID      string
	Reply          string
	Trace          []string
	Degraded       bool
	HopLimitHit    bool
	SummaryUpdated bool
	PersistErr     error
}

// GraphState is threaded through every node of one turn. Session is a private
// copy until CommitSession saves it.
type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	Session *statex.SessionState
	Outcome dispatch.Outcome
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}
	if r := []rune(text); len(r) > MaxMessageRunes {
		text = string(r[:MaxMessageRunes])
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}

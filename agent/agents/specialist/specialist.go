package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/directive"
	"github.com/tanpawarit/ali-stylist-agent/agent/projection"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

type specialistImpl struct {
	agentType    contractx.AgentType
	completer    contractx.Completer
	systemPrompt string
}

var _ contractx.Handler = (*specialistImpl)(nil)

func newSpecialist(agentType contractx.AgentType, completer contractx.Completer, systemPrompt string) (*specialistImpl, error) {
	if !agentType.IsHandler() {
		return nil, fmt.Errorf("%w: %q is not a handler identity", contractx.ErrUnknownAgent, agentType)
	}
	if completer == nil {
		return nil, fmt.Errorf("%w: completer is nil for specialist=%s", contractx.ErrValidation, agentType)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: specialist=%s", contractx.ErrPromptMissing, agentType)
	}
	return &specialistImpl{
		agentType:    agentType,
		completer:    completer,
		systemPrompt: systemPrompt,
	}, nil
}

func (s *specialistImpl) Type() contractx.AgentType {
	return s.agentType
}

// Handle generates one reply segment. The output always carries a completion
// marker so the router can recognise it, and never carries a routing line.
func (s *specialistImpl) Handle(ctx context.Context, pc contractx.ProjectedContext, history []statex.Message) (string, error) {
	if pc.Consumer != s.agentType {
		return "", fmt.Errorf("%w: context projected for %s handed to %s", contractx.ErrValidation, pc.Consumer, s.agentType)
	}

	raw, err := s.completer.Complete(ctx, s.systemPrompt, history, projection.Render(pc))
	if err != nil {
		if !errors.Is(err, contractx.ErrModelInvoke) {
			err = fmt.Errorf("%w: specialist=%s: %v", contractx.ErrModelInvoke, s.agentType, err)
		}
		return "", err
	}

	out := strings.TrimSpace(directive.DropRouteLines(raw))
	if out != strings.TrimSpace(raw) {
		log.Warn().Str("agent", string(s.agentType)).Msg("specialist emitted a routing line; dropped")
	}
	if out == "" {
		return "", fmt.Errorf("%w: specialist=%s returned no text", contractx.ErrSchemaViolation, s.agentType)
	}
	if !directive.IsHandlerSignal(out) {
		out = directive.MarkerFinalAnswer + ": " + out
	}
	return out, nil
}

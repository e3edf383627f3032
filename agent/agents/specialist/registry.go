package specialist

import (
	"fmt"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	promptx "github.com/tanpawarit/ali-stylist-agent/agent/prompt"
)

type registryImpl struct {
	router   contractx.Router
	handlers map[contractx.AgentType]contractx.Handler
}

func (r *registryImpl) Router() contractx.Router {
	return r.router
}

func (r *registryImpl) Handler(t contractx.AgentType) (contractx.Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// NewHandlers builds the four specialists from per-identity completers.
func NewHandlers(completers map[contractx.AgentType]contractx.Completer, prompts promptx.PromptSet) ([]contractx.Handler, error) {
	out := make([]contractx.Handler, 0, len(contractx.HandlerTypes))
	for _, t := range contractx.HandlerTypes {
		systemPrompt, err := prompts.For(t)
		if err != nil {
			return nil, err
		}
		h, err := newSpecialist(t, completers[t], systemPrompt)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// NewRegistry pairs the router with one handler per identity. Every identity
// must be covered exactly once.
func NewRegistry(router contractx.Router, handlers ...contractx.Handler) (contractx.Registry, error) {
	if router == nil {
		return nil, fmt.Errorf("%w: router is nil", contractx.ErrValidation)
	}

	byType := make(map[contractx.AgentType]contractx.Handler, len(handlers))
	for _, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("%w: nil handler", contractx.ErrValidation)
		}
		t := h.Type()
		if !t.IsHandler() {
			return nil, fmt.Errorf("%w: %q is not a handler identity", contractx.ErrUnknownAgent, t)
		}
		if _, dup := byType[t]; dup {
			return nil, fmt.Errorf("%w: duplicate handler %s", contractx.ErrValidation, t)
		}
		byType[t] = h
	}
	for _, t := range contractx.HandlerTypes {
		if _, ok := byType[t]; !ok {
			return nil, fmt.Errorf("%w: missing handler %s", contractx.ErrValidation, t)
		}
	}

	return &registryImpl{router: router, handlers: byType}, nil
}

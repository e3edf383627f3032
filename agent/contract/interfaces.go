package contract

import (
	"context"

	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

// Completer is the opaque text-generation backend.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []statex.Message, supplementary string) (string, error)
}

type Router interface {
	Route(ctx context.Context, st *statex.SessionState) (RouteResult, error)
}

type Handler interface {
	Type() AgentType
	Handle(ctx context.Context, pc ProjectedContext, history []statex.Message) (string, error)
}

type Registry interface {
	Router() Router
	Handler(t AgentType) (Handler, bool)
}

type MemoryStore interface {
	ReadSummary(ctx context.Context, userID string) (string, error)
	WriteSummary(ctx context.Context, userID string, summary string) error
}

type OutfitSource interface {
	GetByDate(ctx context.Context, date string) (*statex.OutfitReference, error)
}

type EnvironmentSource interface {
	CurrentEnvironment(ctx context.Context, place string) (*statex.EnvironmentData, error)
}

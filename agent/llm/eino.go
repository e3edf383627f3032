package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

// EinoCompleter runs prompt -> chat model as a compiled eino graph.
type EinoCompleter struct {
	agentType contractx.AgentType
	runner    compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Completer = (*EinoCompleter)(nil)

func NewEinoCompleter(ctx context.Context, agentType contractx.AgentType, chatModel einomodel.BaseChatModel) (*EinoCompleter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is nil for agent=%s", contractx.ErrValidation, agentType)
	}
	runner, err := compileCompletionGraph(ctx, chatModel, "llm."+string(agentType))
	if err != nil {
		return nil, fmt.Errorf("%w: compile completion graph for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}
	return &EinoCompleter{agentType: agentType, runner: runner}, nil
}

func compileCompletionGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	return graph.Compile(ctx, compose.WithGraphName(graphName))
}

func (c *EinoCompleter) Complete(ctx context.Context, systemPrompt string, history []statex.Message, supplementary string) (string, error) {
	started := time.Now()
	out, err := c.runner.Invoke(ctx, map[string]any{
		"system":  systemPrompt,
		"history": ToSchemaMessages(history, supplementary),
	})
	if err != nil {
		return "", fmt.Errorf("%w: agent=%s: %v", contractx.ErrModelInvoke, c.agentType, err)
	}
	if out == nil {
		return "", fmt.Errorf("%w: agent=%s: empty model response", contractx.ErrModelInvoke, c.agentType)
	}

	log.Debug().
		Str("agent", string(c.agentType)).
		Dur("latency", time.Since(started)).
		Int("history", len(history)).
		Msg("completion finished")
	return out.Content, nil
}

// ToSchemaMessages converts history into eino messages and appends the
// supplementary context as a trailing system message.
func ToSchemaMessages(history []statex.Message, supplementary string) []*schema.Message {
	out := make([]*schema.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case statex.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case statex.RoleAssistant:
			msg := schema.AssistantMessage(m.Content, nil)
			msg.Name = m.Author
			out = append(out, msg)
		case statex.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		}
	}
	if s := strings.TrimSpace(supplementary); s != "" {
		out = append(out, schema.SystemMessage(s))
	}
	return out
}

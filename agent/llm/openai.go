package llm

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

// OpenAICompleter calls the chat completions endpoint directly with openai-go.
type OpenAICompleter struct {
	agentType   contractx.AgentType
	client      *openaisdk.Client
	model       string
	temperature float32
	maxTokens   int
}

var _ contractx.Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(agentType contractx.AgentType, client *openaisdk.Client, model string, temperature float32, maxTokens int) (*OpenAICompleter, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	return &OpenAICompleter{
		agentType:   agentType,
		client:      client,
		model:       strings.TrimSpace(model),
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt string, history []statex.Message, supplementary string) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.model),
		Messages:    toOpenAIMessages(systemPrompt, history, supplementary),
		Temperature: openaisdk.Float(float64(c.temperature)),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: agent=%s: %v", contractx.ErrModelInvoke, c.agentType, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: agent=%s: no choices returned", contractx.ErrModelInvoke, c.agentType)
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(systemPrompt string, history []statex.Message, supplementary string) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if s := strings.TrimSpace(systemPrompt); s != "" {
		out = append(out, openaisdk.SystemMessage(s))
	}
	for _, m := range history {
		switch m.Role {
		case statex.RoleUser:
			out = append(out, openaisdk.UserMessage(m.Content))
		case statex.RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(m.Content))
		case statex.RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.Content))
		}
	}
	if s := strings.TrimSpace(supplementary); s != "" {
		out = append(out, openaisdk.SystemMessage(s))
	}
	return out
}

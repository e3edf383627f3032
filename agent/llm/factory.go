package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	openrouterx "github.com/tanpawarit/ali-stylist-agent/pkg/openrouter"
)

const defaultArkBaseURL = "https://ark.cn-beijing.volces.com/api/v3"

// NewCompleter builds the generation backend for one agent identity.
func NewCompleter(ctx context.Context, cfg Config, agentType contractx.AgentType) (contractx.Completer, error) {
	switch cfg.provider() {
	case ProviderOpenAI:
		orCfg := cfg.OpenRouterFor(agentType)
		client := openrouterx.NewClient(orCfg)
		if client == nil {
			return nil, fmt.Errorf("%w: openai client for agent=%s", contractx.ErrValidation, agentType)
		}
		return NewOpenAICompleter(agentType, client, orCfg.Model, orCfg.Temperature, cfg.MaxCompletionToken)
	case ProviderArk:
		chatModel, err := newArkModel(ctx, cfg, agentType)
		if err != nil {
			return nil, err
		}
		return NewEinoCompleter(ctx, agentType, chatModel)
	default:
		orCfg := cfg.OpenRouterFor(agentType)
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agentType, err)
		}
		return NewEinoCompleter(ctx, agentType, chatModel)
	}
}

func newArkModel(ctx context.Context, cfg Config, agentType contractx.AgentType) (einomodel.BaseChatModel, error) {
	modelName, temp := cfg.ModelFor(agentType)

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" || baseURL == openrouterx.DefaultBaseURL {
		baseURL = defaultArkBaseURL
	}

	conf := &ark.ChatModelConfig{
		BaseURL:     baseURL,
		Region:      strings.TrimSpace(cfg.ArkRegion),
		APIKey:      strings.TrimSpace(cfg.APIKey),
		AccessKey:   strings.TrimSpace(cfg.ArkAccessKey),
		SecretKey:   strings.TrimSpace(cfg.ArkSecretKey),
		Model:       modelName,
		Temperature: &temp,
	}
	if cfg.MaxCompletionToken > 0 {
		maxTokens := cfg.MaxCompletionToken
		conf.MaxTokens = &maxTokens
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		conf.Timeout = &timeout
	}

	m, err := ark.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: create ark model for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}
	return m, nil
}

// Completers holds one backend per agent identity.
type Completers struct {
	Router     contractx.Completer
	Summarizer contractx.Completer
	Handlers   map[contractx.AgentType]contractx.Completer
}

func NewCompleters(ctx context.Context, cfg Config) (Completers, error) {
	if err := cfg.Validate(); err != nil {
		return Completers{}, err
	}

	router, err := NewCompleter(ctx, cfg, contractx.AgentTypeOrchestrator)
	if err != nil {
		return Completers{}, err
	}
	summarizer, err := NewCompleter(ctx, cfg, contractx.AgentTypeSummarizer)
	if err != nil {
		return Completers{}, err
	}

	handlers := make(map[contractx.AgentType]contractx.Completer, len(contractx.HandlerTypes))
	for _, t := range contractx.HandlerTypes {
		c, err := NewCompleter(ctx, cfg, t)
		if err != nil {
			return Completers{}, err
		}
		handlers[t] = c
	}

	return Completers{Router: router, Summarizer: summarizer, Handlers: handlers}, nil
}

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/tanpawarit/ali-stylist-agent/agent/agents/router"
	"github.com/tanpawarit/ali-stylist-agent/agent/agents/specialist"
	"github.com/tanpawarit/ali-stylist-agent/agent/compaction"
	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/dispatch"
	llmx "github.com/tanpawarit/ali-stylist-agent/agent/llm"
	promptx "github.com/tanpawarit/ali-stylist-agent/agent/prompt"
)

type Config struct {
	DefaultUser          string        `split_words:"true" default:"default_user"`
	DefaultCity          string        `split_words:"true" default:"New York"`
	MaxHops              int           `split_words:"true" default:"6"`
	CompressionThreshold int           `split_words:"true" default:"10"`
	RetainMessages       int           `split_words:"true" default:"5"`
	AllowRedelegation    bool          `split_words:"true" default:"false"`
	SessionIdleTTL       time.Duration `split_words:"true" default:"2h"`
}

func (c Config) dispatchOptions(memory contractx.MemoryStore) []dispatch.Option {
	return []dispatch.Option{
		dispatch.WithMaxHops(c.MaxHops),
		dispatch.WithMemory(memory),
	}
}

// NewAgents wires the router, its compressor and the four handlers from one
// set of completers and prompts.
func NewAgents(cfg Config, completers llmx.Completers, prompts promptx.PromptSet) (contractx.Registry, error) {
	compressor := compaction.New(completers.Summarizer,
		compaction.WithThreshold(cfg.CompressionThreshold),
		compaction.WithRetain(cfg.RetainMessages),
		compaction.WithSystemPrompt(prompts.Summarizer),
	)

	r, err := router.New(completers.Router, compressor, prompts.Router,
		router.WithRedelegation(cfg.AllowRedelegation),
	)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	handlers, err := specialist.NewHandlers(completers.Handlers, prompts)
	if err != nil {
		return nil, fmt.Errorf("build handlers: %w", err)
	}
	return specialist.NewRegistry(r, handlers...)
}

// NewAgentsFromConfig builds the completers for cfg's provider and wires them.
func NewAgentsFromConfig(ctx context.Context, cfg Config, llmCfg llmx.Config) (contractx.Registry, error) {
	completers, err := llmx.NewCompleters(ctx, llmCfg)
	if err != nil {
		return nil, err
	}
	return NewAgents(cfg, completers, promptx.LoadPromptSet())
}

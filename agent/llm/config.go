package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	openrouterx "github.com/tanpawarit/ali-stylist-agent/pkg/openrouter"
)

type Provider string

const (
	// ProviderOpenRouter drives an eino chat model through OpenRouter.
	ProviderOpenRouter Provider = "openrouter"
	// ProviderOpenAI calls the chat completions API through openai-go.
	ProviderOpenAI Provider = "openai"
	ProviderArk    Provider = "ark"
)

type Config struct {
	Provider           Provider      `envconfig:"PROVIDER" split_words:"true" default:"openrouter"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	RouterModel           string  `envconfig:"ROUTER_MODEL" split_words:"true"`
	HandlerModel          string  `envconfig:"HANDLER_MODEL" split_words:"true"`
	SummarizerModel       string  `envconfig:"SUMMARIZER_MODEL" split_words:"true"`
	RouterTemperature     float32 `envconfig:"ROUTER_TEMPERATURE" split_words:"true" default:"-1"`
	HandlerTemperature    float32 `envconfig:"HANDLER_TEMPERATURE" split_words:"true" default:"-1"`
	SummarizerTemperature float32 `envconfig:"SUMMARIZER_TEMPERATURE" split_words:"true" default:"0"`

	// Ark only; either APIKey or the AK/SK pair authenticates.
	ArkRegion    string `envconfig:"ARK_REGION" split_words:"true" default:"cn-beijing"`
	ArkAccessKey string `envconfig:"ARK_ACCESS_KEY" split_words:"true"`
	ArkSecretKey string `envconfig:"ARK_SECRET_KEY" split_words:"true"`
}

func (c Config) provider() Provider {
	p := Provider(strings.ToLower(strings.TrimSpace(string(c.Provider))))
	if p == "" {
		return ProviderOpenRouter
	}
	return p
}

func (c Config) Validate() error {
	switch c.provider() {
	case ProviderOpenRouter, ProviderOpenAI:
		if strings.TrimSpace(c.APIKey) == "" {
			return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
		}
	case ProviderArk:
		hasKey := strings.TrimSpace(c.APIKey) != ""
		hasPair := strings.TrimSpace(c.ArkAccessKey) != "" && strings.TrimSpace(c.ArkSecretKey) != ""
		if !hasKey && !hasPair {
			return fmt.Errorf("%w: ark needs an api key or an access/secret key pair", contractx.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown llm provider %q", contractx.ErrValidation, c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// ModelFor resolves the model name and temperature used by one agent identity.
func (c Config) ModelFor(agentType contractx.AgentType) (string, float32) {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(name string, t float32) {
		if v := strings.TrimSpace(name); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}

	switch {
	case agentType == contractx.AgentTypeOrchestrator:
		override(c.RouterModel, c.RouterTemperature)
	case agentType == contractx.AgentTypeSummarizer:
		override(c.SummarizerModel, c.SummarizerTemperature)
	case agentType.IsHandler():
		override(c.HandlerModel, c.HandlerTemperature)
	}
	return modelName, temp
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName, temp := c.ModelFor(agentType)
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

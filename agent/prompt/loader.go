package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/occasion_formality.txt
	occasionRaw string

	//go:embed template/item_styling.txt
	itemStylingRaw string

	//go:embed template/color_intelligence.txt
	colorRaw string

	//go:embed template/temperature.txt
	temperatureRaw string

	//go:embed template/summarizer.txt
	summarizerRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Router      string
	Summarizer  string
	Occasion    string
	ItemStyling string
	Color       string
	Temperature string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router:      strings.TrimSpace(routerRaw),
		Summarizer:  strings.TrimSpace(summarizerRaw),
		Occasion:    strings.TrimSpace(occasionRaw),
		ItemStyling: strings.TrimSpace(itemStylingRaw),
		Color:       strings.TrimSpace(colorRaw),
		Temperature: strings.TrimSpace(temperatureRaw),
	}
}

// For returns the system prompt of an agent identity.
func (p PromptSet) For(agentType contractx.AgentType) (string, error) {
	var out string
	switch agentType {
	case contractx.AgentTypeOrchestrator:
		out = p.Router
	case contractx.AgentTypeSummarizer:
		out = p.Summarizer
	case contractx.AgentTypeOccasion:
		out = p.Occasion
	case contractx.AgentTypeItemStyling:
		out = p.ItemStyling
	case contractx.AgentTypeColor:
		out = p.Color
	case contractx.AgentTypeTemperature:
		out = p.Temperature
	default:
		return "", fmt.Errorf("%w: %q", contractx.ErrUnknownAgent, agentType)
	}
	if out == "" {
		return "", fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, agentType)
	}
	return out, nil
}

package contract

import (
	"strings"

	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

type AgentType string

const (
	AgentTypeOrchestrator AgentType = "orchestrator"
	AgentTypeSummarizer   AgentType = "summarizer"

	AgentTypeOccasion    AgentType = "occasion_formality"
	AgentTypeItemStyling AgentType = "item_styling"
	AgentTypeColor       AgentType = "color_intelligence"
	AgentTypeTemperature AgentType = "temperature"
)

// HandlerTypes is the closed set of specialist identities, in routing-table order.
var HandlerTypes = []AgentType{
	AgentTypeOccasion,
	AgentTypeItemStyling,
	AgentTypeColor,
	AgentTypeTemperature,
}

var handlerAliases = map[string]AgentType{
	"occasion_formality": AgentTypeOccasion,
	"occasion":           AgentTypeOccasion,
	"formality":          AgentTypeOccasion,
	"item_styling":       AgentTypeItemStyling,
	"item":               AgentTypeItemStyling,
	"styling":            AgentTypeItemStyling,
	"color_intelligence": AgentTypeColor,
	"color":              AgentTypeColor,
	"colour":             AgentTypeColor,
	"temperature":        AgentTypeTemperature,
	"temp":               AgentTypeTemperature,
	"weather":            AgentTypeTemperature,
}

// ParseHandler resolves a directive token to a handler identity. Matching is
// case-insensitive and tolerant of '-' or ' ' in place of '_'.
func ParseHandler(token string) (AgentType, bool) {
	norm := strings.ToLower(strings.TrimSpace(token))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	t, ok := handlerAliases[norm]
	return t, ok
}

func (t AgentType) IsHandler() bool {
	switch t {
	case AgentTypeOccasion, AgentTypeItemStyling, AgentTypeColor, AgentTypeTemperature:
		return true
	default:
		return false
	}
}

func (t AgentType) String() string {
	return string(t)
}

type DecisionKind string

const (
	DecisionDelegate    DecisionKind = "delegate"
	DecisionAnswer      DecisionKind = "answer"
	DecisionQuestion    DecisionKind = "question"
	DecisionUnparseable DecisionKind = "unparseable"
)

// Decision is the strict form of a router generation. Text never carries
// control markers; Token keeps the raw directive identity for diagnostics.
type Decision struct {
	Kind    DecisionKind `json:"kind"`
	Handler AgentType    `json:"handler,omitempty"`
	Text    string       `json:"text,omitempty"`
	Token   string       `json:"token,omitempty"`
}

// ProjectedContext is the per-consumer view of session state. A nil field is
// excluded by the consumer's policy; an included field with no data carries
// NotAvailable.
type ProjectedContext struct {
	Consumer        AgentType `json:"consumer"`
	UserMessage     string    `json:"user_message"`
	OutfitReference *string   `json:"current_outfit_for_reference,omitempty"`
	EnvironmentData *string   `json:"weather_data,omitempty"`
	Memory          *string   `json:"session_memory,omitempty"`
	HandlerSignal   *string   `json:"agent_response,omitempty"`
	Guidance        string    `json:"required_context,omitempty"`
}

const NotAvailable = "Not available"

type RouteResult struct {
	Next     statex.PendingRoute `json:"next"`
	Reply    *statex.Message     `json:"reply,omitempty"`
	Summary  *string             `json:"summary,omitempty"`
	History  []statex.Message    `json:"history,omitempty"`
	Decision Decision            `json:"decision"`
	Composed bool                `json:"composed"`
}

// SummaryChanged reports whether the cycle produced a new summary.
func (r RouteResult) SummaryChanged() bool {
	return r.Summary != nil
}

// User-visible replies for degraded turns.
const (
	FallbackReply    = "Sorry, I couldn't put together an answer for that. Could you rephrase your question?"
	UnavailableReply = "Sorry, the styling service is temporarily unavailable. Please try again in a moment."
)

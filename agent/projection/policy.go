// Package projection builds the per-consumer view of a session. Each agent
// identity sees only the fields its policy names.
package projection

import (
	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

// Inclusion decides whether a field reaches a consumer.
type Inclusion int

const (
	Never Inclusion = iota
	// IfPresent includes the field only when there is data for it.
	IfPresent
	// Always includes the field, falling back to contract.NotAvailable.
	Always
)

// Window selects which history messages travel with a projection.
type Window int

const (
	WindowConversation Window = iota
	WindowLatestUser
)

type Policy struct {
	Outfit        Inclusion
	Environment   Inclusion
	Memory        Inclusion
	HandlerSignal Inclusion
	History       Window
	Guidance      string
}

const routerGuidance = `- Color agent: no weather_data needed
- Temperature agent: no seasonal palette needed
- When agent_response holds a specialist result, compose it into the final reply instead of routing again`

const occasionGuidance = `- MUST have: user_latest_message
- OPTIONAL: current_outfit_for_reference, session_memory, conversation_so_far
- NEVER need: weather_data (unless specifically asked about rain/snow impact on formality)
- Track occasion, dress code and jeans policy; check the conversation before asking again`

const itemGuidance = `- MUST have: user_latest_message
- OPTIONAL: current_outfit_for_reference, session_memory
- NEVER need: weather_data, conversation_so_far (usually single turn)`

const colorGuidance = `- MUST have: user_latest_message
- OPTIONAL: current_outfit_for_reference, session_memory (seasonal palette)
- NEVER need: weather_data, conversation_so_far`

const temperatureGuidance = `- MUST have: user_latest_message, weather_data
- OPTIONAL: current_outfit_for_reference
- NEVER need: session_memory (seasonal palette), conversation_so_far (usually single turn)`

var policies = map[contractx.AgentType]Policy{
	contractx.AgentTypeOrchestrator: {
		Outfit:        Always,
		Environment:   Always,
		Memory:        Always,
		HandlerSignal: Always,
		History:       WindowConversation,
		Guidance:      routerGuidance,
	},
	contractx.AgentTypeOccasion: {
		Outfit:   Always,
		Memory:   IfPresent,
		History:  WindowConversation,
		Guidance: occasionGuidance,
	},
	contractx.AgentTypeItemStyling: {
		Outfit:   Always,
		Memory:   IfPresent,
		History:  WindowLatestUser,
		Guidance: itemGuidance,
	},
	contractx.AgentTypeColor: {
		Outfit:   Always,
		Memory:   IfPresent,
		History:  WindowLatestUser,
		Guidance: colorGuidance,
	},
	contractx.AgentTypeTemperature: {
		Outfit:      Always,
		Environment: Always,
		History:     WindowLatestUser,
		Guidance:    temperatureGuidance,
	},
}

// PolicyFor returns the projection policy of a consumer.
func PolicyFor(consumer contractx.AgentType) (Policy, bool) {
	p, ok := policies[consumer]
	return p, ok
}

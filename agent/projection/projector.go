package projection

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/directive"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

// Project builds the context document for consumer from the session.
func Project(st *statex.SessionState, consumer contractx.AgentType) (contractx.ProjectedContext, error) {
	if st == nil {
		return contractx.ProjectedContext{}, statex.ErrNilSessionState
	}
	policy, ok := PolicyFor(consumer)
	if !ok {
		return contractx.ProjectedContext{}, fmt.Errorf("%w: no projection policy for %q", contractx.ErrUnknownAgent, consumer)
	}

	pc := contractx.ProjectedContext{
		Consumer:    consumer,
		UserMessage: st.LatestUserMessage(),
		Guidance:    policy.Guidance,
	}

	pc.OutfitReference = include(policy.Outfit, FormatOutfit(st.Outfit))
	pc.EnvironmentData = include(policy.Environment, FormatEnvironment(st.Environment))
	pc.Memory = include(policy.Memory, strings.TrimSpace(st.Summary))

	if policy.HandlerSignal != Never {
		signal := ""
		if msg, ok := LastHandlerSignal(st.History); ok {
			signal = msg.Content
		}
		pc.HandlerSignal = include(policy.HandlerSignal, signal)
	}

	return pc, nil
}

// History returns the messages consumer is allowed to see, oldest first.
func History(history []statex.Message, consumer contractx.AgentType) []statex.Message {
	policy, ok := PolicyFor(consumer)
	if !ok {
		return nil
	}

	switch policy.History {
	case WindowLatestUser:
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].IsUser() {
				return []statex.Message{history[i]}
			}
		}
		return nil
	default:
		if consumer == contractx.AgentTypeOrchestrator {
			out := make([]statex.Message, len(history))
			copy(out, history)
			return out
		}
		// specialists never see each other's internal output
		out := make([]statex.Message, 0, len(history))
		for _, m := range history {
			if m.Internal {
				continue
			}
			out = append(out, m)
		}
		return out
	}
}

// LastHandlerSignal reports the last message when it is an assistant message
// carrying a FINAL_ANSWER or QUESTION marker.
func LastHandlerSignal(history []statex.Message) (statex.Message, bool) {
	if len(history) == 0 {
		return statex.Message{}, false
	}
	last := history[len(history)-1]
	if !last.IsAssistant() || !directive.IsHandlerSignal(last.Content) {
		return statex.Message{}, false
	}
	return last, true
}

func FormatOutfit(o *statex.OutfitReference) string {
	if o == nil {
		return ""
	}
	var b strings.Builder
	writeField(&b, "Pattern", o.Description)
	writeField(&b, "Season", o.Season)
	writeField(&b, "Dress it up", o.DressUp)
	writeField(&b, "Dress it down", o.DressDown)
	writeField(&b, "Date", o.Date)
	writeField(&b, "Image", o.ImageURL)
	return strings.TrimRight(b.String(), "\n")
}

func FormatEnvironment(e *statex.EnvironmentData) string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	writeField(&b, "Location", e.Location)
	writeField(&b, "Temperature", e.Temperature)
	writeField(&b, "Conditions", e.Condition)
	writeField(&b, "Source", e.Source)
	return strings.TrimRight(b.String(), "\n")
}

func writeField(b *strings.Builder, label, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fmt.Fprintf(b, "%s: %s\n", label, v)
	}
}

func include(mode Inclusion, value string) *string {
	switch mode {
	case Always:
		if value == "" {
			value = contractx.NotAvailable
		}
		return &value
	case IfPresent:
		if value == "" {
			return nil
		}
		return &value
	default:
		return nil
	}
}

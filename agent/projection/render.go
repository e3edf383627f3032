package projection

import (
	"strings"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

// Render writes a projected context as the tagged block appended to a
// generation request. Excluded fields produce no tag at all.
func Render(pc contractx.ProjectedContext) string {
	var b strings.Builder
	b.WriteString("<inputs_you_receive>\n")
	writeTag(&b, "user_message", pc.UserMessage)
	if pc.OutfitReference != nil {
		writeTag(&b, "current_outfit_for_reference", *pc.OutfitReference)
	}
	if pc.EnvironmentData != nil {
		writeTag(&b, "weather_data", *pc.EnvironmentData)
	}
	if pc.Memory != nil {
		writeTag(&b, "session_memory", *pc.Memory)
	}
	if pc.HandlerSignal != nil {
		writeTag(&b, "agent_response", *pc.HandlerSignal)
	}
	b.WriteString("</inputs_you_receive>\n")

	if g := strings.TrimSpace(pc.Guidance); g != "" {
		b.WriteString("\n")
		writeTag(&b, "required_context", g)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTag(b *strings.Builder, name, body string) {
	b.WriteString("<")
	b.WriteString(name)
	b.WriteString(">\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n</")
	b.WriteString(name)
	b.WriteString(">\n")
}

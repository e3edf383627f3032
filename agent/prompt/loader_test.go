package prompt

import (
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

func TestLoadPromptSetCoversEveryAgent(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	agents := append([]contractx.AgentType{contractx.AgentTypeOrchestrator, contractx.AgentTypeSummarizer}, contractx.HandlerTypes...)
	for _, a := range agents {
		p, err := set.For(a)
		if err != nil {
			t.Fatalf("For(%s) error = %v", a, err)
		}
		if strings.TrimSpace(p) == "" {
			t.Fatalf("For(%s) returned empty prompt", a)
		}
	}
}

func TestRouterPromptCarriesMarkers(t *testing.T) {
	t.Parallel()

	p := LoadPromptSet().Router
	for _, marker := range []string{"ROUTE:", "DIRECT_RESPONSE:", "FINAL_ANSWER", "QUESTION"} {
		if !strings.Contains(p, marker) {
			t.Fatalf("router prompt missing %s", marker)
		}
	}
	for _, h := range contractx.HandlerTypes {
		if !strings.Contains(p, string(h)) {
			t.Fatalf("router prompt does not list %s", h)
		}
	}
}

func TestHandlerPromptsNeverRoute(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	for _, h := range contractx.HandlerTypes {
		p, _ := set.For(h)
		if strings.Contains(p, "ROUTE:") {
			t.Fatalf("%s prompt mentions ROUTE:", h)
		}
		if !strings.Contains(p, "FINAL_ANSWER") {
			t.Fatalf("%s prompt lacks FINAL_ANSWER", h)
		}
	}
}

func TestForUnknownAgent(t *testing.T) {
	t.Parallel()

	if _, err := LoadPromptSet().For("tailor"); !errors.Is(err, contractx.ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
	if _, err := (PromptSet{}).For(contractx.AgentTypeColor); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected ErrPromptMissing, got %v", err)
	}
}

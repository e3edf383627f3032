// Package directive converts free-text generations into strict routing
// decisions and strips control markers from anything shown to the user.
package directive

import (
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

// Wire-level control markers shared with the prompt templates.
const (
	MarkerRoute          = "ROUTE:"
	MarkerDirectResponse = "DIRECT_RESPONSE:"
	MarkerFinalAnswer    = "FINAL_ANSWER"
	MarkerQuestion       = "QUESTION"
)

var (
	// optional markdown emphasis and a trailing colon travel with the marker
	signalMarkerPattern = regexp.MustCompile(`\**(?:FINAL_ANSWER|QUESTION)\**[ \t]*:?\**[ \t]*`)
	directMarkerPattern = regexp.MustCompile(`\**DIRECT_RESPONSE:\**[ \t]*`)
	routeTokenPattern   = regexp.MustCompile(`^[\s*"'` + "`" + `]*([A-Za-z][A-Za-z0-9_\-]*)`)
	blankLinesPattern   = regexp.MustCompile(`\n{3,}`)
)

// Parse turns a router generation into a Decision.
//
// A line containing ROUTE: followed by a known identity yields Delegate.
// A ROUTE: line naming anything else yields Unparseable, with the remaining
// text kept so the caller can answer directly. Without a directive the text
// is an Answer, or a Question when it carries the QUESTION marker.
func Parse(raw string) contractx.Decision {
	text := strings.TrimSpace(raw)
	if text == "" {
		return contractx.Decision{Kind: contractx.DecisionUnparseable}
	}

	token, rest, found := splitDirective(text)
	if found {
		if handler, ok := contractx.ParseHandler(token); ok {
			return contractx.Decision{
				Kind:    contractx.DecisionDelegate,
				Handler: handler,
				Token:   token,
			}
		}
		return contractx.Decision{
			Kind:  contractx.DecisionUnparseable,
			Token: token,
			Text:  Sanitize(rest),
		}
	}

	clean := Sanitize(text)
	if clean == "" {
		return contractx.Decision{Kind: contractx.DecisionUnparseable}
	}
	kind := contractx.DecisionAnswer
	if strings.Contains(text, MarkerQuestion) {
		kind = contractx.DecisionQuestion
	}
	return contractx.Decision{Kind: kind, Text: clean}
}

// IsHandlerSignal reports whether a generation carries a handler completion marker.
func IsHandlerSignal(text string) bool {
	return strings.Contains(text, MarkerFinalAnswer) || strings.Contains(text, MarkerQuestion)
}

// IsQuestion reports whether a handler signal asks the user for clarification.
func IsQuestion(text string) bool {
	return strings.Contains(text, MarkerQuestion)
}

// Sanitize removes every control marker and routing line from user-visible text.
func Sanitize(text string) string {
	out := strings.ReplaceAll(text, "\r\n", "\n")
	for {
		next := DropRouteLines(out)
		next = directMarkerPattern.ReplaceAllString(next, "")
		next = signalMarkerPattern.ReplaceAllString(next, "")
		if next == out {
			break
		}
		out = next
	}

	out = blankLinesPattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// DropRouteLines removes every line carrying a routing directive.
func DropRouteLines(text string) string {
	if !strings.Contains(text, MarkerRoute) {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, MarkerRoute) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// ContainsMarker reports whether any control marker survives in text.
func ContainsMarker(text string) bool {
	for _, m := range []string{MarkerRoute, MarkerDirectResponse, MarkerFinalAnswer, MarkerQuestion} {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func splitDirective(text string) (token string, rest string, found bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		idx := strings.Index(line, MarkerRoute)
		if idx < 0 {
			continue
		}
		token = extractToken(line[idx+len(MarkerRoute):])
		remaining := make([]string, 0, len(lines)-1)
		remaining = append(remaining, lines[:i]...)
		remaining = append(remaining, lines[i+1:]...)
		return token, strings.Join(remaining, "\n"), true
	}
	return "", text, false
}

func extractToken(s string) string {
	if m := routeTokenPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}

// Package compaction bounds conversational history by folding older turns
// into a free-text summary and keeping only a short tail.
package compaction

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/directive"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

const (
	DefaultThreshold = 10
	DefaultRetain    = 5
)

const defaultSummarizerPrompt = "Distill the conversation into a concise summary, focusing on user preferences, decisions made, and key context to carry forward."

type Option func(*Compressor)

// WithThreshold sets the history length above which compression runs.
func WithThreshold(n int) Option {
	return func(c *Compressor) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithRetain sets how many of the most recent messages survive a compression.
func WithRetain(n int) Option {
	return func(c *Compressor) {
		if n > 0 {
			c.retain = n
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(c *Compressor) {
		if p := strings.TrimSpace(prompt); p != "" {
			c.systemPrompt = p
		}
	}
}

type Compressor struct {
	completer    contractx.Completer
	threshold    int
	retain       int
	systemPrompt string
}

// Result is the outcome of one compression attempt. When Compressed is false
// Summary and Tail echo the inputs.
type Result struct {
	Summary    string
	Tail       []statex.Message
	Compressed bool
	Err        error
}

func New(completer contractx.Completer, opts ...Option) *Compressor {
	c := &Compressor{
		completer:    completer,
		threshold:    DefaultThreshold,
		retain:       DefaultRetain,
		systemPrompt: defaultSummarizerPrompt,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.retain > c.threshold {
		c.retain = c.threshold
	}
	return c
}

func (c *Compressor) Threshold() int { return c.threshold }
func (c *Compressor) Retain() int    { return c.retain }

// Compress folds the existing summary and every message into a new summary
// that replaces the old one, and returns the retained tail. It never fails the
// caller: a backend error leaves summary and history untouched.
func (c *Compressor) Compress(ctx context.Context, history []statex.Message, summary string) Result {
	unchanged := Result{Summary: summary, Tail: history}
	if len(history) <= c.threshold {
		return unchanged
	}
	if c.completer == nil {
		unchanged.Err = fmt.Errorf("%w: summarizer is not configured", contractx.ErrBackendUnavailable)
		return unchanged
	}

	request := statex.Message{
		Role:    statex.RoleUser,
		Content: buildTranscript(history, summary),
	}

	out, err := c.completer.Complete(ctx, c.systemPrompt, []statex.Message{request}, "")
	if err != nil {
		log.Warn().Err(err).Int("messages", len(history)).Msg("context compression skipped")
		unchanged.Err = fmt.Errorf("%w: summarize: %v", contractx.ErrModelInvoke, err)
		return unchanged
	}

	newSummary := directive.Sanitize(out)
	if newSummary == "" {
		log.Warn().Int("messages", len(history)).Msg("context compression produced an empty summary")
		unchanged.Err = fmt.Errorf("%w: empty summary", contractx.ErrSchemaViolation)
		return unchanged
	}

	return Result{
		Summary:    newSummary,
		Tail:       slices.Clone(history[len(history)-c.retain:]),
		Compressed: true,
	}
}

func buildTranscript(history []statex.Message, summary string) string {
	var b strings.Builder
	b.WriteString("Existing summary: ")
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString(s)
	} else {
		b.WriteString("(none)")
	}
	b.WriteString("\n\nNew messages:\n")
	for _, m := range history {
		content := directive.Sanitize(m.Content)
		if content == "" {
			continue
		}
		role := string(m.Role)
		if m.Internal && m.Author != "" {
			role = m.Author
		}
		fmt.Fprintf(&b, "[%s] %s\n", role, content)
	}
	return strings.TrimRight(b.String(), "\n")
}

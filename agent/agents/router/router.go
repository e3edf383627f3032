// Package router decides, once per dispatch cycle, whether a specialist
// should handle the turn or the reply is ready for the user.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/ali-stylist-agent/agent/compaction"
	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/directive"
	"github.com/tanpawarit/ali-stylist-agent/agent/projection"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

type Option func(*Router)

// WithRedelegation lets the router send a turn to another specialist after
// one has already answered. The same specialist is never chosen twice in a row.
func WithRedelegation(allow bool) Option {
	return func(r *Router) {
		r.allowRedelegation = allow
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

type Router struct {
	completer         contractx.Completer
	compressor        *compaction.Compressor
	systemPrompt      string
	allowRedelegation bool
	now               func() time.Time
}

var _ contractx.Router = (*Router)(nil)

func New(completer contractx.Completer, compressor *compaction.Compressor, systemPrompt string, opts ...Option) (*Router, error) {
	if completer == nil {
		return nil, fmt.Errorf("%w: router completer is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: router", contractx.ErrPromptMissing)
	}
	if compressor == nil {
		compressor = compaction.New(nil)
	}

	r := &Router{
		completer:    completer,
		compressor:   compressor,
		systemPrompt: systemPrompt,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Route runs one router cycle: compress, project, generate, parse. The session
// passed in is never modified; every change is reported in the result.
//
// A backend failure returns an ErrModelInvoke error together with whatever
// summary delta the compressor already produced.
func (r *Router) Route(ctx context.Context, st *statex.SessionState) (contractx.RouteResult, error) {
	if st == nil {
		return contractx.RouteResult{}, statex.ErrNilSessionState
	}

	var res contractx.RouteResult
	view := st.Clone()

	comp := r.compressor.Compress(ctx, view.History, view.Summary)
	if comp.Compressed {
		summary := comp.Summary
		res.Summary = &summary
		res.History = comp.Tail
		view.Summary = summary
		view.History = comp.Tail
	}

	signal, composing := projection.LastHandlerSignal(view.History)
	res.Composed = composing

	pc, err := projection.Project(view, contractx.AgentTypeOrchestrator)
	if err != nil {
		return res, err
	}

	raw, err := r.completer.Complete(ctx, r.systemPrompt, projection.History(view.History, contractx.AgentTypeOrchestrator), projection.Render(pc))
	if err != nil {
		return res, fmt.Errorf("%w: router: %v", contractx.ErrModelInvoke, err)
	}

	dec := directive.Parse(raw)
	res.Decision = dec

	logger := log.With().Str("session_id", st.SessionID).Str("agent", string(contractx.AgentTypeOrchestrator)).Logger()

	switch dec.Kind {
	case contractx.DecisionDelegate:
		if composing && !r.mayRedelegate(signal, dec.Handler) {
			logger.Warn().
				Str("handler", string(dec.Handler)).
				Str("previous", signal.Author).
				Msg("router tried to re-delegate after a specialist answered; composing instead")
			res.Reply = r.reply(composeFallback(raw, signal))
			res.Next = statex.TerminalRoute()
			return res, nil
		}
		res.Next = statex.HandlerRoute(string(dec.Handler))

	case contractx.DecisionAnswer, contractx.DecisionQuestion:
		res.Reply = r.reply(dec.Text)
		res.Next = statex.TerminalRoute()

	default:
		if dec.Token != "" {
			logger.Warn().Str("token", dec.Token).Msg("router named an unknown specialist")
		}
		text := dec.Text
		if text == "" && composing {
			text = directive.Sanitize(signal.Content)
		}
		if text == "" {
			text = contractx.FallbackReply
		}
		res.Reply = r.reply(text)
		res.Next = statex.TerminalRoute()
	}

	return res, nil
}

func (r *Router) mayRedelegate(signal statex.Message, next contractx.AgentType) bool {
	if !r.allowRedelegation {
		return false
	}
	return signal.Author != string(next)
}

func (r *Router) reply(text string) *statex.Message {
	msg := statex.NewMessage(statex.RoleAssistant, text, r.now())
	msg.Author = string(contractx.AgentTypeOrchestrator)
	return &msg
}

// composeFallback keeps any prose the router wrote around its directive and
// otherwise hands the specialist's answer to the user as is.
func composeFallback(raw string, signal statex.Message) string {
	if text := directive.Sanitize(raw); text != "" {
		return text
	}
	if text := directive.Sanitize(signal.Content); text != "" {
		return text
	}
	return contractx.FallbackReply
}

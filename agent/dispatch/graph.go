// Package dispatch runs the per-turn Router/Handler state machine.
//
// The router always runs first. A delegation moves control to exactly one
// handler, and every handler hands control straight back to the router. A
// terminal decision ends the turn. The number of handler invocations per turn
// is capped; the delegation that would exceed the cap ends the turn with a
// fallback reply.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/directive"
	"github.com/tanpawarit/ali-stylist-agent/agent/projection"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

const DefaultMaxHops = 6

type Option func(*Graph)

func WithMaxHops(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxHops = n
		}
	}
}

// WithMemory persists every summary the router produces.
func WithMemory(store contractx.MemoryStore) Option {
	return func(g *Graph) {
		g.memory = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Graph) {
		if now != nil {
			g.now = now
		}
	}
}

type Graph struct {
	registry contractx.Registry
	maxHops  int
	memory   contractx.MemoryStore
	now      func() time.Time
}

// Outcome describes one completed turn.
type Outcome struct {
	Reply          statex.Message
	Trace          []string
	Hops           int
	Degraded       bool
	HopLimitHit    bool
	SummaryUpdated bool
	// PersistErr is the last summary write failure; the reply stands regardless.
	PersistErr error
	// Cause is the backend error behind a degraded reply.
	Cause error
}

func New(registry contractx.Registry, opts ...Option) (*Graph, error) {
	if registry == nil || registry.Router() == nil {
		return nil, fmt.Errorf("%w: dispatch registry has no router", contractx.ErrValidation)
	}
	g := &Graph{
		registry: registry,
		maxHops:  DefaultMaxHops,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *Graph) MaxHops() int { return g.maxHops }

// Run drives st from the router state to terminal and appends the user-visible
// reply to its history. st must be a private copy: it is modified in place and
// should only be committed when Run returns a nil error. A non-nil error means
// the context ended mid-turn.
func (g *Graph) Run(ctx context.Context, st *statex.SessionState) (Outcome, error) {
	if st == nil {
		return Outcome{}, statex.ErrNilSessionState
	}

	var out Outcome
	out.Trace = []string{string(contractx.AgentTypeOrchestrator)}
	logger := log.With().Str("session_id", st.SessionID).Str("user_id", st.UserID).Logger()

	var replyText string
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		res, err := g.registry.Router().Route(ctx, st)
		g.applySummary(ctx, st, res, &out, logger)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Outcome{}, ctxErr
			}
			logger.Warn().Err(err).Int("hop", out.Hops).Str("agent", string(contractx.AgentTypeOrchestrator)).Msg("router failed; replying degraded")
			out.Degraded = true
			out.Cause = err
			replyText = contractx.UnavailableReply
			break
		}
		st.PendingRoute = res.Next

		if !res.Next.IsHandler() {
			if res.Reply != nil {
				replyText = res.Reply.Content
			}
			break
		}

		if out.Hops >= g.maxHops {
			logger.Warn().Int("hop", out.Hops).Str("agent", res.Next.Handler).Msg("dispatch hop ceiling reached")
			out.HopLimitHit = true
			out.Cause = fmt.Errorf("%w: %d handler invocations", contractx.ErrHopLimit, out.Hops)
			replyText = contractx.FallbackReply
			break
		}

		agentType := contractx.AgentType(res.Next.Handler)
		handler, ok := g.registry.Handler(agentType)
		if !ok {
			logger.Warn().Str("agent", res.Next.Handler).Msg("router delegated to an unregistered handler")
			out.Cause = fmt.Errorf("%w: %s", contractx.ErrUnknownAgent, res.Next.Handler)
			replyText = contractx.FallbackReply
			break
		}

		out.Hops++
		out.Trace = append(out.Trace, string(agentType))

		segment, err := g.invoke(ctx, st, handler)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Outcome{}, ctxErr
			}
			logger.Warn().Err(err).Int("hop", out.Hops).Str("agent", string(agentType)).Msg("handler failed; replying degraded")
			out.Degraded = true
			out.Cause = err
			replyText = contractx.UnavailableReply
			break
		}

		msg := statex.NewMessage(statex.RoleAssistant, segment, g.now())
		msg.Author = string(agentType)
		msg.Internal = true
		st.Append(msg)
		st.PendingRoute = statex.PendingRoute{}
		out.Trace = append(out.Trace, string(contractx.AgentTypeOrchestrator))
	}

	replyText = directive.Sanitize(replyText)
	if replyText == "" {
		replyText = contractx.FallbackReply
	}

	st.PendingRoute = statex.PendingRoute{}
	st.DropInternal()

	reply := statex.NewMessage(statex.RoleAssistant, replyText, g.now())
	reply.Author = string(contractx.AgentTypeOrchestrator)
	st.Append(reply)
	st.LastTrace = out.Trace
	st.Touch(g.now())

	out.Reply = reply
	logger.Debug().
		Strs("trace", out.Trace).
		Int("hops", out.Hops).
		Bool("degraded", out.Degraded).
		Msg("turn completed")
	return out, nil
}

func (g *Graph) invoke(ctx context.Context, st *statex.SessionState, handler contractx.Handler) (string, error) {
	pc, err := projection.Project(st, handler.Type())
	if err != nil {
		return "", err
	}
	segment, err := handler.Handle(ctx, pc, projection.History(st.History, handler.Type()))
	if err != nil {
		return "", err
	}
	if segment == "" {
		return "", fmt.Errorf("%w: handler=%s returned no text", contractx.ErrSchemaViolation, handler.Type())
	}
	return segment, nil
}

func (g *Graph) applySummary(ctx context.Context, st *statex.SessionState, res contractx.RouteResult, out *Outcome, logger zerolog.Logger) {
	if !res.SummaryChanged() {
		return
	}
	st.Summary = *res.Summary
	if res.History != nil {
		st.History = res.History
	}
	out.SummaryUpdated = true

	if g.memory == nil {
		return
	}
	if err := g.memory.WriteSummary(ctx, st.UserID, st.Summary); err != nil {
		logger.Warn().Err(err).Msg("summary write failed")
		out.PersistErr = err
	}
}

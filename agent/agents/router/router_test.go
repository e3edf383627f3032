package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanpawarit/ali-stylist-agent/agent/compaction"
	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/directive"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
)

type fakeCompleter struct {
	out   string
	err   error
	calls int

	history       []statex.Message
	supplementary string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, history []statex.Message, supplementary string) (string, error) {
	f.calls++
	f.history = history
	f.supplementary = supplementary
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newRouter(t *testing.T, out string, opts ...Option) (*Router, *fakeCompleter) {
	t.Helper()
	fake := &fakeCompleter{out: out}
	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	r, err := New(fake, compaction.New(&fakeCompleter{out: "summary"}), "router prompt", opts...)
	require.NoError(t, err)
	return r, fake
}

func sessionWith(msgs ...statex.Message) *statex.SessionState {
	st := statex.NewSessionState("s-1", "u-1", "Bangkok", fixedNow)
	for _, m := range msgs {
		st.Append(m)
	}
	return st
}

func userMsg(text string) statex.Message {
	return statex.NewMessage(statex.RoleUser, text, fixedNow)
}

func handlerMsg(author contractx.AgentType, text string) statex.Message {
	return statex.Message{Role: statex.RoleAssistant, Content: text, Author: string(author), Internal: true, CreatedAt: fixedNow}
}

func TestRouteDelegates(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, "ROUTE: temperature")
	res, err := r.Route(context.Background(), sessionWith(userMsg("is it too hot for this jacket?")))
	require.NoError(t, err)

	assert.True(t, res.Next.IsHandler())
	assert.Equal(t, string(contractx.AgentTypeTemperature), res.Next.Handler)
	assert.Nil(t, res.Reply)
	assert.Equal(t, contractx.DecisionDelegate, res.Decision.Kind)
}

func TestRouteDirectResponseStripsMarker(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, "DIRECT_RESPONSE: Wear a light jacket.")
	res, err := r.Route(context.Background(), sessionWith(userMsg("what should I wear?")))
	require.NoError(t, err)

	require.NotNil(t, res.Reply)
	assert.Equal(t, "Wear a light jacket.", res.Reply.Content)
	assert.True(t, res.Next.IsTerminal())
	assert.Equal(t, string(contractx.AgentTypeOrchestrator), res.Reply.Author)
}

func TestRouteNoDirectiveIsTerminal(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, "I think you should go with the jacket.")
	res, err := r.Route(context.Background(), sessionWith(userMsg("jacket or cardigan?")))
	require.NoError(t, err)

	require.NotNil(t, res.Reply)
	assert.Equal(t, "I think you should go with the jacket.", res.Reply.Content)
	assert.True(t, res.Next.IsTerminal())
}

func TestRouteUnknownTokenFailsSoft(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, "ROUTE: shoe_polisher")
	res, err := r.Route(context.Background(), sessionWith(userMsg("shine my shoes")))
	require.NoError(t, err)

	assert.Equal(t, contractx.DecisionUnparseable, res.Decision.Kind)
	assert.True(t, res.Next.IsTerminal())
	require.NotNil(t, res.Reply)
	assert.Equal(t, contractx.FallbackReply, res.Reply.Content)
}

func TestRouteBackendErrorKeepsSummaryDelta(t *testing.T) {
	t.Parallel()

	summarizer := &fakeCompleter{out: "Likes navy."}
	r, err := New(&fakeCompleter{err: errors.New("502")}, compaction.New(summarizer), "router prompt")
	require.NoError(t, err)

	st := sessionWith()
	for i := 0; i < 11; i++ {
		st.Append(userMsg(fmt.Sprintf("m%d", i)))
	}

	res, err := r.Route(context.Background(), st)
	require.Error(t, err)
	assert.ErrorIs(t, err, contractx.ErrModelInvoke)
	require.NotNil(t, res.Summary)
	assert.Equal(t, "Likes navy.", *res.Summary)
	assert.Len(t, res.History, compaction.DefaultRetain)
}

func TestRouteCompressionFeedsTrimmedHistory(t *testing.T) {
	t.Parallel()

	r, fake := newRouter(t, "DIRECT_RESPONSE: ok")
	st := sessionWith()
	for i := 0; i < 12; i++ {
		st.Append(userMsg(fmt.Sprintf("m%d", i)))
	}

	res, err := r.Route(context.Background(), st)
	require.NoError(t, err)
	require.True(t, res.SummaryChanged())
	assert.Len(t, fake.history, compaction.DefaultRetain)
	assert.Contains(t, fake.supplementary, "<session_memory>\nsummary\n</session_memory>")
	assert.Len(t, st.History, 12, "input session must not be modified")
}

func TestRouteComposeBlocksRedelegation(t *testing.T) {
	t.Parallel()

	r, fake := newRouter(t, "ROUTE: temperature")
	st := sessionWith(
		userMsg("is it too hot for this jacket?"),
		handlerMsg(contractx.AgentTypeTemperature, "FINAL_ANSWER: At 72°F the denim jacket is fine."),
	)

	res, err := r.Route(context.Background(), st)
	require.NoError(t, err)

	assert.True(t, res.Composed)
	assert.True(t, res.Next.IsTerminal())
	require.NotNil(t, res.Reply)
	assert.Equal(t, "At 72°F the denim jacket is fine.", res.Reply.Content)
	assert.False(t, directive.ContainsMarker(res.Reply.Content))
	assert.Contains(t, fake.supplementary, "<agent_response>\nFINAL_ANSWER: At 72°F")
}

func TestRouteComposeMayRedelegateWhenAllowed(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, "ROUTE: color", WithRedelegation(true))
	st := sessionWith(
		userMsg("what goes with this for a wedding?"),
		handlerMsg(contractx.AgentTypeOccasion, "FINAL_ANSWER: It's semi-formal."),
	)
	res, err := r.Route(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, string(contractx.AgentTypeColor), res.Next.Handler)

	// never the same specialist twice in a row
	r, _ = newRouter(t, "ROUTE: occasion_formality", WithRedelegation(true))
	res, err = r.Route(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, res.Next.IsTerminal())
	assert.Equal(t, "It's semi-formal.", res.Reply.Content)
}

func TestRouteComposeAnswer(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, "DIRECT_RESPONSE: Great news: FINAL_ANSWER the linen shirt is perfect for today.")
	st := sessionWith(
		userMsg("linen shirt ok?"),
		handlerMsg(contractx.AgentTypeTemperature, "FINAL_ANSWER: the linen shirt is perfect."),
	)
	res, err := r.Route(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, res.Reply)
	assert.False(t, strings.Contains(res.Reply.Content, "FINAL_ANSWER"))
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil, "p")
	assert.ErrorIs(t, err, contractx.ErrValidation)

	_, err = New(&fakeCompleter{}, nil, " ")
	assert.ErrorIs(t, err, contractx.ErrPromptMissing)
}

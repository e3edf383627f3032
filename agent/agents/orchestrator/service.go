package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
	"github.com/tanpawarit/ali-stylist-agent/agent/dispatch"
	nodex "github.com/tanpawarit/ali-stylist-agent/agent/nodes"
	statex "github.com/tanpawarit/ali-stylist-agent/agent/state"
	"github.com/tanpawarit/ali-stylist-agent/pkg/outfit"
)

var (
	ErrInvalidMessage  = nodex.ErrInvalidMessage
	ErrInvalidSession  = nodex.ErrInvalidSession
	ErrSessionNotFound = statex.ErrSessionNotFound
	ErrInvalidDate     = outfit.ErrInvalidDate
)

// SessionStore is the session registry contract: storage plus the per-session
// turn lock.
type SessionStore interface {
	statex.Store
	Acquire(ctx context.Context, sessionID string) (func(), error)
}

type Sources struct {
	Outfits     contractx.OutfitSource
	Environment contractx.EnvironmentSource
}

type SessionOptions struct {
	UserID     string `json:"user_id,omitempty"`
	City       string `json:"city,omitempty"`
	OutfitDate string `json:"outfit_date,omitempty"`
}

type SessionInfo struct {
	SessionID    string                  `json:"session_id"`
	UserID       string                  `json:"user_id"`
	City         string                  `json:"city"`
	OutfitDate   string                  `json:"outfit_date,omitempty"`
	Summary      string                  `json:"summary,omitempty"`
	MessageCount int                     `json:"message_count"`
	LastTrace    []string                `json:"last_trace,omitempty"`
	Outfit       *statex.OutfitReference `json:"outfit,omitempty"`
	Environment  *statex.EnvironmentData `json:"environment,omitempty"`
	Messages     []statex.Message        `json:"messages,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

type TurnResult struct {
	SessionID      string   `json:"session_id"`
	Reply          string   `json:"reply"`
	Trace          []string `json:"trace"`
	Degraded       bool     `json:"degraded,omitempty"`
	HopLimitHit    bool     `json:"hop_limit_hit,omitempty"`
	SummaryUpdated bool     `json:"summary_updated,omitempty"`
	// PersistErr reports a failed summary write. The reply is still valid.
	PersistErr error `json:"-"`
}

type Orchestrator struct {
	sessions SessionStore
	agents   contractx.Registry
	memory   contractx.MemoryStore
	sources  Sources

	dispatcher  *dispatch.Graph
	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	defaultUser string
	defaultCity string

	now func() time.Time
}

func New(
	sessions SessionStore,
	agents contractx.Registry,
	memory contractx.MemoryStore,
	sources Sources,
	cfg Config,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if agents == nil {
		return nil, errors.New("agent registry is required")
	}
	if memory == nil {
		memory = noopMemoryStore{}
	}

	defaultUser := strings.TrimSpace(cfg.DefaultUser)
	if defaultUser == "" {
		defaultUser = "default_user"
	}
	defaultCity := strings.TrimSpace(cfg.DefaultCity)
	if defaultCity == "" {
		defaultCity = "New York"
	}

	o := &Orchestrator{
		sessions:    sessions,
		agents:      agents,
		memory:      memory,
		sources:     sources,
		defaultUser: defaultUser,
		defaultCity: defaultCity,
		now:         time.Now,
	}

	dispatcher, err := dispatch.New(agents, append(cfg.dispatchOptions(memory), dispatch.WithClock(o.clock))...)
	if err != nil {
		return nil, err
	}
	o.dispatcher = dispatcher

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

func (o *Orchestrator) clock() time.Time { return o.now() }

// StartSession creates a session and hydrates its summary from long-term
// memory. An unavailable memory store does not block the session.
func (o *Orchestrator) StartSession(ctx context.Context, opts SessionOptions) (SessionInfo, error) {
	date, err := normalizeDate(opts.OutfitDate)
	if err != nil {
		return SessionInfo{}, err
	}

	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		userID = o.defaultUser
	}
	city := strings.TrimSpace(opts.City)
	if city == "" {
		city = o.defaultCity
	}

	st := statex.NewSessionState(statex.NewSessionID(), userID, city, o.now())
	st.OutfitDate = date
	o.hydrate(ctx, st)

	if err := o.sessions.Save(ctx, st); err != nil {
		return SessionInfo{}, err
	}
	log.Info().Str("session_id", st.SessionID).Str("user_id", userID).Msg("session started")
	return sessionInfo(st), nil
}

// HandleMessage runs one turn. Turns on the same session are serialized.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (TurnResult, error) {
	release, err := o.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	defer release()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		SessionID:      out.SessionID,
		Reply:          out.Reply,
		Trace:          out.Trace,
		Degraded:       out.Degraded,
		HopLimitHit:    out.HopLimitHit,
		SummaryUpdated: out.SummaryUpdated,
		PersistErr:     out.PersistErr,
	}, nil
}

// SwitchUser rebinds the session to another user. Everything tied to the
// previous user is cleared and the new user's summary is loaded.
func (o *Orchestrator) SwitchUser(ctx context.Context, sessionID string, userID string) (SessionInfo, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return SessionInfo{}, fmt.Errorf("%w: %v", contractx.ErrValidation, statex.ErrEmptyUserID)
	}

	return o.update(ctx, sessionID, func(st *statex.SessionState) error {
		if st.UserID == userID {
			return nil
		}
		st.UserID = userID
		st.ResetConversation()
		st.City = o.defaultCity
		st.Environment = nil
		o.hydrate(ctx, st)
		return nil
	})
}

// SetLocation changes the city used for weather lookups. Empty resets to the
// default city.
func (o *Orchestrator) SetLocation(ctx context.Context, sessionID string, city string) (SessionInfo, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		city = o.defaultCity
	}
	return o.update(ctx, sessionID, func(st *statex.SessionState) error {
		if st.City != city {
			st.City = city
			st.Environment = nil
		}
		return nil
	})
}

// SetOutfitDate selects the outfit of the day by date. Empty means today.
func (o *Orchestrator) SetOutfitDate(ctx context.Context, sessionID string, date string) (SessionInfo, error) {
	date, err := normalizeDate(date)
	if err != nil {
		return SessionInfo{}, err
	}
	return o.update(ctx, sessionID, func(st *statex.SessionState) error {
		if st.OutfitDate != date {
			st.OutfitDate = date
			st.Outfit = nil
		}
		return nil
	})
}

func (o *Orchestrator) Session(ctx context.Context, sessionID string) (SessionInfo, error) {
	st, err := o.sessions.Load(ctx, sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return sessionInfo(st), nil
}

// EndSession waits for an in-flight turn, then forgets the session. Long-term
// memory is kept.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	release, err := o.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()
	return o.sessions.Delete(ctx, sessionID)
}

func (o *Orchestrator) update(ctx context.Context, sessionID string, fn func(st *statex.SessionState) error) (SessionInfo, error) {
	release, err := o.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	defer release()

	st, err := o.sessions.Load(ctx, sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	if err := fn(st); err != nil {
		return SessionInfo{}, err
	}
	st.Touch(o.now())
	if err := o.sessions.Save(ctx, st); err != nil {
		return SessionInfo{}, err
	}
	return sessionInfo(st), nil
}

func (o *Orchestrator) hydrate(ctx context.Context, st *statex.SessionState) {
	if err := nodex.HydrateSummary(ctx, st, o.memory); err != nil {
		log.Warn().Err(err).
			Str("session_id", st.SessionID).
			Str("user_id", st.UserID).
			Msg("memory read failed; session starts without summary")
	}
}

func normalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", nil
	}
	if _, err := time.Parse(outfit.DateLayout, date); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return date, nil
}

func sessionInfo(st *statex.SessionState) SessionInfo {
	visible := make([]statex.Message, 0, len(st.History))
	for _, m := range st.History {
		if !m.Internal && m.Role != statex.RoleSystem {
			visible = append(visible, m)
		}
	}
	return SessionInfo{
		SessionID:    st.SessionID,
		UserID:       st.UserID,
		City:         st.City,
		OutfitDate:   st.OutfitDate,
		Summary:      st.Summary,
		MessageCount: len(st.History),
		LastTrace:    st.LastTrace,
		Outfit:       st.Outfit,
		Environment:  st.Environment,
		Messages:     visible,
		CreatedAt:    st.CreatedAt,
		UpdatedAt:    st.UpdatedAt,
	}
}

type noopMemoryStore struct{}

func (noopMemoryStore) ReadSummary(context.Context, string) (string, error) {
	return "", nil
}

func (noopMemoryStore) WriteSummary(context.Context, string, string) error {
	return nil
}

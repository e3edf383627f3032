package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionState is the per-conversation record threaded through the dispatch graph.
// - Short-term context: History (retained tail) + PendingRoute
// - Long-term context: Summary (owned by the compressor, persisted per user)
// - Read-only snapshots: Outfit + Environment, refreshed every turn
type SessionState struct {
	// Identity
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	// Lookup keys for the external snapshots
	City       string `json:"city,omitempty"`
	OutfitDate string `json:"outfit_date,omitempty"` // YYYY-MM-DD, empty = today

	History      []Message        `json:"history,omitempty"`
	Outfit       *OutfitReference `json:"outfit,omitempty"`
	Environment  *EnvironmentData `json:"environment,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	PendingRoute PendingRoute     `json:"pending_route"`

	MemoryLoaded bool     `json:"memory_loaded"`
	LastTrace    []string `json:"last_trace,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`   // agent that produced an assistant message
	Internal  bool      `json:"internal,omitempty"` // handler output, never shown to the user
	CreatedAt time.Time `json:"created_at"`
}

type OutfitReference struct {
	ID          string `json:"id,omitempty" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	ImageURL    string `json:"image_url,omitempty" yaml:"image_url"`
	Season      string `json:"season,omitempty" yaml:"season"`
	DressUp     string `json:"dress_it_up,omitempty" yaml:"dress_it_up"`
	DressDown   string `json:"dress_it_down,omitempty" yaml:"dress_it_down"`
	Date        string `json:"date" yaml:"date"`
}

type EnvironmentData struct {
	Location    string `json:"location,omitempty"`
	Temperature string `json:"temperature"`
	Condition   string `json:"conditions"`
	Source      string `json:"source"`
}

type RouteKind string

const (
	RouteUnset    RouteKind = ""
	RouteHandler  RouteKind = "handler"
	RouteTerminal RouteKind = "terminal"
)

// PendingRoute is set by the router, consumed by the dispatch graph and cleared each cycle.
type PendingRoute struct {
	Kind    RouteKind `json:"kind,omitempty"`
	Handler string    `json:"handler,omitempty"`
}

func HandlerRoute(handler string) PendingRoute {
	return PendingRoute{Kind: RouteHandler, Handler: handler}
}

func TerminalRoute() PendingRoute {
	return PendingRoute{Kind: RouteTerminal}
}

func (r PendingRoute) IsSet() bool      { return r.Kind != RouteUnset }
func (r PendingRoute) IsTerminal() bool { return r.Kind == RouteTerminal }
func (r PendingRoute) IsHandler() bool  { return r.Kind == RouteHandler }

func (r PendingRoute) String() string {
	switch r.Kind {
	case RouteHandler:
		return r.Handler
	case RouteTerminal:
		return "end"
	default:
		return ""
	}
}

func (r PendingRoute) Validate() error {
	switch r.Kind {
	case RouteUnset, RouteTerminal:
		if r.Handler != "" {
			return fmt.Errorf("%w: route kind=%q must not name a handler", ErrInvalidRoute, r.Kind)
		}
	case RouteHandler:
		if strings.TrimSpace(r.Handler) == "" {
			return fmt.Errorf("%w: handler route without handler", ErrInvalidRoute)
		}
	default:
		return fmt.Errorf("%w: kind=%q", ErrInvalidRoute, r.Kind)
	}
	return nil
}

/* ----------------------------- Message helpers ----------------------------- */

func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: now.UTC(),
	}
}

func (m Message) IsUser() bool      { return m.Role == RoleUser }
func (m Message) IsAssistant() bool { return m.Role == RoleAssistant }

/* -------------------------- SessionState helpers ------------------------- */

var (
	ErrInvalidRoute   = errors.New("invalid pending route")
	ErrInvalidRole    = errors.New("invalid message role")
	ErrEmptyUserID    = errors.New("user id is empty")
	ErrInvalidHistory = errors.New("history is not chronological")
)

func NewSessionState(sessionID, userID, city string, now time.Time) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		UserID:    userID,
		City:      city,
		History:   make([]Message, 0, 16),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Append adds a message to the end of the history.
func (s *SessionState) Append(msg Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.History = append(s.History, msg)
}

// LastMessage returns the most recent history entry.
func (s *SessionState) LastMessage() (Message, bool) {
	if s == nil || len(s.History) == 0 {
		return Message{}, false
	}
	return s.History[len(s.History)-1], true
}

// LatestUserMessage returns the content of the most recent user utterance.
func (s *SessionState) LatestUserMessage() string {
	if s == nil {
		return ""
	}
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].IsUser() {
			return s.History[i].Content
		}
	}
	return ""
}

// DropInternal removes handler outputs once a turn has been composed.
func (s *SessionState) DropInternal() int {
	before := len(s.History)
	s.History = slices.DeleteFunc(s.History, func(m Message) bool {
		return m.Internal
	})
	return before - len(s.History)
}

// ResetConversation clears everything tied to the current user.
func (s *SessionState) ResetConversation() {
	s.History = s.History[:0]
	s.Summary = ""
	s.PendingRoute = PendingRoute{}
	s.MemoryLoaded = false
	s.LastTrace = nil
}

func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.History = slices.Clone(s.History)
	out.LastTrace = slices.Clone(s.LastTrace)
	if s.Outfit != nil {
		o := *s.Outfit
		out.Outfit = &o
	}
	if s.Environment != nil {
		e := *s.Environment
		out.Environment = &e
	}
	return &out
}

func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUserID
	}
	if err := s.PendingRoute.Validate(); err != nil {
		return err
	}
	for i, m := range s.History {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("%w: index=%d role=%q", ErrInvalidRole, i, m.Role)
		}
		if i > 0 && !m.CreatedAt.IsZero() && m.CreatedAt.Before(s.History[i-1].CreatedAt) {
			return fmt.Errorf("%w: index=%d", ErrInvalidHistory, i)
		}
	}
	return nil
}

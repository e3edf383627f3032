package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
	ErrRegistryClosed  = errors.New("session registry is closed")
)

const (
	defaultJanitorInterval = time.Minute
)

// Store is the session contract used by the orchestrator. Load returns a
// private copy; callers commit changes with Save.
type Store interface {
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	Save(ctx context.Context, st *SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

// RegistryOption customizes Registry.
type RegistryOption func(*Registry)

// WithIdleTTL evicts sessions that have not been saved or acquired for ttl.
// Zero disables eviction.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

func WithJanitorInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

type registryEntry struct {
	state    *SessionState
	lock     chan struct{}
	lastUsed time.Time
}

// Registry holds one SessionState per active conversation. Turns on the same
// session are serialized through Acquire; distinct sessions never share state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*registryEntry
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	stop   chan struct{}
	done   chan struct{}
	closed bool
}

var _ Store = (*Registry)(nil)

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*registryEntry, 16),
		interval: defaultJanitorInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.ttl > 0 {
		r.stop = make(chan struct{})
		r.done = make(chan struct{})
		go r.janitor()
	}
	return r
}

// NewSessionID returns a time-ordered session identifier.
func NewSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (r *Registry) Load(_ context.Context, sessionID string) (*SessionState, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || e.state == nil {
		return nil, ErrSessionNotFound
	}
	e.lastUsed = r.now()
	return e.state.Clone(), nil
}

func (r *Registry) Save(_ context.Context, st *SessionState) error {
	if st == nil {
		return ErrNilSessionState
	}
	id := strings.TrimSpace(st.SessionID)
	if id == "" {
		return ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}

	e := r.entryLocked(id)
	e.state = st.Clone()
	e.lastUsed = r.now()
	return nil
}

func (r *Registry) Delete(_ context.Context, sessionID string) error {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Acquire takes the per-session turn lock of a saved session. The returned
// release func must be called exactly once.
func (r *Registry) Acquire(ctx context.Context, sessionID string) (func(), error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, ErrInvalidSession
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	e, ok := r.sessions[id]
	if !ok || e.state == nil {
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	e.lastUsed = r.now()
	lock := e.lock
	r.mu.Unlock()

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-lock })
	}, nil
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.sessions {
		if e.state != nil {
			n++
		}
	}
	return n
}

// Close stops the janitor. Saves after Close fail with ErrRegistryClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.stop != nil {
		close(r.stop)
		<-r.done
	}
	return nil
}

func (r *Registry) entryLocked(id string) *registryEntry {
	e, ok := r.sessions[id]
	if !ok {
		e = &registryEntry{lock: make(chan struct{}, 1)}
		r.sessions[id] = e
	}
	return e
}

func (r *Registry) janitor() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

func (r *Registry) evictIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for id, e := range r.sessions {
		if !e.lastUsed.Before(cutoff) {
			continue
		}
		// skip sessions with a turn in flight
		select {
		case e.lock <- struct{}{}:
			<-e.lock
		default:
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

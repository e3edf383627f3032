package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanpawarit/ali-stylist-agent/agent/agents/orchestrator"
)

type fakeService struct {
	mu       sync.Mutex
	sessions map[string]*orchestrator.SessionInfo
	turns    []string
	turnErr  error
	persist  error
}

func newFakeService() *fakeService {
	return &fakeService{sessions: map[string]*orchestrator.SessionInfo{}}
}

func (f *fakeService) StartSession(_ context.Context, opts orchestrator.SessionOptions) (orchestrator.SessionInfo, error) {
	if opts.OutfitDate == "bad" {
		return orchestrator.SessionInfo{}, fmt.Errorf("%w: %q", orchestrator.ErrInvalidDate, opts.OutfitDate)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	info := &orchestrator.SessionInfo{
		SessionID: fmt.Sprintf("s-%d", len(f.sessions)+1),
		UserID:    orDefault(opts.UserID, "default_user"),
		City:      orDefault(opts.City, "New York"),
		CreatedAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}
	f.sessions[info.SessionID] = info
	return *info, nil
}

func (f *fakeService) HandleMessage(_ context.Context, sessionID string, text string) (orchestrator.TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return orchestrator.TurnResult{}, orchestrator.ErrInvalidMessage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return orchestrator.TurnResult{}, orchestrator.ErrSessionNotFound
	}
	if f.turnErr != nil {
		return orchestrator.TurnResult{}, f.turnErr
	}
	f.turns = append(f.turns, text)
	return orchestrator.TurnResult{
		SessionID:  sessionID,
		Reply:      "echo: " + text,
		Trace:      []string{"orchestrator"},
		PersistErr: f.persist,
	}, nil
}

func (f *fakeService) SwitchUser(_ context.Context, sessionID string, userID string) (orchestrator.SessionInfo, error) {
	return f.update(sessionID, func(info *orchestrator.SessionInfo) { info.UserID = userID })
}

func (f *fakeService) SetLocation(_ context.Context, sessionID string, city string) (orchestrator.SessionInfo, error) {
	return f.update(sessionID, func(info *orchestrator.SessionInfo) { info.City = orDefault(city, "New York") })
}

func (f *fakeService) SetOutfitDate(_ context.Context, sessionID string, date string) (orchestrator.SessionInfo, error) {
	if date == "bad" {
		return orchestrator.SessionInfo{}, orchestrator.ErrInvalidDate
	}
	return f.update(sessionID, func(info *orchestrator.SessionInfo) { info.OutfitDate = date })
}

func (f *fakeService) Session(_ context.Context, sessionID string) (orchestrator.SessionInfo, error) {
	return f.update(sessionID, func(*orchestrator.SessionInfo) {})
}

func (f *fakeService) EndSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return orchestrator.ErrSessionNotFound
	}
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeService) update(sessionID string, fn func(*orchestrator.SessionInfo)) (orchestrator.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.sessions[sessionID]
	if !ok {
		return orchestrator.SessionInfo{}, orchestrator.ErrSessionNotFound
	}
	fn(info)
	return *info, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func setupRouter(t *testing.T) (http.Handler, *fakeService) {
	t.Helper()
	svc := newFakeService()
	return New(svc, Config{}).Router(), svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decodeBody[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h, _ := setupRouter(t)

	resp := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	h, svc := setupRouter(t)

	resp := do(t, h, http.MethodPost, "/api/sessions", `{"user_id":"u-1","city":"Oslo"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	info := decodeBody[orchestrator.SessionInfo](t, resp)
	assert.Equal(t, "u-1", info.UserID)
	assert.Equal(t, "Oslo", info.City)

	resp = do(t, h, http.MethodPost, "/api/sessions/"+info.SessionID+"/messages", `{"text":"what should I wear?"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	turn := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "echo: what should I wear?", turn["reply"])
	assert.NotContains(t, turn, "warning")
	assert.Equal(t, []string{"what should I wear?"}, svc.turns)

	resp = do(t, h, http.MethodPut, "/api/sessions/"+info.SessionID+"/user", `{"user_id":"u-2"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "u-2", decodeBody[orchestrator.SessionInfo](t, resp).UserID)

	resp = do(t, h, http.MethodPut, "/api/sessions/"+info.SessionID+"/context", `{"city":"Lima","outfit_date":"2026-10-14"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	updated := decodeBody[orchestrator.SessionInfo](t, resp)
	assert.Equal(t, "Lima", updated.City)
	assert.Equal(t, "2026-10-14", updated.OutfitDate)

	resp = do(t, h, http.MethodGet, "/api/sessions/"+info.SessionID, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Lima", decodeBody[orchestrator.SessionInfo](t, resp).City)

	resp = do(t, h, http.MethodDelete, "/api/sessions/"+info.SessionID, "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = do(t, h, http.MethodGet, "/api/sessions/"+info.SessionID, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCreateSessionWithEmptyBodyUsesDefaults(t *testing.T) {
	t.Parallel()
	h, _ := setupRouter(t)

	resp := do(t, h, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, resp.Code)
	info := decodeBody[orchestrator.SessionInfo](t, resp)
	assert.Equal(t, "default_user", info.UserID)
	assert.Equal(t, "New York", info.City)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/sessions/s-1/messages", `{`, http.StatusBadRequest},
		{"empty message", http.MethodPost, "/api/sessions/s-1/messages", `{"text":"  "}`, http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/api/sessions/ghost/messages", `{"text":"hi"}`, http.StatusNotFound},
		{"bad date on create", http.MethodPost, "/api/sessions", `{"outfit_date":"bad"}`, http.StatusBadRequest},
		{"bad date on context", http.MethodPut, "/api/sessions/s-1/context", `{"outfit_date":"bad"}`, http.StatusBadRequest},
		{"empty context", http.MethodPut, "/api/sessions/s-1/context", `{}`, http.StatusBadRequest},
		{"delete unknown", http.MethodDelete, "/api/sessions/ghost", "", http.StatusNotFound},
		{"too large", http.MethodPost, "/api/sessions/s-1/messages", `{"text":"` + strings.Repeat("a", 70<<10) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, svc := setupRouter(t)
			_, err := svc.StartSession(context.Background(), orchestrator.SessionOptions{})
			require.NoError(t, err)

			resp := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.Code, resp.Body.String())
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	t.Parallel()
	h, svc := setupRouter(t)
	_, err := svc.StartSession(context.Background(), orchestrator.SessionOptions{})
	require.NoError(t, err)
	svc.turnErr = errors.New("postgres: connection refused")

	resp := do(t, h, http.MethodPost, "/api/sessions/s-1/messages", `{"text":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotContains(t, resp.Body.String(), "postgres")
}

func TestPersistFailureIsAWarning(t *testing.T) {
	t.Parallel()
	h, svc := setupRouter(t)
	_, err := svc.StartSession(context.Background(), orchestrator.SessionOptions{})
	require.NoError(t, err)
	svc.persist = errors.New("upstash down")

	resp := do(t, h, http.MethodPost, "/api/sessions/s-1/messages", `{"text":"hi"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	turn := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "echo: hi", turn["reply"])
	assert.Equal(t, "conversation summary was not saved", turn["warning"])
}

func TestWebSocketChat(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	srv := httptest.NewServer(New(svc, Config{}).Router())
	defer srv.Close()

	_, err := svc.StartSession(context.Background(), orchestrator.SessionOptions{})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/s-1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var frame outboundFrame

	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "message", Text: "hello"}))
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "reply", frame.Type)
	require.NotNil(t, frame.Turn)
	assert.Equal(t, "echo: hello", frame.Turn.Reply)

	frame = outboundFrame{}
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "message", Text: ""}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.NotEmpty(t, frame.Error)

	frame = outboundFrame{}
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "pong", frame.Type)

	frame = outboundFrame{}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "invalid frame", frame.Error)
}

func TestWebSocketUnknownSession(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(New(newFakeService(), Config{}).Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/ghost/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

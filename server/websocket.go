package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 16 << 10
)

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outboundFrame struct {
	Type  string        `json:"type"`
	Turn  *turnResponse `json:"turn,omitempty"`
	Error string        `json:"error,omitempty"`
}

// handleWebSocket runs one turn per inbound {"type":"message"} frame. Frames
// are handled in order, so a client never has two turns in flight.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.svc.Session(r.Context(), sessionID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)

	logger := log.With().Str("session_id", sessionID).Logger()
	logger.Debug().Msg("websocket opened")

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var in inboundFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			if !writeFrame(conn, outboundFrame{Type: "error", Error: "invalid frame"}) {
				return
			}
			continue
		}

		switch in.Type {
		case "ping":
			if !writeFrame(conn, outboundFrame{Type: "pong"}) {
				return
			}
		case "message":
			res, err := s.svc.HandleMessage(ctx, sessionID, in.Text)
			if err != nil {
				frame := outboundFrame{Type: "error", Error: err.Error()}
				if statusFor(err) >= http.StatusInternalServerError {
					logger.Error().Err(err).Msg("websocket turn failed")
					frame.Error = http.StatusText(statusFor(err))
				}
				if !writeFrame(conn, frame) {
					return
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			turn := newTurnResponse(res)
			if !writeFrame(conn, outboundFrame{Type: "reply", Turn: &turn}) {
				return
			}
		default:
			if !writeFrame(conn, outboundFrame{Type: "error", Error: "unknown frame type"}) {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame outboundFrame) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(frame); err != nil {
		log.Warn().Err(err).Msg("websocket write failed")
		return false
	}
	return true
}

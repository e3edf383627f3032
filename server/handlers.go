package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/ali-stylist-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/ali-stylist-agent/agent/contract"
)

type createSessionRequest struct {
	UserID     string `json:"user_id"`
	City       string `json:"city"`
	OutfitDate string `json:"outfit_date"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type switchUserRequest struct {
	UserID string `json:"user_id"`
}

// Absent fields are left untouched; an empty string resets to the default.
type contextRequest struct {
	City       *string `json:"city"`
	OutfitDate *string `json:"outfit_date"`
}

type turnResponse struct {
	orchestrator.TurnResult
	Warning string `json:"warning,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload createSessionRequest
	if !s.decode(w, r, &payload, true) {
		return
	}

	info, err := s.svc.StartSession(r.Context(), orchestrator.SessionOptions{
		UserID:     payload.UserID,
		City:       payload.City,
		OutfitDate: payload.OutfitDate,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload messageRequest
	if !s.decode(w, r, &payload, false) {
		return
	}

	res, err := s.svc.HandleMessage(r.Context(), chi.URLParam(r, "sessionID"), payload.Text)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTurnResponse(res))
}

func (s *Server) handleSwitchUser(w http.ResponseWriter, r *http.Request) {
	var payload switchUserRequest
	if !s.decode(w, r, &payload, false) {
		return
	}

	info, err := s.svc.SwitchUser(r.Context(), chi.URLParam(r, "sessionID"), payload.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	var payload contextRequest
	if !s.decode(w, r, &payload, false) {
		return
	}
	if payload.City == nil && payload.OutfitDate == nil {
		respondError(w, http.StatusBadRequest, "city or outfit_date is required")
		return
	}

	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	var (
		info orchestrator.SessionInfo
		err  error
	)
	if payload.OutfitDate != nil {
		if info, err = s.svc.SetOutfitDate(ctx, sessionID, *payload.OutfitDate); err != nil {
			respondServiceError(w, r, err)
			return
		}
	}
	if payload.City != nil {
		if info, err = s.svc.SetLocation(ctx, sessionID, *payload.City); err != nil {
			respondServiceError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	err := json.NewDecoder(body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	respondError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func newTurnResponse(res orchestrator.TurnResult) turnResponse {
	out := turnResponse{TurnResult: res}
	if res.PersistErr != nil {
		out.Warning = "conversation summary was not saved"
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrInvalidMessage),
		errors.Is(err, orchestrator.ErrInvalidSession),
		errors.Is(err, orchestrator.ErrInvalidDate),
		errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("session_id", chi.URLParam(r, "sessionID")).
			Msg("request failed")
		msg = http.StatusText(status)
	}
	respondError(w, status, msg)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/ali-stylist-agent/agent/agents/orchestrator"
)

// Service is the orchestrator surface exposed over HTTP.
type Service interface {
	StartSession(ctx context.Context, opts orchestrator.SessionOptions) (orchestrator.SessionInfo, error)
	HandleMessage(ctx context.Context, sessionID string, text string) (orchestrator.TurnResult, error)
	SwitchUser(ctx context.Context, sessionID string, userID string) (orchestrator.SessionInfo, error)
	SetLocation(ctx context.Context, sessionID string, city string) (orchestrator.SessionInfo, error)
	SetOutfitDate(ctx context.Context, sessionID string, date string) (orchestrator.SessionInfo, error)
	Session(ctx context.Context, sessionID string) (orchestrator.SessionInfo, error)
	EndSession(ctx context.Context, sessionID string) error
}

var _ Service = (*orchestrator.Orchestrator)(nil)

type Server struct {
	svc      Service
	cfg      Config
	upgrader websocket.Upgrader
}

func New(svc Service, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	return &Server{
		svc: svc,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router wires every route onto a fresh chi mux.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/sessions", func(api chi.Router) {
		api.Post("/", s.handleCreateSession)
		api.Route("/{sessionID}", func(sr chi.Router) {
			sr.Get("/", s.handleGetSession)
			sr.Delete("/", s.handleDeleteSession)
			sr.Post("/messages", s.handleMessage)
			sr.Put("/user", s.handleSwitchUser)
			sr.Put("/context", s.handleSetContext)
			sr.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

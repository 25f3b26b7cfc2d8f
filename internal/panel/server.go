package panel

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"tracktap/internal/config"
	"tracktap/internal/history"
	"tracktap/internal/logging"
	"tracktap/internal/recorder"
	"tracktap/internal/recordings"
	"tracktap/internal/services"
)

//go:embed index.html
var indexPage []byte

// History is the read side of the run journal.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]history.Run, error)
	GetRun(ctx context.Context, id string) (history.Run, error)
	Outcomes(ctx context.Context, runID string) ([]history.Entry, error)
}

// Server is the control panel HTTP server.
type Server struct {
	bind     string
	recorder *recorder.Service
	library  *recordings.Library
	history  History
	logger   *slog.Logger
	router   *mux.Router

	// runCtx outlives individual requests; captures started from the panel
	// are bound to it.
	runCtx context.Context

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New builds the panel. hist may be nil when the journal is unavailable.
func New(cfg *config.Config, svc *recorder.Service, library *recordings.Library, hist History, logger *slog.Logger) *Server {
	s := &Server{
		recorder: svc,
		library:  library,
		history:  hist,
		logger:   logging.NewComponentLogger(logger, "panel"),
		runCtx:   context.Background(),
	}
	token := ""
	if cfg != nil {
		s.bind = strings.TrimSpace(cfg.Paths.APIBind)
		token = cfg.Paths.APIToken
	}

	r := mux.NewRouter()
	r.Use(requestID, accessLog(s.logger))
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware(token))
	api.HandleFunc("/record/track", s.handleRecordTrack).Methods(http.MethodPost)
	api.HandleFunc("/record/playlist", s.handleRecordPlaylist).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/status/stream", s.handleStatusStream).Methods(http.MethodGet)
	api.HandleFunc("/playlists", s.handlePlaylists).Methods(http.MethodGet)
	api.HandleFunc("/recordings", s.handleRecordings).Methods(http.MethodGet)
	api.HandleFunc("/recordings/{folder}/archive", s.handleArchive).Methods(http.MethodGet)
	api.HandleFunc("/recordings/{folder}/{file}", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/recordings/{file}", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{run}", s.handleHistoryRun).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	s.router = r
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until ctx is done.
// Captures triggered through the panel run under ctx.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "panel", "start", "paths.api_bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("panel listen: %w", err)
	}

	s.mu.Lock()
	s.runCtx = ctx
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("panel server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("panel listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "panel_started"),
	)
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down. Background captures are not waited for;
// use recorder.Service.Wait.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func (s *Server) captureContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps error markers to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "panel request failed", "panel_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

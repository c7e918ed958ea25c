package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"turn-annotator/internal/application/port/input"
	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
)

const shutdownTimeout = 10 * time.Second

// Transcript is the mutable conversation the server feeds events into.
type Transcript interface {
	output.TranscriptSink
	Append(role entity.MessageRole, text string) entity.Turn
	Replace(index int, text string) error
}

// Events is what the host reports and what the manual triggers call.
type Events interface {
	input.EventHandler
	ProcessLatest(ctx context.Context) (input.BatchResult, bool)
	ProcessLatestOne(ctx context.Context, taskID string) (input.BatchResult, bool, error)
	ProcessAt(ctx context.Context, turnIndex int) (input.BatchResult, error)
	ProcessOneAt(ctx context.Context, taskID string, turnIndex int) (input.BatchResult, error)
}

type Config struct {
	Addr string
	// AccessLog enables structured request logging.
	AccessLog bool
	// OnTranscriptChange runs after every request that changed the transcript.
	OnTranscriptChange func() error
}

// Server exposes the annotation pipeline to a host over HTTP.
type Server struct {
	cfg        Config
	events     Events
	transcript Transcript
	results    *service.ResultStore
	settings   output.SettingsSource
	logger     output.LoggerPort
	router     chi.Router
}

func NewServer(
	cfg Config,
	events Events,
	transcript Transcript,
	results *service.ResultStore,
	settings output.SettingsSource,
	logger output.LoggerPort,
) *Server {
	s := &Server{
		cfg:        cfg,
		events:     events,
		transcript: transcript,
		results:    results,
		settings:   settings,
		logger:     logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	if s.cfg.AccessLog {
		r.Use(httplog.RequestLogger(httplog.NewLogger("turn-annotator", httplog.Options{
			JSON:    true,
			Concise: true,
		})))
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/events", s.handleEvent)

	r.Route("/turns", func(r chi.Router) {
		r.Get("/", s.handleListTurns)
		r.Post("/", s.handleAppendTurn)
		r.Put("/{index}", s.handleReplaceTurn)
	})

	r.Get("/results", s.handleResults)
	r.Get("/tasks", s.handleListTasks)
	r.Post("/run", s.handleRunAll)
	r.Post("/tasks/{taskID}/run", s.handleRunTask)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

type eventRequest struct {
	Type string `json:"type"`
	Turn *int   `json:"turn,omitempty"`
}

const (
	eventTurnAdded    = "turn_added"
	eventTurnReplaced = "turn_replaced"
	eventChatChanged  = "chat_changed"
)

type batchResponse struct {
	Turn    int                               `json:"turn"`
	Started bool                              `json:"started"`
	Skipped bool                              `json:"skipped,omitempty"`
	Results map[string]entity.PersistedResult `json:"results,omitempty"`
}

func newBatchResponse(batch input.BatchResult, started bool) batchResponse {
	resp := batchResponse{Turn: batch.TurnIndex, Started: started, Skipped: batch.Skipped}
	if len(batch.Results) > 0 {
		resp.Results = make(map[string]entity.PersistedResult, len(batch.Results))
		for _, r := range batch.Results {
			resp.Results[r.TaskID] = r.Persisted()
		}
	}
	return resp
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid event body")
		return
	}

	turn := -1
	if req.Turn != nil {
		turn = *req.Turn
	}

	switch req.Type {
	case eventTurnAdded:
		batch, started := s.events.TurnAdded(r.Context(), turn)
		writeJSON(w, http.StatusOK, newBatchResponse(batch, started))
	case eventTurnReplaced:
		s.events.TurnReplaced(r.Context(), turn)
		w.WriteHeader(http.StatusNoContent)
	case eventChatChanged:
		s.events.ChatChanged(r.Context())
		w.WriteHeader(http.StatusNoContent)
	default:
		errorJSON(w, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", req.Type))
	}
}

type turnRequest struct {
	Role entity.MessageRole `json:"role"`
	Text string             `json:"text"`
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.transcript.Turns())
}

// handleAppendTurn adds a turn and, for assistant turns, runs the enabled tasks on it.
func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid turn body")
		return
	}
	switch req.Role {
	case entity.RoleUser, entity.RoleAssistant, entity.RoleSystem:
	default:
		errorJSON(w, http.StatusBadRequest, fmt.Sprintf("unknown role %q", req.Role))
		return
	}

	turn := s.transcript.Append(req.Role, req.Text)
	s.transcriptChanged()

	batch, started := s.events.TurnAdded(r.Context(), turn.Index)
	if started {
		s.transcriptChanged()
	}
	writeJSON(w, http.StatusCreated, newBatchResponse(batch, started))
}

// handleReplaceTurn swaps a turn's text. The next turn_added event for it is ignored.
func (s *Server) handleReplaceTurn(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid turn index")
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid turn body")
		return
	}

	if err := s.transcript.Replace(index, req.Text); err != nil {
		if errors.Is(err, entity.ErrTurnOutOfRange) {
			errorJSON(w, http.StatusNotFound, err.Error())
			return
		}
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.events.TurnReplaced(r.Context(), index)
	s.transcriptChanged()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.results.Snapshot())
}

type taskSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Enabled        bool   `json:"enabled"`
	WriteToContext bool   `json:"writeToContext"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.settings.Settings().Tasks
	resp := make([]taskSummary, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskSummary{ID: t.ID, Name: t.Name, Enabled: t.Enabled, WriteToContext: t.WriteToContext})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRunAll runs every enabled task on ?turn=n, or on the latest assistant turn. A turn that
// does not exist is a 404.
func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	turn, hasTurn, err := queryTurn(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	var batch input.BatchResult
	started := true
	if hasTurn {
		batch, err = s.events.ProcessAt(r.Context(), turn)
	} else {
		batch, started = s.events.ProcessLatest(r.Context())
	}
	if errors.Is(err, entity.ErrTurnOutOfRange) {
		errorJSON(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.transcriptChanged()
	writeJSON(w, http.StatusOK, newBatchResponse(batch, started))
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	turn, hasTurn, err := queryTurn(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	var batch input.BatchResult
	started := true
	if hasTurn {
		batch, err = s.events.ProcessOneAt(r.Context(), taskID, turn)
	} else {
		batch, started, err = s.events.ProcessLatestOne(r.Context(), taskID)
	}
	if errors.Is(err, entity.ErrTaskNotFound) || errors.Is(err, entity.ErrTurnOutOfRange) {
		errorJSON(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.transcriptChanged()
	writeJSON(w, http.StatusOK, newBatchResponse(batch, started))
}

func (s *Server) transcriptChanged() {
	if s.cfg.OnTranscriptChange == nil {
		return
	}
	if err := s.cfg.OnTranscriptChange(); err != nil {
		s.logger.Warn("Failed to save transcript", "error", err)
	}
}

func queryTurn(r *http.Request) (int, bool, error) {
	val := r.URL.Query().Get("turn")
	if val == "" {
		return 0, false, nil
	}
	turn, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("invalid turn %q", val)
	}
	return turn, true, nil
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

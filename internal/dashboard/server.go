// Package dashboard is a thin JSON-over-HTTP layer on the ops service, for
// the control CLI and a local browser. It holds no business logic.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/ops"
	"github.com/wilofice/enel/internal/store"
)

// Server serves the dashboard API on a local address.
type Server struct {
	ops  *ops.Service
	log  *zap.Logger
	http *http.Server
}

// NewServer creates the dashboard server for the given listen address.
func NewServer(svc *ops.Service, addr string, log *zap.Logger) *Server {
	s := &Server{ops: svc, log: log}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/drafts", s.handleDrafts)
	mux.HandleFunc("GET /api/outbox", s.handleOutbox)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/sent-today", s.handleSentToday)
	mux.HandleFunc("GET /api/follow-ups", s.handleFollowUps)
	mux.HandleFunc("GET /api/transcription", s.handleTranscriptionStatus)
	mux.HandleFunc("POST /api/outbox/{id}/promote", s.handlePromote)
	mux.HandleFunc("POST /api/outbox/{id}/retry", s.handleRetry)
	mux.HandleFunc("POST /api/send", s.handleSend)
	mux.HandleFunc("POST /api/transcription/start", s.handleTranscriptionStart)
	mux.HandleFunc("POST /api/transcription/pause", s.handleTranscriptionPause)
	return mux
}

// Start begins serving. The listener is bound synchronously so a busy port
// fails fast; the serve loop runs in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.log.Info("dashboard listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("dashboard server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleDrafts(w http.ResponseWriter, _ *http.Request) {
	drafts, err := s.ops.Drafts()
	s.respondList(w, drafts, err)
}

func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = store.StatusQueued
	}
	entries, err := s.ops.OutboxEntries(status)
	s.respondList(w, entries, err)
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	jobs, err := s.ops.Jobs()
	s.respondList(w, jobs, err)
}

func (s *Server) handleSentToday(w http.ResponseWriter, _ *http.Request) {
	sent, err := s.ops.SentToday()
	s.respondList(w, sent, err)
}

func (s *Server) handleFollowUps(w http.ResponseWriter, _ *http.Request) {
	flags, err := s.ops.FollowUps()
	s.respondList(w, flags, err)
}

func (s *Server) handleTranscriptionStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"running": s.ops.TranscriptionRunning()})
}

func (s *Server) handleTranscriptionStart(w http.ResponseWriter, _ *http.Request) {
	s.ops.StartTranscription()
	s.writeJSON(w, http.StatusOK, map[string]bool{"running": s.ops.TranscriptionRunning()})
}

func (s *Server) handleTranscriptionPause(w http.ResponseWriter, _ *http.Request) {
	s.ops.PauseTranscription()
	s.writeJSON(w, http.StatusOK, map[string]bool{"running": s.ops.TranscriptionRunning()})
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	s.outboxAction(w, r, s.ops.PromoteDraft)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.outboxAction(w, r, s.ops.RetryFailed)
}

func (s *Server) outboxAction(w http.ResponseWriter, r *http.Request, fn func(int64) error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid outbox id")
		return
	}
	if err := fn(id); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

type sendRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	Priority  int    `json:"priority"`
	ClientRef string `json:"client_ref"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := s.ops.QueueManual(req.ChatID, req.Text, req.ClientRef, req.Priority)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

// respondList writes a list payload, normalizing nil slices to empty ones so
// clients always get a JSON array.
func (s *Server) respondList(w http.ResponseWriter, v any, err error) {
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.IsNil() {
		v = reflect.MakeSlice(rv.Type(), 0, 0).Interface()
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Package ops exposes the operator-facing operations: inspecting drafts, the
// outbox, the job ledger and follow-ups, promoting or retrying rows, queueing
// manual messages, and controlling the transcription worker. The dashboard
// and the control CLI are thin layers over this service; it owns no
// transport.
package ops

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/store"
	"github.com/wilofice/enel/internal/transcribe"
)

// Service bundles the operator operations.
type Service struct {
	db     *store.DB
	worker *transcribe.Worker
	cfg    config.OutboxConfig
	log    *zap.Logger
}

// NewService creates the operations service.
func NewService(db *store.DB, worker *transcribe.Worker, cfg config.OutboxConfig, log *zap.Logger) *Service {
	return &Service{db: db, worker: worker, cfg: cfg, log: log}
}

// Drafts lists outbox rows awaiting approval.
func (s *Service) Drafts() ([]store.OutboxEntry, error) {
	return s.db.ListOutboxByStatus(store.StatusDraft)
}

// OutboxEntries lists outbox rows by status.
func (s *Service) OutboxEntries(status string) ([]store.OutboxEntry, error) {
	switch status {
	case store.StatusDraft, store.StatusQueued, store.StatusSent, store.StatusFailed:
	default:
		return nil, fmt.Errorf("unknown outbox status %q", status)
	}
	return s.db.ListOutboxByStatus(status)
}

// Jobs returns the job ledger.
func (s *Service) Jobs() ([]store.JobStatus, error) {
	return s.db.ListJobs()
}

// SentToday lists from-me messages since UTC midnight.
func (s *Service) SentToday() ([]store.SentMessage, error) {
	return s.db.SentToday()
}

// FollowUps lists flagged conversations.
func (s *Service) FollowUps() ([]store.FollowUp, error) {
	return s.db.ListFollowUps()
}

// PromoteDraft releases a draft for delivery.
func (s *Service) PromoteDraft(id int64) error {
	if err := s.db.PromoteDraft(id); err != nil {
		return err
	}
	s.log.Info("draft promoted", zap.Int64("outbox_id", id))
	return nil
}

// RetryFailed requeues a failed row with its attempts reset.
func (s *Service) RetryFailed(id int64) error {
	if err := s.db.RetryFailed(id); err != nil {
		return err
	}
	s.log.Info("failed row requeued", zap.Int64("outbox_id", id))
	return nil
}

// QueueManual inserts an operator-authored message. Manual messages skip the
// approval gate unless configuration says otherwise, and an optional client
// reference deduplicates retried submissions.
func (s *Service) QueueManual(chatID, text, clientRef string, priority int) (int64, error) {
	if chatID == "" || text == "" {
		return 0, fmt.Errorf("chat id and text are required")
	}
	if clientRef == "" {
		clientRef = uuid.NewString()
	}

	status := store.StatusQueued
	if s.cfg.ApprovalRequired && !s.cfg.ManualBypassApproval {
		status = store.StatusDraft
	}

	id, err := s.db.InsertManual(chatID, text, clientRef, status, priority)
	if err != nil {
		return 0, err
	}
	s.log.Info("manual message queued",
		zap.Int64("outbox_id", id),
		zap.String("chat_id", chatID),
		zap.String("status", status))
	return id, nil
}

// StartTranscription starts the audio backlog loop.
func (s *Service) StartTranscription() {
	s.worker.Start()
}

// PauseTranscription pauses the loop and kills any in-flight run.
func (s *Service) PauseTranscription() {
	s.worker.Pause()
}

// TranscriptionRunning reports whether the loop is active.
func (s *Service) TranscriptionRunning() bool {
	return s.worker.Running()
}

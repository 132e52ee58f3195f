// Package outbox delivers queued replies through the messaging adapter,
// driving each row through the draft/queued/sent/failed state machine.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/bus"
	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/jobs"
	"github.com/wilofice/enel/internal/store"
)

// JobName is the delivery sweep's name in the job ledger.
const JobName = "sendQueue"

// TextSender is the send side of the messaging adapter.
type TextSender interface {
	SendText(ctx context.Context, chatID string, text string) (sentMessageID string, err error)
}

// Sender polls the outbox and delivers eligible rows in priority order.
// Only the sender mutates outbox status, so per-row transitions need no
// locking beyond the database itself.
type Sender struct {
	db     *store.DB
	sender TextSender
	bus    *bus.Bus
	runner *jobs.Runner
	log    *zap.Logger

	approvalRequired bool
	batchLimit       int
	interval         time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates the delivery sweeper.
func NewSender(db *store.DB, sender TextSender, b *bus.Bus, runner *jobs.Runner, cfg config.OutboxConfig, log *zap.Logger) *Sender {
	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	limit := cfg.BatchLimit
	if limit <= 0 {
		limit = 20
	}
	return &Sender{
		db:               db,
		sender:           sender,
		bus:              b,
		runner:           runner,
		log:              log,
		approvalRequired: cfg.ApprovalRequired,
		batchLimit:       limit,
		interval:         interval,
	}
}

// Start begins the periodic delivery sweep.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop cancels the sweep loop and waits for the current pass to finish.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.runner.Run(ctx, JobName, s.Sweep)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep processes one batch of eligible rows. A failure on one row is
// recorded against that row and aggregated into the returned error; sibling
// rows are still attempted.
func (s *Sender) Sweep(ctx context.Context) error {
	pending, err := s.db.PendingOutbox(s.batchLimit)
	if err != nil {
		return fmt.Errorf("read outbox: %w", err)
	}

	var errs []error
	for _, entry := range pending {
		if entry.Status == store.StatusDraft && s.approvalRequired {
			continue
		}
		if err := s.deliver(ctx, entry); err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (s *Sender) deliver(ctx context.Context, entry store.OutboxEntry) error {
	sentMessageID, err := s.sender.SendText(ctx, entry.ChatID, entry.Text)
	if err != nil {
		s.log.Error("send failed",
			zap.Int64("outbox_id", entry.ID),
			zap.String("chat_id", entry.ChatID),
			zap.Int("attempts", entry.Attempts+1),
			zap.Error(err))
		if dbErr := s.db.RecordSendFailure(entry.ID); dbErr != nil {
			s.log.Error("failed to record send failure", zap.Int64("outbox_id", entry.ID), zap.Error(dbErr))
		}
		s.bus.Publish(bus.Emit(bus.KindOutboxFailed, map[string]any{
			"outbox_id": entry.ID,
			"chat_id":   entry.ChatID,
			"error":     err.Error(),
		}))
		return fmt.Errorf("outbox %d: %w", entry.ID, err)
	}

	if err := s.db.MarkOutboxSent(entry.ID, sentMessageID); err != nil {
		return fmt.Errorf("mark outbox %d sent: %w", entry.ID, err)
	}

	// Record our own side of the conversation so history includes it. Manual
	// sends may target a chat that has never messaged in, so the contact row
	// the message references must exist first.
	if err := s.db.UpsertContact(&store.Contact{ID: entry.ChatID}); err != nil {
		s.log.Error("failed to upsert contact for sent message",
			zap.Int64("outbox_id", entry.ID),
			zap.String("chat_id", entry.ChatID),
			zap.Error(err))
	}
	if err := s.db.InsertMessage(&store.Message{
		ID:        sentMessageID,
		ChatID:    entry.ChatID,
		FromMe:    true,
		Timestamp: time.Now().Unix(),
		Body:      entry.Text,
	}); err != nil {
		s.log.Error("failed to store own message",
			zap.Int64("outbox_id", entry.ID),
			zap.String("sent_message_id", sentMessageID),
			zap.Error(err))
	}

	s.log.Info("message sent",
		zap.Int64("outbox_id", entry.ID),
		zap.String("chat_id", entry.ChatID),
		zap.String("sent_message_id", sentMessageID))
	s.bus.Publish(bus.Emit(bus.KindOutboxSent, map[string]any{
		"outbox_id":       entry.ID,
		"chat_id":         entry.ChatID,
		"sent_message_id": sentMessageID,
	}))
	return nil
}

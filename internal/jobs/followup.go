package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/store"
)

// FollowUpJobName is the follow-up detector's name in the job ledger.
const FollowUpJobName = "followUp"

// FollowUp flags conversations that deserve attention: recent inbound
// questions nobody answered, and chats that have gone quiet for a long time.
// Detection is idempotent; re-running never duplicates a flag.
type FollowUp struct {
	db  *store.DB
	cfg config.JobsConfig
	log *zap.Logger
}

// NewFollowUp creates the follow-up detector.
func NewFollowUp(db *store.DB, cfg config.JobsConfig, log *zap.Logger) *FollowUp {
	return &FollowUp{db: db, cfg: cfg, log: log}
}

// Run executes one detection pass.
func (f *FollowUp) Run(_ context.Context) error {
	var errs []error

	questions, err := f.db.UnansweredQuestions(f.cfg.FollowUpQuestionDays)
	if err != nil {
		return fmt.Errorf("find unanswered questions: %w", err)
	}
	for _, q := range questions {
		if err := f.db.InsertFollowUp(q.ChatID, store.FollowUpQuestion, q.ID); err != nil {
			errs = append(errs, fmt.Errorf("flag question %s: %w", q.ID, err))
		}
	}

	stale, err := f.db.StaleChats(f.cfg.FollowUpStaleDays)
	if err != nil {
		return fmt.Errorf("find stale chats: %w", err)
	}
	for _, s := range stale {
		if err := f.db.InsertFollowUp(s.ChatID, store.FollowUpCatchUp, ""); err != nil {
			errs = append(errs, fmt.Errorf("flag stale chat %s: %w", s.ChatID, err))
		}
	}

	if len(questions) > 0 || len(stale) > 0 {
		f.log.Info("follow-ups flagged",
			zap.Int("questions", len(questions)),
			zap.Int("stale_chats", len(stale)))
	}
	return errors.Join(errs...)
}

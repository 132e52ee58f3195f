package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/history"
	"github.com/wilofice/enel/internal/llm"
	"github.com/wilofice/enel/internal/store"
)

// AssistantJobName is the draft sweep's name in the job ledger.
const AssistantJobName = "assistant"

// Assistant sweeps recent inbound messages that have no outbox row yet and
// drafts a reply for each. It covers messages the live pipeline missed, e.g.
// those received while the daemon was down or whose first draft attempt
// produced nothing.
type Assistant struct {
	db     *store.DB
	asm    *history.Assembler
	gen    *llm.Generator
	ingest config.IngestConfig
	llmCfg config.LLMConfig
	cfg    config.JobsConfig
	log    *zap.Logger
}

// NewAssistant creates the draft sweep.
func NewAssistant(db *store.DB, asm *history.Assembler, gen *llm.Generator,
	ingest config.IngestConfig, llmCfg config.LLMConfig, cfg config.JobsConfig, log *zap.Logger) *Assistant {
	return &Assistant{db: db, asm: asm, gen: gen, ingest: ingest, llmCfg: llmCfg, cfg: cfg, log: log}
}

// Run executes one sweep. A failure on one message is aggregated and the
// remaining messages are still processed.
func (a *Assistant) Run(ctx context.Context) error {
	if !a.ingest.GenerateReplies {
		return nil
	}

	limit := a.cfg.AssistantBatchLimit
	if limit <= 0 {
		limit = 20
	}
	pending, err := a.db.PendingForAssistant(a.cfg.AssistantLookbackDays, limit)
	if err != nil {
		return fmt.Errorf("read pending messages: %w", err)
	}

	var errs []error
	for _, msg := range pending {
		if a.tooShort(msg.Text) {
			continue
		}
		if err := a.draftOne(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("message %s: %w", msg.MsgID, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (a *Assistant) tooShort(text string) bool {
	if !a.ingest.IgnoreShortMessages {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(text)) < a.ingest.MinBodyLength
}

func (a *Assistant) draftOne(ctx context.Context, msg store.EmbedRow) error {
	turns, err := a.asm.Context(ctx, msg.ChatID, msg.MsgID, msg.Text, a.llmCfg.HistoryLimit, a.llmCfg.RecallK)
	if err != nil {
		return fmt.Errorf("assemble history: %w", err)
	}
	name, err := a.db.ContactName(msg.ChatID)
	if err != nil {
		return fmt.Errorf("read contact name: %w", err)
	}

	prompt := llm.BuildPrompt(a.llmCfg.Persona, turns, msg.Text, msg.Timestamp, name)
	draft := a.gen.Generate(ctx, prompt)
	if !draft.OK {
		return nil
	}

	id, err := a.db.InsertDraft(msg.ChatID, msg.MsgID, draft.Text, 1)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	a.log.Info("assistant drafted reply",
		zap.Int64("outbox_id", id),
		zap.String("chat_id", msg.ChatID),
		zap.String("source_message_id", msg.MsgID))
	return nil
}

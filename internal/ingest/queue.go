// Package ingest runs the incoming message pipeline: a single serial consumer
// that persists messages and media, kicks transcription for audio, and drafts
// a reply for each inbound text.
package ingest

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/bus"
	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/history"
	"github.com/wilofice/enel/internal/llm"
	"github.com/wilofice/enel/internal/store"
)

// Queue accepts events from the protocol adapter and processes them one at a
// time, so storage writes and draft generation for a chat never interleave.
type Queue struct {
	db        *store.DB
	bus       *bus.Bus
	asm       *history.Assembler
	gen       *llm.Generator
	cfg       config.IngestConfig
	llmCfg    config.LLMConfig
	log       *zap.Logger
	observers []Observer

	ch     chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates the pipeline. Observers are notified after each stored
// message.
func NewQueue(db *store.DB, b *bus.Bus, asm *history.Assembler, gen *llm.Generator,
	cfg config.IngestConfig, llmCfg config.LLMConfig, log *zap.Logger, observers ...Observer) *Queue {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	return &Queue{
		db:        db,
		bus:       b,
		asm:       asm,
		gen:       gen,
		cfg:       cfg,
		llmCfg:    llmCfg,
		log:       log,
		observers: observers,
		ch:        make(chan Event, size),
	}
}

// Start launches the single consumer goroutine.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})
	go q.loop(ctx)
}

// Stop cancels the consumer and waits for the in-flight event to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
}

// Enqueue filters and queues one event. Filtered events are dropped silently;
// a full queue drops the event with a warning rather than blocking the
// protocol adapter.
func (q *Queue) Enqueue(evt Event) bool {
	if !q.Accepts(evt) {
		return false
	}
	select {
	case q.ch <- evt:
		return true
	default:
		q.log.Warn("ingest queue full, dropping event",
			zap.String("message_id", evt.MessageID),
			zap.String("chat_id", evt.ChatID))
		return false
	}
}

// Accepts applies the pre-enqueue filter: status broadcasts, newsletter
// channels, and (configurably) too-short text bodies never enter the
// pipeline.
func (q *Queue) Accepts(evt Event) bool {
	if evt.MessageID == "" || evt.ChatID == "" {
		return false
	}
	if evt.IsStatus || evt.IsNewsletter || evt.IsGroup {
		return false
	}
	if strings.HasPrefix(evt.ChatID, "status@") || strings.HasSuffix(evt.ChatID, "@newsletter") ||
		strings.HasSuffix(evt.ChatID, "@g.us") {
		return false
	}
	if q.cfg.IgnoreShortMessages && !evt.HasMedia() {
		if utf8.RuneCountInString(strings.TrimSpace(evt.Body)) < q.cfg.MinBodyLength {
			return false
		}
	}
	return true
}

func (q *Queue) loop(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case evt := <-q.ch:
			if err := q.process(ctx, evt); err != nil {
				q.log.Error("failed to process event",
					zap.String("message_id", evt.MessageID),
					zap.String("chat_id", evt.ChatID),
					zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// process handles one event end to end. Draft generation failure is not an
// error; the message is already durable by then.
func (q *Queue) process(ctx context.Context, evt Event) error {
	if err := q.storeEvent(evt); err != nil {
		return err
	}
	for _, obs := range q.observers {
		obs.OnMessageStored(evt)
	}
	if !evt.FromMe && q.cfg.GenerateReplies {
		q.draftReply(ctx, evt)
	}
	return nil
}

// StoreOnly persists an event without drafting a reply, for history backfill.
func (q *Queue) StoreOnly(evt Event) error {
	if !q.Accepts(evt) {
		return nil
	}
	return q.storeEvent(evt)
}

func (q *Queue) storeEvent(evt Event) error {
	if err := q.db.UpsertContact(&store.Contact{ID: evt.ChatID, Name: evt.PushName}); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	if err := q.db.InsertMessage(&store.Message{
		ID:        evt.MessageID,
		ChatID:    evt.ChatID,
		FromMe:    evt.FromMe,
		Timestamp: evt.Timestamp,
		Body:      evt.Body,
	}); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	q.bus.Publish(bus.Emit(bus.KindMessageStored, map[string]string{
		"message_id": evt.MessageID,
		"chat_id":    evt.ChatID,
	}))

	if evt.HasMedia() {
		if err := q.storeMedia(evt); err != nil {
			// Media failure must not undo the stored message.
			q.log.Warn("failed to store media",
				zap.String("message_id", evt.MessageID),
				zap.Error(err))
		}
	}
	return nil
}

func (q *Queue) storeMedia(evt Event) error {
	data, err := evt.Download()
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}

	date := time.Unix(evt.Timestamp, 0).UTC().Format("2006-01-02")
	dir := filepath.Join(q.cfg.BaseFolder, sanitizePathPart(evt.ChatID), date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	name := fmt.Sprintf("%d_%s%s", evt.Timestamp, sanitizePathPart(evt.MessageID), extensionFor(evt))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write media file: %w", err)
	}

	if err := q.db.InsertAttachment(&store.Attachment{
		MessageID: evt.MessageID,
		FilePath:  path,
		MimeType:  evt.MimeType,
	}); err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}

	if strings.HasPrefix(evt.MimeType, "audio/") {
		q.bus.Publish(bus.Emit(bus.KindAudioStored, map[string]string{
			"message_id": evt.MessageID,
			"file_path":  path,
		}))
	}
	return nil
}

func (q *Queue) draftReply(ctx context.Context, evt Event) {
	text := strings.TrimSpace(evt.Body)
	if text == "" {
		return
	}

	turns, err := q.asm.Context(ctx, evt.ChatID, evt.MessageID, text, q.llmCfg.HistoryLimit, q.llmCfg.RecallK)
	if err != nil {
		q.log.Error("failed to assemble history", zap.String("chat_id", evt.ChatID), zap.Error(err))
		return
	}
	name, err := q.db.ContactName(evt.ChatID)
	if err != nil {
		q.log.Error("failed to read contact name", zap.String("chat_id", evt.ChatID), zap.Error(err))
	}

	prompt := llm.BuildPrompt(q.llmCfg.Persona, turns, text, evt.Timestamp, name)
	draft := q.gen.Generate(ctx, prompt)
	if !draft.OK {
		return
	}

	id, err := q.db.InsertDraft(evt.ChatID, evt.MessageID, draft.Text, 1)
	if err != nil {
		q.log.Error("failed to insert draft", zap.String("chat_id", evt.ChatID), zap.Error(err))
		return
	}
	q.log.Info("draft created",
		zap.Int64("outbox_id", id),
		zap.String("chat_id", evt.ChatID),
		zap.String("source_message_id", evt.MessageID))
	q.bus.Publish(bus.Emit(bus.KindDraftCreated, map[string]any{
		"outbox_id": id,
		"chat_id":   evt.ChatID,
	}))
}

func extensionFor(evt Event) string {
	if exts, err := mime.ExtensionsByType(evt.MimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if evt.FileName != "" {
		return filepath.Ext(evt.FileName)
	}
	return ""
}

var pathPartReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

func sanitizePathPart(s string) string {
	return pathPartReplacer.Replace(s)
}

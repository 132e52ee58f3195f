package wa

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/ingest"
	"github.com/wilofice/enel/internal/store"
)

// backfillInterval caps how often history syncs are replayed into the store.
const backfillInterval = 7 * 24 * time.Hour

// EventHandler routes whatsmeow events into the ingest queue and the session
// state machine.
type EventHandler struct {
	adapter *Adapter
	machine *Machine
	queue   *ingest.Queue
	db      *store.DB
	log     *zap.Logger
}

// NewEventHandler creates the handler and registers it with the adapter.
func NewEventHandler(adapter *Adapter, machine *Machine, queue *ingest.Queue, db *store.DB, log *zap.Logger) *EventHandler {
	h := &EventHandler{
		adapter: adapter,
		machine: machine,
		queue:   queue,
		db:      db,
		log:     log,
	}
	adapter.RegisterEventHandler(h.Handle)
	return h
}

// Handle dispatches a single whatsmeow event.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.onMessage(evt)
	case *events.HistorySync:
		h.onHistorySync(evt)
	case *events.Connected:
		h.onConnected()
	case *events.Disconnected:
		h.log.Warn("disconnected from WhatsApp")
		if err := h.machine.Transition(Reconnecting); err != nil {
			h.log.Debug("state transition rejected", zap.Error(err))
		}
	case *events.LoggedOut:
		h.log.Warn("logged out from WhatsApp", zap.Stringer("reason", evt.Reason))
		if err := h.machine.Transition(LoggedOut); err != nil {
			h.log.Debug("state transition rejected", zap.Error(err))
		}
	}
}

func (h *EventHandler) onMessage(evt *events.Message) {
	ie := ParseLiveMessage(evt)
	ie.Download = h.adapter.download(evt.Message)
	if h.queue.Enqueue(ie) {
		h.log.Debug("message enqueued",
			zap.String("chat", ie.ChatID),
			zap.String("id", ie.MessageID),
			zap.Bool("media", ie.HasMedia()))
	}
}

// onConnected marks the session ready and refreshes the contact mirror.
func (h *EventHandler) onConnected() {
	h.log.Info("connected to WhatsApp")
	if err := h.machine.Transition(Ready); err != nil {
		h.log.Debug("state transition rejected", zap.Error(err))
	}
	go func() {
		if err := h.adapter.RefreshContacts(context.Background(), h.db); err != nil {
			h.log.Warn("contact refresh failed", zap.Error(err))
		}
	}()
}

// onHistorySync replays server-side history into the store. Batches arrive
// after pairing and reconnects; the watermark keeps replays down to one pass
// per week. History rows are stored without drafting replies, old
// conversations should not wake the assistant.
func (h *EventHandler) onHistorySync(evt *events.HistorySync) {
	due, err := h.db.ShouldBackfill(backfillInterval)
	if err != nil {
		h.log.Warn("backfill watermark check failed", zap.Error(err))
		return
	}
	if !due {
		return
	}

	if evt.Data == nil {
		return
	}
	var stored int
	for _, conv := range evt.Data.GetConversations() {
		chat, err := types.ParseJID(conv.GetID())
		if err != nil {
			continue
		}
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			// Text only during backfill: media keys in old messages are
			// often expired and the volume would swamp the disk.
			ie := ingest.Event{
				MessageID:    wmsg.GetKey().GetID(),
				ChatID:       chat.ToNonAD().String(),
				FromMe:       wmsg.GetKey().GetFromMe(),
				Timestamp:    int64(wmsg.GetMessageTimestamp()),
				Body:         extractTextBody(wmsg.GetMessage()),
				IsGroup:      chat.Server == types.GroupServer,
				IsStatus:     chat.Server == types.BroadcastServer,
				IsNewsletter: chat.Server == types.NewsletterServer,
			}
			if err := h.queue.StoreOnly(ie); err != nil {
				h.log.Warn("failed to store history message",
					zap.String("chat", ie.ChatID), zap.Error(err))
				continue
			}
			stored++
		}
	}
	if stored > 0 {
		h.log.Info("history sync stored", zap.Int("messages", stored))
		if err := h.db.TouchBackfill(); err != nil {
			h.log.Warn("failed to update backfill watermark", zap.Error(err))
		}
	}
}

// Package history assembles the conversational context for draft generation:
// the literal recent turns of a chat plus semantically similar turns recalled
// from the vector store, merged chronologically with adjacent duplicates
// collapsed.
package history

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/store"
	"github.com/wilofice/enel/internal/vector"
)

// Assembler builds model context from the relational store and the vector
// recall collaborator. The vector side is best-effort: recall failures are
// logged and yield an empty recall set, never an error.
type Assembler struct {
	db       *store.DB
	embedder vector.Embedder
	vectors  vector.Store
	log      *zap.Logger
}

// NewAssembler creates an assembler. vectors may be nil to disable recall.
func NewAssembler(db *store.DB, embedder vector.Embedder, vectors vector.Store, log *zap.Logger) *Assembler {
	return &Assembler{db: db, embedder: embedder, vectors: vectors, log: log}
}

// Recent returns up to limit turns per direction for a chat, chronologically
// ascending, with transcript text substituted for audio messages and the
// triggering message excluded.
func (a *Assembler) Recent(chatID string, limit int, excludeID string) ([]store.HistoryRow, error) {
	mine, err := a.db.RecentByDirection(chatID, true, limit)
	if err != nil {
		return nil, err
	}
	theirs, err := a.db.RecentByDirection(chatID, false, limit)
	if err != nil {
		return nil, err
	}

	merged := make([]store.HistoryRow, 0, len(mine)+len(theirs))
	for _, r := range append(mine, theirs...) {
		if r.MsgID == excludeID {
			continue
		}
		merged = append(merged, r)
	}
	sortTurns(merged)
	return merged, nil
}

// Recall returns up to k turns semantically similar to text, scoped to the
// chat. Unavailable or failing vector storage degrades to no recall.
func (a *Assembler) Recall(ctx context.Context, text string, k int, chatID string) []store.HistoryRow {
	if a.vectors == nil || k <= 0 || text == "" {
		return nil
	}
	hits, err := a.vectors.Query(ctx, a.embedder.Embed(text), k, chatID)
	if err != nil {
		a.log.Warn("semantic recall failed", zap.String("chat_id", chatID), zap.Error(err))
		return nil
	}

	turns := make([]store.HistoryRow, 0, len(hits))
	for _, h := range hits {
		if h.Meta.Text == "" {
			continue
		}
		turns = append(turns, store.HistoryRow{
			MsgID:     h.ID,
			FromMe:    h.Meta.FromMe,
			Timestamp: h.Meta.Timestamp,
			Text:      h.Meta.Text,
		})
	}
	return turns
}

// Context merges recent history with recalled turns for one inbound message.
func (a *Assembler) Context(ctx context.Context, chatID, excludeID, newText string, limit, k int) ([]store.HistoryRow, error) {
	recent, err := a.Recent(chatID, limit, excludeID)
	if err != nil {
		return nil, err
	}
	recalled := a.Recall(ctx, newText, k, chatID)
	return MergeTurns(recent, recalled), nil
}

// MergeTurns combines two turn sets chronologically and drops consecutive
// turns with the same direction and text, so a recalled turn that is also in
// the recent window does not appear twice.
func MergeTurns(a, b []store.HistoryRow) []store.HistoryRow {
	merged := make([]store.HistoryRow, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sortTurns(merged)

	out := merged[:0]
	for _, t := range merged {
		if n := len(out); n > 0 && out[n-1].FromMe == t.FromMe && out[n-1].Text == t.Text {
			continue
		}
		out = append(out, t)
	}
	return out
}

func sortTurns(turns []store.HistoryRow) {
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].Timestamp != turns[j].Timestamp {
			return turns[i].Timestamp < turns[j].Timestamp
		}
		return turns[i].MsgID < turns[j].MsgID
	})
}

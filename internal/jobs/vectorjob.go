package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/store"
	"github.com/wilofice/enel/internal/vector"
)

// VectorJobName is the indexing job's name in the job ledger.
const VectorJobName = "vectorJob"

// VectorIndex pushes message text into the vector store in fixed-size
// batches. The watermark table keeps it idempotent: only messages without a
// watermark row are embedded, and the loop runs until a batch comes back
// short, so the backlog converges to zero without unbounded memory use.
type VectorIndex struct {
	db        *store.DB
	embedder  vector.Embedder
	vectors   vector.Store
	batchSize int
	log       *zap.Logger
}

// NewVectorIndex creates the indexing job.
func NewVectorIndex(db *store.DB, embedder vector.Embedder, vectors vector.Store, batchSize int, log *zap.Logger) *VectorIndex {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &VectorIndex{db: db, embedder: embedder, vectors: vectors, batchSize: batchSize, log: log}
}

// Run executes one indexing pass. A vector-store failure aborts the pass;
// everything embedded so far is already watermarked and will not be redone.
func (v *VectorIndex) Run(ctx context.Context) error {
	if err := v.vectors.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	total := 0
	for {
		batch, err := v.db.UnembeddedBatch(v.batchSize)
		if err != nil {
			return fmt.Errorf("read unembedded batch: %w", err)
		}
		for _, msg := range batch {
			meta := vector.Meta{
				ChatID:    msg.ChatID,
				FromMe:    msg.FromMe,
				Text:      msg.Text,
				Timestamp: msg.Timestamp,
			}
			if err := v.vectors.Upsert(ctx, msg.MsgID, v.embedder.Embed(msg.Text), meta); err != nil {
				return fmt.Errorf("upsert vector %s: %w", msg.MsgID, err)
			}
			if err := v.db.MarkEmbedded(msg.MsgID); err != nil {
				return fmt.Errorf("mark embedded %s: %w", msg.MsgID, err)
			}
		}
		total += len(batch)
		if len(batch) < v.batchSize {
			break
		}
	}

	if total > 0 {
		v.log.Info("vectors indexed", zap.Int("count", total))
	}
	return nil
}

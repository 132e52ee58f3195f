package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/bus"
	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/history"
	"github.com/wilofice/enel/internal/llm"
	"github.com/wilofice/enel/internal/store"
	"github.com/wilofice/enel/internal/vector"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Migrate()
	require.NoError(t, err)
	return db
}

type stubBackend struct {
	text string
	err  error
}

func (s *stubBackend) Complete(context.Context, string) (string, error) { return s.text, s.err }
func (s *stubBackend) Name() string                                     { return "stub" }

func seedInbound(t *testing.T, db *store.DB, id, body string, age time.Duration) {
	t.Helper()
	require.NoError(t, db.UpsertContact(&store.Contact{ID: "c@s", Name: "Alice"}))
	require.NoError(t, db.InsertMessage(&store.Message{
		ID: id, ChatID: "c@s", FromMe: false,
		Timestamp: time.Now().Add(-age).Unix(), Body: body,
	}))
}

func TestRunnerRecordsLedger(t *testing.T) {
	db := testDB(t)
	r := NewRunner(db, bus.New(), zap.NewNop())

	boom := errors.New("boom")
	err := r.Run(context.Background(), "demo", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	js, err := db.GetJob("demo")
	require.NoError(t, err)
	require.NotNil(t, js)
	assert.Equal(t, "boom", js.LastError)
	assert.False(t, js.LastStart.IsZero())
	assert.False(t, js.LastEnd.IsZero())

	// A later clean run clears the recorded error.
	require.NoError(t, r.Run(context.Background(), "demo", func(context.Context) error { return nil }))
	js, err = db.GetJob("demo")
	require.NoError(t, err)
	assert.Empty(t, js.LastError)
}

func newAssistant(db *store.DB, backend llm.Backend) *Assistant {
	log := zap.NewNop()
	asm := history.NewAssembler(db, vector.NewHashEmbedder(0), nil, log)
	gen := llm.NewGenerator(backend, log)
	ingest := config.IngestConfig{GenerateReplies: true, IgnoreShortMessages: true, MinBodyLength: 2}
	llmCfg := config.LLMConfig{Persona: "p", HistoryLimit: 10}
	cfg := config.JobsConfig{AssistantLookbackDays: 2, AssistantBatchLimit: 20}
	return NewAssistant(db, asm, gen, ingest, llmCfg, cfg, log)
}

func TestAssistantDraftsPendingInbound(t *testing.T) {
	db := testDB(t)
	seedInbound(t, db, "m1", "are we still on?", time.Hour)
	seedInbound(t, db, "m2", "k", time.Hour)               // too short
	seedInbound(t, db, "m3", "old question?", 10*24*time.Hour) // outside lookback

	a := newAssistant(db, &stubBackend{text: "yes, see you at 8"})
	require.NoError(t, a.Run(context.Background()))

	drafts, err := db.ListOutboxByStatus(store.StatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "m1", drafts[0].SourceMessageID)
	assert.Equal(t, "yes, see you at 8", drafts[0].Text)

	// Second run finds nothing: the outbox row is the watermark.
	require.NoError(t, a.Run(context.Background()))
	drafts, err = db.ListOutboxByStatus(store.StatusDraft)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestAssistantDisabledByConfig(t *testing.T) {
	db := testDB(t)
	seedInbound(t, db, "m1", "hello there", time.Hour)

	a := newAssistant(db, &stubBackend{text: "never"})
	a.ingest.GenerateReplies = false
	require.NoError(t, a.Run(context.Background()))

	drafts, err := db.ListOutboxByStatus(store.StatusDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestFollowUpFlagsAndStaysIdempotent(t *testing.T) {
	db := testDB(t)
	seedInbound(t, db, "q1", "coming tonight?", time.Hour)
	require.NoError(t, db.UpsertContact(&store.Contact{ID: "old@s", Name: "Bob"}))
	require.NoError(t, db.InsertMessage(&store.Message{
		ID: "s1", ChatID: "old@s", FromMe: true,
		Timestamp: time.Now().Add(-60 * 24 * time.Hour).Unix(), Body: "long ago",
	}))

	f := NewFollowUp(db, config.JobsConfig{FollowUpQuestionDays: 2, FollowUpStaleDays: 30}, zap.NewNop())
	require.NoError(t, f.Run(context.Background()))
	require.NoError(t, f.Run(context.Background()))

	flags, err := db.ListFollowUps()
	require.NoError(t, err)

	byReason := map[string]int{}
	for _, fl := range flags {
		byReason[fl.Reason]++
	}
	assert.Equal(t, 1, byReason[store.FollowUpQuestion])
	// Both chats are quiet long enough to be stale except c@s (active 1h ago).
	assert.Equal(t, 1, byReason[store.FollowUpCatchUp])
}

type memVectors struct {
	upserts int
	fail    bool
}

func (m *memVectors) EnsureCollection(context.Context) error { return nil }
func (m *memVectors) Upsert(context.Context, string, []float64, vector.Meta) error {
	if m.fail {
		return errors.New("vector store down")
	}
	m.upserts++
	return nil
}
func (m *memVectors) Query(context.Context, []float64, int, string) ([]vector.Hit, error) {
	return nil, nil
}

func TestVectorIndexBatchesUntilShort(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.UpsertContact(&store.Contact{ID: "c@s"}))
	for i := 0; i < 5; i++ {
		require.NoError(t, db.InsertMessage(&store.Message{
			ID: fmt.Sprintf("m%d", i), ChatID: "c@s",
			Timestamp: int64(i), Body: fmt.Sprintf("message %d", i),
		}))
	}

	vecs := &memVectors{}
	v := NewVectorIndex(db, vector.NewHashEmbedder(0), vecs, 2, zap.NewNop())
	require.NoError(t, v.Run(context.Background()))
	assert.Equal(t, 5, vecs.upserts)

	// Convergence: a second run has nothing to embed.
	require.NoError(t, v.Run(context.Background()))
	assert.Equal(t, 5, vecs.upserts)
}

func TestVectorIndexReportsUnderLedgerName(t *testing.T) {
	db := testDB(t)
	r := NewRunner(db, bus.New(), zap.NewNop())
	v := NewVectorIndex(db, vector.NewHashEmbedder(0), &memVectors{}, 2, zap.NewNop())

	require.NoError(t, r.Run(context.Background(), VectorJobName, v.Run))

	js, err := db.GetJob("vectorJob")
	require.NoError(t, err)
	require.NotNil(t, js)
	assert.Empty(t, js.LastError)
}

func TestVectorIndexAbortsWhenStoreDown(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.UpsertContact(&store.Contact{ID: "c@s"}))
	require.NoError(t, db.InsertMessage(&store.Message{
		ID: "m1", ChatID: "c@s", Timestamp: 1, Body: "hello",
	}))

	v := NewVectorIndex(db, vector.NewHashEmbedder(0), &memVectors{fail: true}, 2, zap.NewNop())
	require.Error(t, v.Run(context.Background()))

	// Nothing was watermarked, so a healthy run still sees the backlog.
	batch, err := db.UnembeddedBatch(10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestProfilerStoresProfile(t *testing.T) {
	db := testDB(t)
	seedInbound(t, db, "m1", "I got the new job!", time.Hour)

	gen := llm.NewGenerator(&stubBackend{text: "Works in tech, recently changed jobs."}, zap.NewNop())
	p := NewProfiler(db, gen, 50, zap.NewNop())
	require.NoError(t, p.Run(context.Background()))

	c, err := db.GetContact("c@s")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Works in tech, recently changed jobs.", c.Profile)
}

func TestProfilerSkipsContactsWithoutHistory(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.UpsertContact(&store.Contact{ID: "quiet@s", Name: "Quiet"}))

	gen := llm.NewGenerator(&stubBackend{text: "should not be stored"}, zap.NewNop())
	p := NewProfiler(db, gen, 50, zap.NewNop())
	require.NoError(t, p.Run(context.Background()))

	c, err := db.GetContact("quiet@s")
	require.NoError(t, err)
	assert.Empty(t, c.Profile)
}

package ingest

import (
	"context"
	"os"
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

type stubBackend struct {
	text string
	err  error
}

func (s *stubBackend) Complete(context.Context, string) (string, error) { return s.text, s.err }
func (s *stubBackend) Name() string                                     { return "stub" }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Migrate()
	require.NoError(t, err)
	return db
}

func newTestQueue(t *testing.T, db *store.DB, b *bus.Bus, backend llm.Backend) *Queue {
	t.Helper()
	log := zap.NewNop()
	asm := history.NewAssembler(db, vector.NewHashEmbedder(0), nil, log)
	gen := llm.NewGenerator(backend, log)
	cfg := config.IngestConfig{
		BaseFolder:          t.TempDir(),
		IgnoreShortMessages: true,
		MinBodyLength:       2,
		GenerateReplies:     true,
		QueueSize:           16,
	}
	llmCfg := config.LLMConfig{Persona: "Be helpful.", HistoryLimit: 10, RecallK: 0}
	return NewQueue(db, b, asm, gen, cfg, llmCfg, log)
}

func inbound(id, body string) Event {
	return Event{
		MessageID: id,
		ChatID:    "c@s",
		FromMe:    false,
		Timestamp: time.Now().Unix(),
		Body:      body,
		PushName:  "Alice",
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAcceptsFilters(t *testing.T) {
	q := newTestQueue(t, testDB(t), bus.New(), &stubBackend{})

	assert.True(t, q.Accepts(inbound("m1", "hello")))
	assert.False(t, q.Accepts(Event{MessageID: "m2", ChatID: "status@broadcast", Body: "story"}))
	assert.False(t, q.Accepts(Event{MessageID: "m3", ChatID: "123@newsletter", Body: "news"}))
	assert.False(t, q.Accepts(Event{MessageID: "m4", ChatID: "c@s", IsStatus: true, Body: "story"}))
	assert.False(t, q.Accepts(Event{MessageID: "m6", ChatID: "123@g.us", Body: "group chatter"}))
	assert.False(t, q.Accepts(Event{MessageID: "m7", ChatID: "c@s", IsGroup: true, Body: "group chatter"}))
	assert.False(t, q.Accepts(inbound("m5", "k")), "single-rune body is filtered")
	assert.False(t, q.Accepts(Event{ChatID: "c@s", Body: "no id"}))
}

func TestShortMediaMessageIsKept(t *testing.T) {
	q := newTestQueue(t, testDB(t), bus.New(), &stubBackend{})
	evt := inbound("m1", "")
	evt.MimeType = "audio/ogg"
	evt.Download = func() ([]byte, error) { return []byte("x"), nil }
	assert.True(t, q.Accepts(evt))
}

func TestProcessStoresMessageAndDraft(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	q := newTestQueue(t, db, b, &stubBackend{text: "sure, tomorrow works"})

	q.Start(context.Background())
	defer q.Stop()
	require.True(t, q.Enqueue(inbound("m1", "does tomorrow work?")))

	waitFor(t, func() bool {
		drafts, err := db.ListOutboxByStatus(store.StatusDraft)
		require.NoError(t, err)
		return len(drafts) == 1
	})

	msg, err := db.GetMessage("m1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "does tomorrow work?", msg.Body)

	name, err := db.ContactName("c@s")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	drafts, err := db.ListOutboxByStatus(store.StatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "sure, tomorrow works", drafts[0].Text)
	assert.Equal(t, "m1", drafts[0].SourceMessageID)
	assert.Equal(t, store.OriginAI, drafts[0].Origin)
}

func TestOwnMessagesNeverDrafted(t *testing.T) {
	db := testDB(t)
	q := newTestQueue(t, db, bus.New(), &stubBackend{text: "should not appear"})

	q.Start(context.Background())
	defer q.Stop()

	evt := inbound("m1", "note to self")
	evt.FromMe = true
	require.True(t, q.Enqueue(evt))

	waitFor(t, func() bool {
		msg, err := db.GetMessage("m1")
		require.NoError(t, err)
		return msg != nil
	})

	drafts, err := db.ListOutboxByStatus(store.StatusDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestBackendFailureStillStoresMessage(t *testing.T) {
	db := testDB(t)
	q := newTestQueue(t, db, bus.New(), &stubBackend{err: assert.AnError})

	q.Start(context.Background())
	defer q.Stop()
	require.True(t, q.Enqueue(inbound("m1", "anyone there?")))

	waitFor(t, func() bool {
		msg, err := db.GetMessage("m1")
		require.NoError(t, err)
		return msg != nil
	})

	drafts, err := db.ListOutboxByStatus(store.StatusDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestMediaStoredAndAudioEventPublished(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	audioCh, unsub := b.Subscribe(bus.KindAudioStored, 4)
	defer unsub()

	q := newTestQueue(t, db, b, &stubBackend{err: assert.AnError})
	q.Start(context.Background())
	defer q.Stop()

	evt := inbound("m1", "")
	evt.MimeType = "audio/ogg"
	evt.Download = func() ([]byte, error) { return []byte("fake-opus"), nil }
	require.True(t, q.Enqueue(evt))

	select {
	case got := <-audioCh:
		assert.Equal(t, bus.KindAudioStored, got.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no audio_stored event")
	}

	att, err := db.GetAttachment("m1")
	require.NoError(t, err)
	require.NotNil(t, att)
	assert.Equal(t, "audio/ogg", att.MimeType)

	data, err := os.ReadFile(att.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-opus"), data)
}

func TestStoreOnlySkipsDrafting(t *testing.T) {
	db := testDB(t)
	q := newTestQueue(t, db, bus.New(), &stubBackend{text: "should not appear"})

	require.NoError(t, q.StoreOnly(inbound("m1", "old backfilled message")))

	msg, err := db.GetMessage("m1")
	require.NoError(t, err)
	require.NotNil(t, msg)

	drafts, err := db.ListOutboxByStatus(store.StatusDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestDuplicateEventIsIdempotent(t *testing.T) {
	db := testDB(t)
	q := newTestQueue(t, db, bus.New(), &stubBackend{err: assert.AnError})

	evt := inbound("m1", "hello hello")
	require.NoError(t, q.StoreOnly(evt))
	require.NoError(t, q.StoreOnly(evt))

	n, err := db.MessageCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

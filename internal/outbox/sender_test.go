package outbox

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/bus"
	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/jobs"
	"github.com/wilofice/enel/internal/store"
)

// mockSender records calls and returns configurable results.
type mockSender struct {
	calls []sendCall
	err   error
}

type sendCall struct {
	ChatID string
	Text   string
}

func (m *mockSender) SendText(_ context.Context, chatID string, text string) (string, error) {
	m.calls = append(m.calls, sendCall{ChatID: chatID, Text: text})
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("srv-%d", len(m.calls)), nil
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestSender(t *testing.T, db *store.DB, mock TextSender, approval bool) *Sender {
	t.Helper()
	b := bus.New()
	logger := zap.NewNop()
	cfg := config.OutboxConfig{ApprovalRequired: approval, BatchLimit: 20, SweepIntervalSeconds: 1}
	return NewSender(db, mock, b, jobs.NewRunner(db, b, logger), cfg, logger)
}

func queueRow(t *testing.T, db *store.DB, chatID, text string, priority int) int64 {
	t.Helper()
	id, err := db.InsertManual(chatID, text, "ref-"+text, store.StatusQueued, priority)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestSweepDeliversByPriorityThenID(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&store.Contact{ID: "c@s"}); err != nil {
		t.Fatal(err)
	}
	queueRow(t, db, "c@s", "low", 1)
	queueRow(t, db, "c@s", "urgent-a", 5)
	queueRow(t, db, "c@s", "urgent-b", 5)

	mock := &mockSender{}
	s := newTestSender(t, db, mock, true)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"urgent-a", "urgent-b", "low"}
	if len(mock.calls) != len(want) {
		t.Fatalf("got %d send calls, want %d", len(mock.calls), len(want))
	}
	for i, text := range want {
		if mock.calls[i].Text != text {
			t.Errorf("call %d text = %q, want %q", i, mock.calls[i].Text, text)
		}
	}
}

func TestSweepSkipsDraftsWhenApprovalRequired(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&store.Contact{ID: "c@s"}); err != nil {
		t.Fatal(err)
	}
	draftID, err := db.InsertDraft("c@s", "m1", "draft reply", 0)
	if err != nil {
		t.Fatal(err)
	}
	queueRow(t, db, "c@s", "approved", 0)

	mock := &mockSender{}
	s := newTestSender(t, db, mock, true)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(mock.calls) != 1 || mock.calls[0].Text != "approved" {
		t.Fatalf("calls = %+v, want only the queued row", mock.calls)
	}
	entry, err := db.GetOutboxEntry(draftID)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != store.StatusDraft {
		t.Errorf("draft status = %q, want draft untouched", entry.Status)
	}
}

func TestSweepSendsDraftsWithoutApprovalGate(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&store.Contact{ID: "c@s"}); err != nil {
		t.Fatal(err)
	}
	draftID, err := db.InsertDraft("c@s", "m1", "draft reply", 0)
	if err != nil {
		t.Fatal(err)
	}

	mock := &mockSender{}
	s := newTestSender(t, db, mock, false)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}

	entry, err := db.GetOutboxEntry(draftID)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != store.StatusSent {
		t.Errorf("status = %q, want sent", entry.Status)
	}
}

func TestSweepRecordsFailureAndContinuesSiblings(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&store.Contact{ID: "c@s"}); err != nil {
		t.Fatal(err)
	}
	first := queueRow(t, db, "c@s", "a", 0)
	queueRow(t, db, "c@s", "b", 0)

	mock := &mockSender{err: fmt.Errorf("network down")}
	s := newTestSender(t, db, mock, true)

	err := s.Sweep(context.Background())
	if err == nil {
		t.Fatal("want aggregated error from failed sends")
	}
	if len(mock.calls) != 2 {
		t.Errorf("got %d calls, want both rows attempted", len(mock.calls))
	}

	entry, dbErr := db.GetOutboxEntry(first)
	if dbErr != nil {
		t.Fatal(dbErr)
	}
	if entry.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", entry.Attempts)
	}
	if entry.Status != store.StatusQueued {
		t.Errorf("status = %q, want still queued below the cap", entry.Status)
	}
}

func TestSweepMarksFailedAfterCap(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&store.Contact{ID: "c@s"}); err != nil {
		t.Fatal(err)
	}
	id := queueRow(t, db, "c@s", "doomed", 0)

	mock := &mockSender{err: fmt.Errorf("still down")}
	s := newTestSender(t, db, mock, true)
	for i := 0; i < store.MaxSendAttempts; i++ {
		_ = s.Sweep(context.Background())
	}

	entry, err := db.GetOutboxEntry(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != store.StatusFailed {
		t.Errorf("status = %q, want failed after %d attempts", entry.Status, store.MaxSendAttempts)
	}
	if entry.Attempts != store.MaxSendAttempts {
		t.Errorf("attempts = %d, want %d", entry.Attempts, store.MaxSendAttempts)
	}

	// A failed row never re-enters the sweep.
	mock.calls = nil
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("failed row was re-attempted: %+v", mock.calls)
	}
}

func TestDeliverStoresOwnMessage(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&store.Contact{ID: "c@s"}); err != nil {
		t.Fatal(err)
	}
	id := queueRow(t, db, "c@s", "hello there", 0)

	s := newTestSender(t, db, &mockSender{}, true)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}

	entry, err := db.GetOutboxEntry(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.SentMessageID == "" {
		t.Fatal("sent message id not recorded")
	}
	msg, err := db.GetMessage(entry.SentMessageID)
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil || !msg.FromMe || msg.Body != "hello there" {
		t.Errorf("own message row = %+v, want from-me copy of the sent text", msg)
	}
}

func TestDeliverToUnknownChatStoresOwnMessage(t *testing.T) {
	db := testDB(t)
	// No contacts row for this chat: a manual send can target a chat that
	// has never messaged in.
	id := queueRow(t, db, "stranger@s", "first contact", 0)

	s := newTestSender(t, db, &mockSender{}, true)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}

	entry, err := db.GetOutboxEntry(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != store.StatusSent {
		t.Fatalf("status = %q, want sent", entry.Status)
	}
	msg, err := db.GetMessage(entry.SentMessageID)
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil {
		t.Fatalf("no message row for %s: sent copy was lost", entry.SentMessageID)
	}
	if !msg.FromMe || msg.Body != "first contact" {
		t.Errorf("own message row = %+v, want from-me copy of the sent text", msg)
	}
	contact, err := db.GetContact("stranger@s")
	if err != nil {
		t.Fatal(err)
	}
	if contact == nil {
		t.Error("contact row not created for the unknown chat")
	}
}

func TestSenderLoopDrainsQueue(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&store.Contact{ID: "c@s"}); err != nil {
		t.Fatal(err)
	}
	queueRow(t, db, "c@s", "hello", 0)

	mock := &mockSender{}
	s := newTestSender(t, db, mock, true)
	s.interval = 20 * time.Millisecond

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for {
		entries, err := db.ListOutboxByStatus(store.StatusSent)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for the loop to deliver")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

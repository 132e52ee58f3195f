package store

import "time"

// Outbox statuses. Transitions are monotonic (draft -> queued -> sent, or
// queued -> failed once attempts reach the cap) except the explicit operator
// retry, which moves failed back to queued with attempts reset.
const (
	StatusDraft  = "draft"
	StatusQueued = "queued"
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Outbox origins.
const (
	OriginAI     = "ai"
	OriginManual = "manual"
)

// MaxSendAttempts is the delivery retry cap: a row becomes failed only once
// its attempts counter reaches this value.
const MaxSendAttempts = 3

// Contact is a chat peer. Name and profile are refreshed independently of
// the message flow, last write wins.
type Contact struct {
	ID      string
	Name    string
	Profile string
}

// Message is an immutable stored chat message. Timestamp is integer seconds
// and is the source of truth for ordering.
type Message struct {
	ID        string
	ChatID    string
	FromMe    bool
	Timestamp int64
	Body      string
}

// Attachment holds the resolved storage path for a message's media.
type Attachment struct {
	ID        int64
	MessageID string
	FilePath  string
	MimeType  string
}

// Transcript is the speech-to-text result for one message, at most one per message.
type Transcript struct {
	MessageID          string
	Text               string
	Engine             string
	Language           string
	LanguageConfidence float64
}

// OutboxEntry is a prospective outbound reply moving through the delivery
// state machine.
type OutboxEntry struct {
	ID              int64
	ChatID          string
	SourceMessageID string
	ClientRef       string
	Text            string
	Origin          string
	Status          string
	Priority        int
	Attempts        int
	SentMessageID   string
	CreatedAt       int64
}

// JobStatus is the ledger row for one named recurring job.
type JobStatus struct {
	Job       string
	LastStart time.Time
	LastEnd   time.Time
	LastError string
}

// FollowUp flags a contact needing attention: an unanswered question or a
// conversation gone stale.
type FollowUp struct {
	ID        int64
	ContactID string
	Reason    string
	MessageID string
	CreatedAt int64
}

// HistoryRow is one turn of conversation context, with transcript text
// substituted for the body when a transcript exists.
type HistoryRow struct {
	MsgID     string
	FromMe    bool
	Timestamp int64
	Text      string
}

// EmbedRow is one message pending semantic indexing.
type EmbedRow struct {
	MsgID     string
	ChatID    string
	FromMe    bool
	Timestamp int64
	Text      string
}

// SentMessage is a from-me message joined with the contact name, for the
// sent-today dashboard view.
type SentMessage struct {
	ChatID      string
	ContactName string
	Timestamp   int64
	Body        string
}

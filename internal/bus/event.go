package bus

import "time"

// Event kinds published by the core. Subscribers filter by namespace prefix,
// e.g. "message." receives both message.stored and message.audio_stored.
const (
	KindMessageStored = "message.stored"
	KindAudioStored   = "message.audio_stored"
	KindDraftCreated  = "outbox.draft_created"
	KindOutboxSent    = "outbox.sent"
	KindOutboxFailed  = "outbox.failed"
	KindJobFinished   = "job.finished"
	KindStatusChanged = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Emit builds an Event stamped with the current time.
func Emit(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

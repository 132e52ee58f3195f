package ingest

// Event is a normalized inbound chat event handed over by the protocol
// adapter. Media is downloaded lazily through Download so filtered events
// never pay for the transfer.
type Event struct {
	MessageID string
	ChatID    string
	FromMe    bool
	Timestamp int64
	Body      string
	PushName  string

	// Media. MimeType is empty for text-only messages.
	MimeType string
	FileName string
	Download func() ([]byte, error)

	IsGroup      bool
	IsStatus     bool
	IsNewsletter bool
}

// HasMedia reports whether the event carries a downloadable attachment.
func (e Event) HasMedia() bool {
	return e.MimeType != "" && e.Download != nil
}

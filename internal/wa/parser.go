package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/wilofice/enel/internal/ingest"
)

// ParseLiveMessage normalizes a live whatsmeow message into an ingest event.
// Media download is attached separately by the adapter, which owns the
// client.
func ParseLiveMessage(evt *events.Message) ingest.Event {
	return ingest.Event{
		MessageID:    evt.Info.ID,
		ChatID:       evt.Info.Chat.ToNonAD().String(),
		FromMe:       evt.Info.IsFromMe,
		Timestamp:    evt.Info.Timestamp.Unix(),
		Body:         extractTextBody(evt.Message),
		PushName:     evt.Info.PushName,
		MimeType:     mediaMimeType(evt.Message),
		FileName:     mediaFileName(evt.Message),
		IsGroup:      evt.Info.Chat.Server == types.GroupServer,
		IsStatus:     evt.Info.Chat.Server == types.BroadcastServer,
		IsNewsletter: evt.Info.Chat.Server == types.NewsletterServer,
	}
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}

func mediaMimeType(msg *waE2E.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage().GetMimetype()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetMimetype()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetMimetype()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetMimetype()
	default:
		return ""
	}
}

func mediaFileName(msg *waE2E.Message) string {
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetFileName()
	}
	return ""
}

// downloadable returns the media part of a message, or nil for text.
func downloadable(msg *waE2E.Message) whatsmeowDownloadable {
	switch {
	case msg == nil:
		return nil
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage()
	default:
		return nil
	}
}

package wa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/wilofice/enel/internal/bus"
)

func liveEvent(chat types.JID, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, IsFromMe: false},
			ID:            "MSG1",
			PushName:      "Alice",
			Timestamp:     time.Unix(1700000000, 0),
		},
		Message: msg,
	}
}

func TestParseLiveMessageText(t *testing.T) {
	chat := types.NewJID("5511999990000", types.DefaultUserServer)
	evt := liveEvent(chat, &waE2E.Message{Conversation: proto.String("hello")})

	ie := ParseLiveMessage(evt)
	assert.Equal(t, "MSG1", ie.MessageID)
	assert.Equal(t, chat.String(), ie.ChatID)
	assert.Equal(t, "hello", ie.Body)
	assert.Equal(t, "Alice", ie.PushName)
	assert.Equal(t, int64(1700000000), ie.Timestamp)
	assert.False(t, ie.FromMe)
	assert.False(t, ie.IsStatus)
	assert.False(t, ie.IsNewsletter)
	assert.False(t, ie.HasMedia())
}

func TestParseLiveMessageExtendedText(t *testing.T) {
	chat := types.NewJID("5511999990000", types.DefaultUserServer)
	evt := liveEvent(chat, &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("quoted reply")},
	})
	assert.Equal(t, "quoted reply", ParseLiveMessage(evt).Body)
}

func TestParseLiveMessageAudio(t *testing.T) {
	chat := types.NewJID("5511999990000", types.DefaultUserServer)
	evt := liveEvent(chat, &waE2E.Message{
		AudioMessage: &waE2E.AudioMessage{Mimetype: proto.String("audio/ogg; codecs=opus")},
	})

	ie := ParseLiveMessage(evt)
	assert.Empty(t, ie.Body)
	assert.Equal(t, "audio/ogg; codecs=opus", ie.MimeType)
	assert.True(t, ie.HasMedia())
	assert.NotNil(t, downloadable(evt.Message))
}

func TestParseLiveMessageDocumentCarriesCaptionAndName(t *testing.T) {
	chat := types.NewJID("5511999990000", types.DefaultUserServer)
	evt := liveEvent(chat, &waE2E.Message{
		DocumentMessage: &waE2E.DocumentMessage{
			Mimetype: proto.String("application/pdf"),
			FileName: proto.String("invoice.pdf"),
			Caption:  proto.String("the invoice"),
		},
	})

	ie := ParseLiveMessage(evt)
	assert.Equal(t, "the invoice", ie.Body)
	assert.Equal(t, "application/pdf", ie.MimeType)
	assert.Equal(t, "invoice.pdf", ie.FileName)
}

func TestParseLiveMessageFlagsStatusAndNewsletter(t *testing.T) {
	status := liveEvent(types.NewJID("status", types.BroadcastServer),
		&waE2E.Message{Conversation: proto.String("story")})
	assert.True(t, ParseLiveMessage(status).IsStatus)

	news := liveEvent(types.NewJID("123", types.NewsletterServer),
		&waE2E.Message{Conversation: proto.String("news")})
	assert.True(t, ParseLiveMessage(news).IsNewsletter)

	group := liveEvent(types.NewJID("123456-7890", types.GroupServer),
		&waE2E.Message{Conversation: proto.String("chatter")})
	assert.True(t, ParseLiveMessage(group).IsGroup)
}

func TestDownloadableIsNilForText(t *testing.T) {
	assert.Nil(t, downloadable(&waE2E.Message{Conversation: proto.String("hi")}))
	assert.Nil(t, downloadable(nil))
}

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine(nil)
	assert.Equal(t, Booting, m.Current())

	require.NoError(t, m.Transition(Connecting))
	require.NoError(t, m.Transition(Ready))
	require.NoError(t, m.Transition(Reconnecting))
	require.NoError(t, m.Transition(Ready))
	require.NoError(t, m.Transition(LoggedOut))
	require.NoError(t, m.Transition(AuthRequired))
}

func TestMachineRejectsInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	err := m.Transition(Ready)
	require.Error(t, err)
	assert.Equal(t, Booting, m.Current())
}

func TestMachinePublishesStatusChanges(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 4)
	defer unsub()

	m := NewMachine(b)
	require.NoError(t, m.Transition(AuthRequired))

	evt := <-ch
	change, ok := evt.Payload.(StatusChange)
	require.True(t, ok)
	assert.Equal(t, Booting, change.From)
	assert.Equal(t, AuthRequired, change.To)
}

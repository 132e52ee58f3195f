// Package wa adapts whatsmeow to the core: it normalizes incoming protocol
// events into ingest events, sends outgoing text, and manages pairing and the
// session lifecycle.
package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/wilofice/enel/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

type whatsmeowDownloadable = whatsmeow.DownloadableMessage

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	log       *zap.Logger
}

// NewAdapter creates the adapter with its credential store at sessionDBPath.
func NewAdapter(ctx context.Context, sessionDBPath string, log *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("Enel", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", sessionDBPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client:    whatsmeow.NewClient(deviceStore, nil),
		container: container,
		log:       log,
	}, nil
}

// IsLoggedIn reports whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.log.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.log.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText sends a text message and returns the server message id.
func (a *Adapter) SendText(ctx context.Context, chatID string, text string) (string, error) {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// PhoneNumber returns the paired phone number, or empty when unpaired.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// Contacts returns the contact list from the device store.
func (a *Adapter) Contacts(ctx context.Context) []store.Contact {
	all, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.log.Warn("failed to read device contacts", zap.Error(err))
		return nil
	}
	var contacts []store.Contact
	for jid, info := range all {
		name := info.FullName
		if name == "" {
			name = info.PushName
		}
		contacts = append(contacts, store.Contact{
			ID:   jid.ToNonAD().String(),
			Name: name,
		})
	}
	return contacts
}

// RefreshContacts copies the device contact list into the relational store.
func (a *Adapter) RefreshContacts(ctx context.Context, db *store.DB) error {
	contacts := a.Contacts(ctx)
	if len(contacts) == 0 {
		return nil
	}
	if err := db.BulkUpsertContacts(contacts); err != nil {
		return fmt.Errorf("upsert contacts: %w", err)
	}
	a.log.Info("contacts refreshed", zap.Int("count", len(contacts)))
	return nil
}

// download fetches the media payload of a message.
func (a *Adapter) download(msg *waE2E.Message) func() ([]byte, error) {
	dl := downloadable(msg)
	if dl == nil {
		return nil
	}
	return func() ([]byte, error) {
		return a.client.Download(context.Background(), dl)
	}
}

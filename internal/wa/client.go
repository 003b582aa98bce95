package wa

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/zapvendas/bot-server-go/internal/model"
)

const eventBufferSize = 128

// Client adapts a whatsmeow client to the Transport interface. Credentials
// live in a sqlite store owned by whatsmeow; the session manager above never
// sees them.
type Client struct {
	cli       *whatsmeow.Client
	container *sqlstore.Container
	events    chan Event
	closeOnce sync.Once
}

var _ Transport = (*Client)(nil)

// Dialer returns a DialFunc bound to a credentials store path.
func Dialer(dbPath string) DialFunc {
	return func(ctx context.Context) (Transport, error) {
		return Dial(ctx, dbPath)
	}
}

func Dial(ctx context.Context, dbPath string) (*Client, error) {
	dbLog := waLog.Stdout("Database", "ERROR", true)
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), dbLog)
	if err != nil {
		return nil, fmt.Errorf("open credentials store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err == sql.ErrNoRows {
		device = container.NewDevice()
	} else if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	cli := whatsmeow.NewClient(device, waLog.Stdout("Client", "ERROR", true))
	// The session manager owns reconnection policy.
	cli.EnableAutoReconnect = false

	c := &Client{
		cli:       cli,
		container: container,
		events:    make(chan Event, eventBufferSize),
	}
	cli.AddEventHandler(c.handleEvent)
	return c, nil
}

func (c *Client) Connect(ctx context.Context) error {
	if c.cli.Store.ID == nil {
		// Fresh pairing flow: the QR channel must be claimed before connecting.
		qrChan, err := c.cli.GetQRChannel(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("qr channel unavailable")
		} else {
			go c.forwardQR(qrChan)
		}
	}
	return c.cli.Connect()
}

func (c *Client) Disconnect() {
	c.cli.Disconnect()
}

func (c *Client) Logout(ctx context.Context) error {
	if c.cli.IsConnected() {
		if err := c.cli.Logout(ctx); err == nil {
			return nil
		} else {
			log.Warn().Err(err).Msg("remote logout failed, deleting local credentials")
		}
	}
	return c.cli.Store.Delete(ctx)
}

func (c *Client) SendText(ctx context.Context, to string, text string) error {
	jid, err := parseJID(to)
	if err != nil {
		return err
	}
	_, err = c.cli.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	return err
}

func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cli.RemoveEventHandlers()
		c.cli.Disconnect()
		close(c.events)
	})
}

func (c *Client) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event == "code" {
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			c.emit(QRCodeEvent{Code: evt.Code})
		}
	}
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		c.emit(ConnectedEvent{})
	case *events.Disconnected:
		c.emit(ClosedEvent{LoggedOut: false})
	case *events.StreamReplaced:
		c.emit(ClosedEvent{LoggedOut: false})
	case *events.LoggedOut:
		c.emit(ClosedEvent{LoggedOut: true})
	case *events.Message:
		c.emit(MessageEvent{Message: toInbound(v)})
	}
}

func (c *Client) emit(evt Event) {
	select {
	case c.events <- evt:
	default:
		log.Warn().Str("event", fmt.Sprintf("%T", evt)).Msg("transport event buffer full, dropping event")
	}
}

func toInbound(v *events.Message) model.InboundMessage {
	msg := v.Message
	return model.InboundMessage{
		SenderID:     v.Info.Chat.ToNonAD().String(),
		FromSelf:     v.Info.IsFromMe,
		Conversation: msg.GetConversation(),
		ExtendedText: msg.GetExtendedTextMessage().GetText(),
		ImageCaption: msg.GetImageMessage().GetCaption(),
		VideoCaption: msg.GetVideoMessage().GetCaption(),
	}
}

func parseJID(to string) (types.JID, error) {
	if !strings.ContainsRune(to, '@') {
		return types.NewJID(to, types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return types.JID{}, fmt.Errorf("parse jid %q: %w", to, err)
	}
	return jid, nil
}

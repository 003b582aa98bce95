package wa

import (
	"context"

	"github.com/zapvendas/bot-server-go/internal/model"
)

// Event is a notification from the transport. Concrete types below.
type Event any

// QRCodeEvent carries a fresh pairing code. A new code replaces any previous
// one; codes are single-use and expire on the transport side.
type QRCodeEvent struct {
	Code string
}

// ConnectedEvent means the session is authenticated and live.
type ConnectedEvent struct{}

// ClosedEvent means the connection dropped. LoggedOut distinguishes an
// authoritative logout (terminal, credentials invalid) from a transient
// close (recoverable).
type ClosedEvent struct {
	LoggedOut bool
}

// MessageEvent carries one inbound message.
type MessageEvent struct {
	Message model.InboundMessage
}

// Transport is the boundary to the messaging network. The production
// implementation wraps whatsmeow; tests use a fake.
type Transport interface {
	// Connect issues a connection attempt. Completion is observed through
	// Events, not the return value.
	Connect(ctx context.Context) error

	// Disconnect closes the socket without touching credentials.
	Disconnect()

	// Logout invalidates the session identity and wipes stored credentials.
	Logout(ctx context.Context) error

	// SendText delivers a plain text message to a conversation.
	SendText(ctx context.Context, to string, text string) error

	// Events streams transport notifications. Closed when the transport is
	// closed.
	Events() <-chan Event

	// Close releases the transport. Events is closed afterwards.
	Close()
}

// DialFunc opens a fresh transport, loading persisted credentials when they
// exist.
type DialFunc func(ctx context.Context) (Transport, error)

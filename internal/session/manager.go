package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zapvendas/bot-server-go/internal/errors"
	"github.com/zapvendas/bot-server-go/internal/events"
	"github.com/zapvendas/bot-server-go/internal/model"
	"github.com/zapvendas/bot-server-go/internal/wa"
)

// Publisher receives session lifecycle events. Satisfied by events.Broker.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// MessageHandler receives each inbound message. Satisfied by pipeline.Pipeline.
type MessageHandler func(msg model.InboundMessage)

// Manager owns the single logical WhatsApp session for this process: it
// establishes the connection, tracks pairing state, reconnects forever with a
// fixed delay after transient closes, and refuses to reconnect after an
// authoritative logout until Reset or Start is called.
type Manager struct {
	dial           wa.DialFunc
	reconnectDelay time.Duration
	publisher      Publisher

	mu          sync.Mutex
	transport   wa.Transport
	state       model.ConnectionState
	pairingCode string
	loggedOut   bool
	closed      bool
	gen         int

	handler MessageHandler
	done    chan struct{}
}

func NewManager(dial wa.DialFunc, reconnectDelay time.Duration, publisher Publisher) *Manager {
	return &Manager{
		dial:           dial,
		reconnectDelay: reconnectDelay,
		publisher:      publisher,
		state:          model.ConnectionDisconnected,
		done:           make(chan struct{}),
	}
}

// OnMessage registers the inbound message handler. Must be called before
// Start.
func (m *Manager) OnMessage(handler MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Start opens the session. It is a no-op when a connection is already live;
// otherwise it (re)issues a connection attempt and returns without waiting
// for it to complete. Connection progress is observed through State and the
// event stream.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return apperrors.SessionClosed()
	}

	if m.transport != nil && !m.loggedOut {
		transport := m.transport
		state := m.state
		m.mu.Unlock()
		if state != model.ConnectionDisconnected {
			return nil
		}
		// Existing identity, dropped socket: reissue the attempt.
		return transport.Connect(ctx)
	}

	// First start, post-reset, or post-logout: dial a fresh transport.
	old := m.transport
	m.transport = nil
	m.loggedOut = false
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	transport, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial transport: %w", err)
	}

	m.mu.Lock()
	if m.closed || m.gen != gen {
		m.mu.Unlock()
		transport.Close()
		return nil
	}
	m.transport = transport
	m.mu.Unlock()

	go m.watch(transport, gen)

	log.Info().Msg("session start issued")
	return transport.Connect(ctx)
}

// Reset discards the session identity: credentials are wiped, any active
// connection is closed, and a fresh pairing flow begins. Returns once the new
// connection attempt has been issued.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return apperrors.SessionClosed()
	}
	old := m.transport
	m.transport = nil
	m.loggedOut = false
	m.gen++
	m.setStateLocked(model.ConnectionDisconnected)
	m.mu.Unlock()

	if old != nil {
		if err := old.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("logout during reset failed")
		}
		old.Close()
	}

	log.Info().Msg("session reset, starting fresh pairing flow")
	return m.Start(ctx)
}

// Send delivers text to a conversation. Fails immediately when the session
// is not connected or the transport rejects the send.
func (m *Manager) Send(ctx context.Context, to string, text string) error {
	m.mu.Lock()
	transport := m.transport
	state := m.state
	loggedOut := m.loggedOut
	m.mu.Unlock()

	if loggedOut {
		return apperrors.SessionLoggedOut()
	}
	if state != model.ConnectionConnected || transport == nil {
		return apperrors.NotConnected()
	}

	if err := transport.SendText(ctx, to, text); err != nil {
		return apperrors.DeliveryFailed(err)
	}
	return nil
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PairingCode returns the pending pairing code. Only meaningful while the
// session is pairing; cleared the instant the connection is established.
func (m *Manager) PairingCode() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != model.ConnectionPairing || m.pairingCode == "" {
		return "", false
	}
	return m.pairingCode, true
}

// LoggedOut reports whether the session hit an authoritative logout and is
// waiting for operator action.
func (m *Manager) LoggedOut() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loggedOut
}

// Close shuts the manager down for process exit. The session cannot be
// restarted afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	transport := m.transport
	m.transport = nil
	m.setStateLocked(model.ConnectionDisconnected)
	m.mu.Unlock()

	close(m.done)
	if transport != nil {
		transport.Close()
	}
}

func (m *Manager) watch(transport wa.Transport, gen int) {
	for evt := range transport.Events() {
		m.mu.Lock()
		if m.closed || m.gen != gen {
			m.mu.Unlock()
			return
		}

		switch e := evt.(type) {
		case wa.QRCodeEvent:
			m.pairingCode = e.Code
			m.setStateLocked(model.ConnectionPairing)
			m.mu.Unlock()
			log.Info().Msg("pairing code received, scan via GET /qr")
			m.publish(events.TypePairingCode, map[string]any{"pending": true})

		case wa.ConnectedEvent:
			m.pairingCode = ""
			m.setStateLocked(model.ConnectionConnected)
			m.mu.Unlock()
			log.Info().Msg("session connected")

		case wa.ClosedEvent:
			if e.LoggedOut {
				m.loggedOut = true
				m.pairingCode = ""
				m.setStateLocked(model.ConnectionDisconnected)
				m.mu.Unlock()
				log.Warn().Msg("session logged out; operator reset required")
				continue
			}
			m.setStateLocked(model.ConnectionDisconnected)
			m.mu.Unlock()
			log.Warn().Dur("delay", m.reconnectDelay).Msg("session closed, scheduling reconnect")
			go m.reconnect(transport, gen)

		case wa.MessageEvent:
			handler := m.handler
			m.mu.Unlock()
			if handler != nil {
				handler(e.Message)
			}

		default:
			m.mu.Unlock()
		}
	}
}

// reconnect retries forever with a fixed delay until the connection is back,
// the session logs out, or the manager moves on (reset/close).
func (m *Manager) reconnect(transport wa.Transport, gen int) {
	for {
		select {
		case <-m.done:
			return
		case <-time.After(m.reconnectDelay):
		}

		m.mu.Lock()
		if m.closed || m.gen != gen || m.loggedOut || m.state != model.ConnectionDisconnected {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		err := transport.Connect(context.Background())
		if err == nil {
			return
		}
		log.Warn().Err(err).Dur("delay", m.reconnectDelay).Msg("reconnect attempt failed, retrying")
	}
}

// setStateLocked updates the state and publishes the transition. Caller holds
// the lock.
func (m *Manager) setStateLocked(state model.ConnectionState) {
	if m.state == state {
		return
	}
	m.state = state
	go m.publish(events.TypeStateChanged, map[string]any{"state": string(state)})
}

func (m *Manager) publish(eventType string, payload any) {
	if m.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.publisher.Publish(ctx, eventType, payload); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("failed to publish session event")
	}
}

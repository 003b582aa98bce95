package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	redisclient "github.com/zapvendas/bot-server-go/internal/redis"
)

// Event types published by the session manager and pipeline.
const (
	TypeStateChanged   = "state_changed"
	TypePairingCode    = "pairing_code"
	TypeMessageReplied = "message_replied"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Subscriber struct {
	Events chan Event
	Done   chan struct{}
}

// Broker fans session lifecycle events out to SSE subscribers. Events travel
// through redis pub/sub so every process replica sees them.
type Broker struct {
	redis   *redisclient.Client
	subs    map[*Subscriber]bool
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	dialled sync.Once
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		subs:   make(map[*Subscriber]bool),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe() *Subscriber {
	sub := &Subscriber{
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = true
	count := len(b.subs)
	b.mu.Unlock()

	b.dialled.Do(func() { go b.listen() })

	log.Info().Int("subscriberCount", count).Msg("event subscriber added")
	return sub
}

func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[sub] {
		delete(b.subs, sub)
		close(sub.Done)
		log.Info().Int("subscriberCount", len(b.subs)).Msg("event subscriber removed")
	}
}

// Publish sends an event through redis. Payload must be JSON-marshalable.
func (b *Broker) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}

	return b.redis.Publish(ctx, redisclient.SessionEventChannel, raw).Err()
}

func (b *Broker) listen() {
	pubsub := b.redis.Subscribe(b.ctx, redisclient.SessionEventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal session event")
				continue
			}

			b.broadcast(event)
		}
	}
}

func (b *Broker) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.Events <- event:
		default:
			log.Warn().Msg("subscriber event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		close(sub.Done)
	}
	b.subs = make(map[*Subscriber]bool)
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

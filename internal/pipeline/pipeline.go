package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zapvendas/bot-server-go/internal/events"
	"github.com/zapvendas/bot-server-go/internal/model"
)

// Retriever resolves a question to the best catalog match, or nil when
// nothing clears the acceptance threshold.
type Retriever interface {
	BestMatch(ctx context.Context, question string) (*model.RetrievedRecord, error)
}

// Responder produces reply text. Non-failing by contract: remote failures
// become a fixed fallback string inside the implementation.
type Responder interface {
	Generate(ctx context.Context, question string, record *model.RetrievedRecord) string
}

// Sender delivers a reply over the transport. Satisfied by session.Manager.
type Sender interface {
	Send(ctx context.Context, to string, text string) error
}

// Publisher receives a notification per delivered reply. Satisfied by
// events.Broker; nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

const (
	senderQueueSize  = 32
	workerIdleExpiry = 2 * time.Minute
)

// Pipeline turns each inbound message into at most one outbound reply.
// Failures are confined to the message being processed. Messages from the
// same sender are processed in order, one at a time, through a per-sender
// worker; different senders proceed concurrently.
type Pipeline struct {
	retriever Retriever
	responder Responder
	sender    Sender
	contexts  *ContextTracker
	publisher Publisher
	timeout   time.Duration

	mu     sync.Mutex
	queues map[string]chan job
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	senderID string
	text     string
}

func New(retriever Retriever, responder Responder, sender Sender, contexts *ContextTracker, publisher Publisher, timeout time.Duration) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		responder: responder,
		sender:    sender,
		contexts:  contexts,
		publisher: publisher,
		timeout:   timeout,
		queues:    make(map[string]chan job),
	}
}

// Handle accepts one inbound message. Echoes of the bot's own sends and
// messages without text are dropped silently.
func (p *Pipeline) Handle(msg model.InboundMessage) {
	if msg.FromSelf {
		return
	}

	text := msg.ExtractText()
	if text == "" {
		return
	}

	p.enqueue(job{senderID: msg.SenderID, text: text})
}

// Close stops accepting messages and waits for in-flight workers to drain.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	queues := p.queues
	p.queues = make(map[string]chan job)
	p.mu.Unlock()

	for _, q := range queues {
		close(q)
	}
	p.wg.Wait()
}

func (p *Pipeline) enqueue(j job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	q, ok := p.queues[j.senderID]
	if !ok {
		q = make(chan job, senderQueueSize)
		p.queues[j.senderID] = q
		p.wg.Add(1)
		go p.worker(j.senderID, q)
	}

	select {
	case q <- j:
	default:
		// Sender flooding faster than replies can be produced; drop rather
		// than block the transport event loop.
		log.Warn().Str("sender", j.senderID).Msg("sender queue full, dropping message")
	}
}

// worker drains one sender's queue sequentially and retires itself after an
// idle period.
func (p *Pipeline) worker(senderID string, q chan job) {
	defer p.wg.Done()

	idle := time.NewTimer(workerIdleExpiry)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-q:
			if !ok {
				return
			}
			p.process(j)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(workerIdleExpiry)

		case <-idle.C:
			p.mu.Lock()
			if len(q) > 0 {
				p.mu.Unlock()
				idle.Reset(workerIdleExpiry)
				continue
			}
			if !p.closed {
				delete(p.queues, senderID)
			}
			p.mu.Unlock()
			return
		}
	}
}

func (p *Pipeline) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	p.contexts.Touch(j.senderID)

	record, err := p.retriever.BestMatch(ctx, j.text)
	if err != nil {
		// Retrieval failure degrades to the no-match reply path.
		log.Error().Err(err).Str("sender", j.senderID).Msg("retrieval failed, replying without a match")
		record = nil
	}

	reply := p.responder.Generate(ctx, j.text, record)

	if err := p.sender.Send(ctx, j.senderID, reply); err != nil {
		// No retry: the message is lost, the pipeline moves on.
		log.Error().Err(err).Str("sender", j.senderID).Msg("reply delivery failed, message dropped")
		return
	}

	log.Debug().Str("sender", j.senderID).Bool("matched", record != nil).Msg("reply delivered")

	if p.publisher != nil {
		payload := map[string]any{"sender": j.senderID, "matched": record != nil}
		if err := p.publisher.Publish(ctx, events.TypeMessageReplied, payload); err != nil {
			log.Warn().Err(err).Msg("failed to publish reply event")
		}
	}
}

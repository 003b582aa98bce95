package jobs

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zapvendas/bot-server-go/internal/pipeline"
)

// ContextSweeper periodically evicts conversation contexts that have been
// idle past their TTL, keeping the tracker from pinning dead senders until
// the LRU cap forces them out.
type ContextSweeper struct {
	contexts *pipeline.ContextTracker
	ttl      time.Duration
	interval time.Duration
	done     chan struct{}
}

func NewContextSweeper(contexts *pipeline.ContextTracker, ttl, interval time.Duration) *ContextSweeper {
	return &ContextSweeper{
		contexts: contexts,
		ttl:      ttl,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *ContextSweeper) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("ttl", j.ttl).Msg("context sweeper started")
}

func (j *ContextSweeper) Stop() {
	close(j.done)
	log.Info().Msg("context sweeper stopped")
}

func (j *ContextSweeper) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			if evicted := j.contexts.EvictIdle(j.ttl); evicted > 0 {
				log.Info().Int("count", evicted).Msg("evicted idle conversation contexts")
			}
		}
	}
}

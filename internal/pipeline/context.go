package pipeline

import (
	"container/list"
	"sync"
	"time"
)

type contextEntry struct {
	senderID     string
	lastActiveAt time.Time
}

// ContextTracker remembers when each sender was last active. In-memory only,
// bounded: the least recently active sender is evicted once the cap is
// reached. Lost on restart by design.
type ContextTracker struct {
	mu    sync.Mutex
	cap   int
	order *list.List // front = most recently active
	index map[string]*list.Element
	now   func() time.Time
}

func NewContextTracker(capacity int) *ContextTracker {
	return &ContextTracker{
		cap:   capacity,
		order: list.New(),
		index: make(map[string]*list.Element),
		now:   time.Now,
	}
}

// Touch records activity for a sender, creating its entry on first contact.
func (t *ContextTracker) Touch(senderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if elem, ok := t.index[senderID]; ok {
		elem.Value.(*contextEntry).lastActiveAt = t.now()
		t.order.MoveToFront(elem)
		return
	}

	t.index[senderID] = t.order.PushFront(&contextEntry{senderID: senderID, lastActiveAt: t.now()})

	for t.order.Len() > t.cap {
		oldest := t.order.Back()
		t.order.Remove(oldest)
		delete(t.index, oldest.Value.(*contextEntry).senderID)
	}
}

// LastActive returns when a sender was last seen.
func (t *ContextTracker) LastActive(senderID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elem, ok := t.index[senderID]
	if !ok {
		return time.Time{}, false
	}
	return elem.Value.(*contextEntry).lastActiveAt, true
}

// EvictIdle removes entries idle for longer than ttl and returns how many
// were dropped.
func (t *ContextTracker) EvictIdle(ttl time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-ttl)
	evicted := 0

	for {
		oldest := t.order.Back()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*contextEntry)
		if entry.lastActiveAt.After(cutoff) {
			break
		}
		t.order.Remove(oldest)
		delete(t.index, entry.senderID)
		evicted++
	}

	return evicted
}

func (t *ContextTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}

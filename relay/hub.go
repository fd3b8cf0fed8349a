package relay

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/kasugamirai/nostr-crdt/protocol"
	"github.com/kasugamirai/nostr-crdt/utils"
)

// A slow subscriber loses events rather than stalling the fan-out.
const subQueueLen = 256

type subscriber struct {
	filter Filter
	ch     chan *protocol.Event

	lock   sync.Mutex
	closed bool
}

func (s *subscriber) deliver(ev *protocol.Event) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub is the in-process broadcast fabric: every published event fans
// out to all matching subscribers. With a store attached, new
// subscribers also get all retained events replayed, so late joiners
// and rejoiners see duplicates — which downstream merges must, and do,
// tolerate.
type Hub struct {
	log   utils.Logger
	subs  *xsync.MapOf[string, *subscriber]
	store *EventLog
}

func NewHub(log utils.Logger) *Hub {
	return &Hub{
		log:  log,
		subs: xsync.NewMapOf[string, *subscriber](),
	}
}

// WithStore attaches an event log; retained events are replayed to
// every new subscriber.
func (h *Hub) WithStore(store *EventLog) *Hub {
	h.store = store
	return h
}

func (h *Hub) Publish(_ context.Context, ev *protocol.Event) error {
	if h.store != nil {
		if _, err := h.store.Append(ev); err != nil {
			return err
		}
	}
	h.subs.Range(func(id string, sub *subscriber) bool {
		if sub.filter.Match(ev) && !sub.deliver(ev) {
			h.log.Warn("hub: dropped event for slow subscriber", "sub", id, "event", ev.ID)
		}
		return true
	})
	return nil
}

func (h *Hub) Subscribe(_ context.Context, f Filter) (<-chan *protocol.Event, func(), error) {
	id := uuid.NewString()
	sub := &subscriber{filter: f, ch: make(chan *protocol.Event, subQueueLen)}
	h.subs.Store(id, sub)

	if h.store != nil {
		go h.replay(sub)
	}

	cancel := func() {
		if s, ok := h.subs.LoadAndDelete(id); ok {
			s.close()
		}
	}
	return sub.ch, cancel, nil
}

func (h *Hub) replay(sub *subscriber) {
	err := h.store.Replay(func(ev *protocol.Event) bool {
		if sub.filter.Match(ev) {
			sub.deliver(ev)
		}
		return true
	})
	if err != nil {
		h.log.Error("hub: replay failed", "err", err)
	}
}

// Close drops all subscribers.
func (h *Hub) Close() {
	h.subs.Range(func(id string, sub *subscriber) bool {
		h.subs.Delete(id)
		sub.close()
		return true
	})
}

package pubsub

import (
	"sync"

	"github.com/Billy-Davies-2/warband-roster/internal/logger"
)

// Event types published by the workspace
const (
	DocumentChanged    = "document:changed"
	DocumentLoaded     = "document:loaded"
	DocumentSaved      = "document:saved"
	AttendanceImported = "attendance:imported"
)

// DefaultStream is the JetStream stream holding roster events
const DefaultStream = "ROSTER_EVENTS"

// Event represents a pubsub event
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Upstream is an interface for upstream publishers (e.g., NATS)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// Publisher is what the workspace needs to announce changes
type Publisher interface {
	Publish(Event)
}

// PubSub fans events out to in-process subscribers such as SSE clients
type PubSub struct {
	mu          sync.RWMutex
	subscribers []chan Event
	upstream    Upstream // Optional upstream publisher (e.g., NATS)
	upstreamCh  chan Event
}

// New creates a local-only PubSub
func New() *PubSub {
	return &PubSub{}
}

// NewWithUpstream creates a PubSub that bridges to an upstream publisher.
// Publish goes to the upstream, which delivers the event back through its
// subscription; those deliveries reach local subscribers.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{
		upstream:   upstream,
		upstreamCh: upstream.Subscribe(),
	}

	go func() {
		for event := range ps.upstreamCh {
			ps.publishLocal(event)
		}
		logger.Debug("PubSub: Upstream channel closed")
	}()

	return ps
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (ps *PubSub) Subscribe() chan Event {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan Event, 16)
	ps.subscribers = append(ps.subscribers, ch)
	logger.Debug("PubSub: New subscriber added", "totalSubscribers", len(ps.subscribers))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for i, sub := range ps.subscribers {
		if sub == ch {
			close(ch)
			ps.subscribers = append(ps.subscribers[:i], ps.subscribers[i+1:]...)
			break
		}
	}
}

// SubscriberCount returns the number of local subscribers
func (ps *PubSub) SubscriberCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers)
}

// Publish sends an event to the upstream if there is one, otherwise to
// local subscribers directly.
func (ps *PubSub) Publish(event Event) {
	if ps.upstream != nil {
		ps.upstream.Publish(event)
		return
	}
	ps.publishLocal(event)
}

// Close detaches from the upstream and closes every local subscription
func (ps *PubSub) Close() {
	if ps.upstream != nil {
		ps.upstream.Unsubscribe(ps.upstreamCh)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, ch := range ps.subscribers {
		close(ch)
	}
	ps.subscribers = nil
}

// publishLocal sends an event to local subscribers only. Full channels are skipped.
func (ps *PubSub) publishLocal(event Event) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, ch := range ps.subscribers {
		select {
		case ch <- event:
		default:
			logger.Warn("PubSub: Skipping slow subscriber", "type", event.Type)
		}
	}
}

package pubsub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/nats-io/nats.go"
)

// jetStream publishes events to a JetStream subject and fans messages
// received on that subject out to local channels.
type jetStream struct {
	nc          *nats.Conn
	js          nats.JetStreamContext
	sub         *nats.Subscription
	subject     string
	subscribers []chan Event
	mu          sync.RWMutex
}

type streamConfig struct {
	Stream  string
	Subject string
	Storage nats.StorageType
	MaxAge  time.Duration
}

// newJetStream ensures the stream exists and starts delivering new messages.
// The connection is owned by the returned value.
func newJetStream(nc *nats.Conn, cfg streamConfig) (*jetStream, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject},
			Storage:  cfg.Storage,
			MaxAge:   cfg.MaxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
		logger.Info("JetStream stream created", "stream", cfg.Stream, "subject", cfg.Subject)
	}

	p := &jetStream{nc: nc, js: js, subject: cfg.Subject}
	p.sub, err = js.Subscribe(cfg.Subject, p.deliver, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Subject, err)
	}
	logger.Debug("Subscribed to JetStream", "subject", cfg.Subject)
	return p, nil
}

func (p *jetStream) deliver(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to unmarshal event from JetStream", "error", err)
		msg.Term()
		return
	}

	// Sends stay under the read lock; Unsubscribe and close take the write
	// lock before closing a channel.
	p.mu.RLock()
	for _, sub := range p.subscribers {
		select {
		case sub <- event:
		default:
			logger.Warn("JetStream: Skipping slow subscriber", "event_type", event.Type)
		}
	}
	p.mu.RUnlock()
	msg.Ack()
}

// Publish publishes an event to the JetStream subject
func (p *jetStream) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}
	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject, "event_type", event.Type)
		return
	}
	logger.Debug("Published event to NATS", "event_type", event.Type, "subject", p.subject)
}

// Subscribe creates a subscription channel for events
func (p *jetStream) Subscribe() chan Event {
	ch := make(chan Event, 100)

	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription channel
func (p *jetStream) Unsubscribe(ch chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, sub := range p.subscribers {
		if sub == ch {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// SubscriberCount returns the number of active local subscribers
func (p *jetStream) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Connected reports whether the NATS connection is usable
func (p *jetStream) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

func (p *jetStream) close() {
	if p.sub != nil {
		if err := p.sub.Unsubscribe(); err != nil {
			logger.Debug("JetStream unsubscribe failed", "error", err)
		}
	}

	p.mu.Lock()
	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil
	p.mu.Unlock()

	if p.nc != nil {
		p.nc.Close()
	}
}

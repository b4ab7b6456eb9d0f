package pubsub

import (
	"fmt"
	"time"

	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/nats-io/nats.go"
)

// NATSPubSub implements pub/sub against a remote NATS JetStream server
type NATSPubSub struct {
	*jetStream
}

// NewNATSPubSub connects to natsURL and binds the ROSTER_EVENTS stream to subject
func NewNATSPubSub(natsURL, subject string) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("warband-roster"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := newJetStream(nc, streamConfig{
		Subject: subject,
		Storage: nats.FileStorage,
		MaxAge:  7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("Connected to NATS", "url", nc.ConnectedUrl(), "subject", subject)
	return &NATSPubSub{jetStream: js}, nil
}

// Close closes the NATS connection
func (p *NATSPubSub) Close() {
	p.close()
}

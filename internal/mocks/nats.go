package mocks

import (
	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/Billy-Davies-2/warband-roster/internal/pubsub"
)

// MockNATSPubSub stands in for NATS when NATS_MODE=off: events stay in-process
type MockNATSPubSub struct {
	*pubsub.PubSub
}

// NewMockNATSPubSub creates a mock NATS pub/sub using the in-memory implementation
func NewMockNATSPubSub() *MockNATSPubSub {
	logger.Info("Using MOCK NATS/JetStream (in-memory pub/sub)")

	return &MockNATSPubSub{
		PubSub: pubsub.New(),
	}
}

// Connected always reports true, there is no connection to lose
func (m *MockNATSPubSub) Connected() bool { return true }

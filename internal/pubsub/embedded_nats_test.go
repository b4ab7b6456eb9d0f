package pubsub

import (
	"testing"
	"time"

	"github.com/Billy-Davies-2/warband-roster/internal/logger"
)

func init() {
	logger.Init("error", "text")
}

func startEmbedded(t *testing.T) *EmbeddedNATSPubSub {
	t.Helper()
	opts := DefaultEmbeddedNATSOptions()
	opts.StoreDir = t.TempDir()
	ps, err := NewEmbeddedNATSPubSub(opts)
	if err != nil {
		t.Fatalf("Failed to create embedded NATS: %v", err)
	}
	t.Cleanup(ps.Close)
	return ps
}

func TestEmbeddedNATSStarts(t *testing.T) {
	ps := startEmbedded(t)

	if ps.ServerURL() == "" {
		t.Error("server URL should not be empty")
	}
	if !ps.Connected() {
		t.Error("client should be connected to the embedded server")
	}
}

func TestEmbeddedNATSPublishAndReceive(t *testing.T) {
	ps := startEmbedded(t)
	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()

	ps.Publish(Event{Type: AttendanceImported, Payload: map[string]any{"accepted": 3, "maybe": 1, "declined": 2}})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != AttendanceImported {
				t.Errorf("subscriber %d: unexpected type %s", i, ev.Type)
			}
			// JSON numbers come back as float64
			if ev.Payload["accepted"] != float64(3) {
				t.Errorf("subscriber %d: payload mismatch %+v", i, ev.Payload)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestEmbeddedNATSUnsubscribe(t *testing.T) {
	ps := startEmbedded(t)
	ch := ps.Subscribe()
	ps.Unsubscribe(ch)

	if ps.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", ps.SubscriberCount())
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestEmbeddedNATSAsUpstream(t *testing.T) {
	ps := NewWithUpstream(startEmbedded(t))
	ch := ps.Subscribe()

	ps.Publish(Event{Type: DocumentSaved})

	select {
	case ev := <-ch:
		if ev.Type != DocumentSaved {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event through upstream")
	}
}

func TestRemoteNATSPubSub(t *testing.T) {
	server := startEmbedded(t)

	// A second client on the same subject sees events from the first.
	remote, err := NewNATSPubSub(server.ServerURL(), DefaultEmbeddedNATSOptions().Subject)
	if err != nil {
		t.Fatalf("NewNATSPubSub failed: %v", err)
	}
	defer remote.Close()
	ch := remote.Subscribe()

	server.Publish(Event{Type: DocumentChanged, Payload: map[string]any{"action": "ADD_GROUP"}})

	select {
	case ev := <-ch:
		if ev.Payload["action"] != "ADD_GROUP" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event on remote client")
	}
}

func TestEmbeddedNATSUnsubscribeWhilePublishing(t *testing.T) {
	ps := startEmbedded(t)

	stop := make(chan struct{})
	published := make(chan struct{})
	go func() {
		defer close(published)
		for {
			select {
			case <-stop:
				return
			default:
				ps.Publish(Event{Type: DocumentChanged})
			}
		}
	}()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		ch := ps.Subscribe()
		ps.Unsubscribe(ch)
	}
	close(stop)
	<-published

	if n := ps.SubscriberCount(); n != 0 {
		t.Errorf("expected no subscribers left, got %d", n)
	}
}

func TestEmbeddedNATSCloseWhilePublishing(t *testing.T) {
	opts := DefaultEmbeddedNATSOptions()
	opts.StoreDir = t.TempDir()
	up, err := NewEmbeddedNATSPubSub(opts)
	if err != nil {
		t.Fatalf("Failed to create embedded NATS: %v", err)
	}
	ps := NewWithUpstream(up)
	for i := 0; i < 200; i++ {
		ps.Publish(Event{Type: DocumentChanged})
	}

	ps.Close()
	up.Close()
}

package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Billy-Davies-2/warband-roster/internal/clickhouse"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
	"github.com/Billy-Davies-2/warband-roster/internal/pubsub"
)

var _ clickhouse.AttendanceRecorder = (*MockClickHouseClient)(nil)

var _ pubsub.Upstream = (*MockNATSPubSub)(nil)

func TestMockClickHouseCounts(t *testing.T) {
	m := NewMockClickHouseClient()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	require.NoError(t, m.RecordImport(ctx, []models.AttendanceRecord{
		{ImportID: "i1", ImportedAt: at, DiscordName: "Amy", Status: models.StatusAccepted, PlayerID: "p1"},
		{ImportID: "i1", ImportedAt: at, DiscordName: "Bob", Status: models.StatusMaybe, PlayerID: "p2"},
		{ImportID: "i1", ImportedAt: at, DiscordName: "Stranger", Status: models.StatusAccepted},
	}))
	require.NoError(t, m.RecordImport(ctx, []models.AttendanceRecord{
		{ImportID: "i2", ImportedAt: at.Add(time.Hour), DiscordName: "Amy", Status: models.StatusDeclined, PlayerID: "p1"},
	}))

	counts, err := m.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceCount{PlayerID: "p1", Accepted: 1, Declined: 1}, counts["p1"])
	assert.Equal(t, models.AttendanceCount{PlayerID: "p2", Maybe: 1}, counts["p2"])
	assert.Len(t, counts, 2, "unmatched signups are not aggregated")
	assert.Len(t, m.Records(), 4)
}

func TestMockNATSDeliversLocally(t *testing.T) {
	m := NewMockNATSPubSub()
	defer m.Close()
	ch := m.Subscribe()

	m.Publish(pubsub.Event{Type: pubsub.DocumentSaved})

	select {
	case ev := <-ch:
		assert.Equal(t, pubsub.DocumentSaved, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

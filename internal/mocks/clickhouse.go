package mocks

import (
	"context"
	"sync"

	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// MockClickHouseClient keeps attendance history in memory for local development
type MockClickHouseClient struct {
	mu      sync.Mutex
	records []models.AttendanceRecord
}

// NewMockClickHouseClient creates a mock ClickHouse client
func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client (in-memory attendance history) for local development")
	return &MockClickHouseClient{}
}

// RecordImport appends the records
func (m *MockClickHouseClient) RecordImport(_ context.Context, records []models.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

// Counts aggregates the stored records per matched player
func (m *MockClickHouseClient) Counts(_ context.Context) (map[string]models.AttendanceCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]models.AttendanceCount)
	for _, r := range m.records {
		if r.PlayerID == "" {
			continue
		}
		c := counts[r.PlayerID]
		c.PlayerID = r.PlayerID
		switch r.Status {
		case models.StatusAccepted:
			c.Accepted++
		case models.StatusMaybe:
			c.Maybe++
		default:
			c.Declined++
		}
		counts[r.PlayerID] = c
	}
	return counts, nil
}

// Records returns a copy of everything recorded so far
func (m *MockClickHouseClient) Records() []models.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AttendanceRecord(nil), m.records...)
}

// Close is a no-op for mock client
func (m *MockClickHouseClient) Close() error {
	return nil
}

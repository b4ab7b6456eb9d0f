package dal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// MemoryDAL implements DocumentDAL using in-memory storage. Documents are
// kept serialized so callers can never alias a stored snapshot.
type MemoryDAL struct {
	mu        sync.RWMutex
	keep      int
	nextID    int64
	snapshots []memorySnapshot // oldest first
	now       func() time.Time
}

type memorySnapshot struct {
	meta models.Snapshot
	body []byte
}

// NewMemoryDAL creates a new in-memory data access layer keeping at most
// keep snapshots (zero or less keeps DefaultHistory).
func NewMemoryDAL(keep int) *MemoryDAL {
	if keep <= 0 {
		keep = DefaultHistory
	}
	return &MemoryDAL{keep: keep, now: time.Now}
}

func (m *MemoryDAL) Latest() (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.snapshots) == 0 {
		return nil, ErrNoDocument
	}
	return decodeBody(m.snapshots[len(m.snapshots)-1].body)
}

func (m *MemoryDAL) Save(doc *models.Document) (models.Snapshot, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("encode document: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	players, groups := summarize(doc)
	snap := models.Snapshot{ID: m.nextID, SavedAt: m.now().UTC(), Players: players, Groups: groups}
	m.snapshots = append(m.snapshots, memorySnapshot{meta: snap, body: body})
	if extra := len(m.snapshots) - m.keep; extra > 0 {
		m.snapshots = append([]memorySnapshot(nil), m.snapshots[extra:]...)
	}
	return snap, nil
}

func (m *MemoryDAL) History(limit int) ([]models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Snapshot, 0, len(m.snapshots))
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.snapshots[i].meta)
	}
	return out, nil
}

func (m *MemoryDAL) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = nil
	return nil
}

func (m *MemoryDAL) Close() error { return nil }

// decodeBody reads a stored body. Stored documents were written by this
// program, so a plain unmarshal is enough.
func decodeBody(body []byte) (*models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	return &doc, nil
}

package dal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// SQLiteDAL implements DocumentDAL using SQLite
type SQLiteDAL struct {
	db   *sql.DB
	keep int
}

// NewSQLiteDAL opens dbPath, applies migrations and keeps at most keep snapshots
func NewSQLiteDAL(dbPath string, keep int) (*SQLiteDAL, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	if keep <= 0 {
		keep = DefaultHistory
	}
	return &SQLiteDAL{db: db, keep: keep}, nil
}

func (s *SQLiteDAL) Latest() (*models.Document, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM documents ORDER BY id DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("query latest document: %w", err)
	}
	return decodeBody([]byte(body))
}

func (s *SQLiteDAL) Save(doc *models.Document) (models.Snapshot, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("encode document: %w", err)
	}
	players, groups := summarize(doc)
	savedAt := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return models.Snapshot{}, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO documents (saved_at, players, groups_count, body) VALUES (?, ?, ?, ?)`,
		savedAt.UnixMilli(), players, groups, string(body))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Snapshot{}, err
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id NOT IN (SELECT id FROM documents ORDER BY id DESC LIMIT ?)`, s.keep); err != nil {
		return models.Snapshot{}, fmt.Errorf("prune documents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Snapshot{}, err
	}

	return models.Snapshot{ID: id, SavedAt: time.UnixMilli(savedAt.UnixMilli()).UTC(), Players: players, Groups: groups}, nil
}

func (s *SQLiteDAL) History(limit int) ([]models.Snapshot, error) {
	if limit <= 0 {
		limit = s.keep
	}
	rows, err := s.db.Query(`SELECT id, saved_at, players, groups_count FROM documents ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []models.Snapshot{}
	for rows.Next() {
		var snap models.Snapshot
		var savedAt int64
		if err := rows.Scan(&snap.ID, &savedAt, &snap.Players, &snap.Groups); err != nil {
			return nil, err
		}
		snap.SavedAt = time.UnixMilli(savedAt).UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *SQLiteDAL) Reset() error {
	_, err := s.db.Exec(`DELETE FROM documents`)
	return err
}

func (s *SQLiteDAL) Close() error {
	return s.db.Close()
}

package dal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// PostgresDAL implements DocumentDAL using PostgreSQL
type PostgresDAL struct {
	db   *sql.DB
	keep int
}

// NewPostgresDAL creates a new PostgreSQL data access layer optimized for CloudNativePG
func NewPostgresDAL(connString string, keep int) (*PostgresDAL, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	// CloudNativePG default max_connections is 100; a single-user tool needs few.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute) // Recycle connections to handle failovers gracefully
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Retry the first ping to ride out Kubernetes DNS propagation
	maxRetries := 5
	retryDelay := 5 * time.Second
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		lastErr = db.PingContext(ctx)
		cancel()
		if lastErr == nil {
			break
		}
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if lastErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres after %d retries: %w", maxRetries, lastErr)
	}

	if err := migratePostgres(db); err != nil {
		db.Close()
		return nil, err
	}
	if keep <= 0 {
		keep = DefaultHistory
	}
	return &PostgresDAL{db: db, keep: keep}, nil
}

func (p *PostgresDAL) Latest() (*models.Document, error) {
	var body []byte
	err := p.db.QueryRow(`SELECT body FROM documents ORDER BY id DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("query latest document: %w", err)
	}
	return decodeBody(body)
}

func (p *PostgresDAL) Save(doc *models.Document) (models.Snapshot, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("encode document: %w", err)
	}
	players, groups := summarize(doc)

	tx, err := p.db.Begin()
	if err != nil {
		return models.Snapshot{}, err
	}
	defer tx.Rollback()

	snap := models.Snapshot{Players: players, Groups: groups}
	err = tx.QueryRow(`INSERT INTO documents (players, groups_count, body) VALUES ($1, $2, $3) RETURNING id, saved_at`,
		players, groups, body).Scan(&snap.ID, &snap.SavedAt)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("insert document: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id NOT IN (SELECT id FROM documents ORDER BY id DESC LIMIT $1)`, p.keep); err != nil {
		return models.Snapshot{}, fmt.Errorf("prune documents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Snapshot{}, err
	}
	snap.SavedAt = snap.SavedAt.UTC()
	return snap, nil
}

func (p *PostgresDAL) History(limit int) ([]models.Snapshot, error) {
	if limit <= 0 {
		limit = p.keep
	}
	rows, err := p.db.Query(`SELECT id, saved_at, players, groups_count FROM documents ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []models.Snapshot{}
	for rows.Next() {
		var snap models.Snapshot
		if err := rows.Scan(&snap.ID, &snap.SavedAt, &snap.Players, &snap.Groups); err != nil {
			return nil, err
		}
		snap.SavedAt = snap.SavedAt.UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (p *PostgresDAL) Reset() error {
	_, err := p.db.Exec(`DELETE FROM documents`)
	return err
}

func (p *PostgresDAL) Close() error {
	return p.db.Close()
}

package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// AttendanceRecorder stores attendance imports and aggregates them per player
type AttendanceRecorder interface {
	RecordImport(ctx context.Context, records []models.AttendanceRecord) error
	Counts(ctx context.Context) (map[string]models.AttendanceCount, error)
	Close() error
}

const createTable = `
	CREATE TABLE IF NOT EXISTS roster_attendance (
		import_id    String,
		imported_at  DateTime64(3),
		discord_name String,
		status       LowCardinality(String),
		player_id    String
	)
	ENGINE = MergeTree
	ORDER BY (imported_at, import_id)
`

// Client provides ClickHouse integration for attendance history
type Client struct {
	conn driver.Conn
}

// NewClient creates a new ClickHouse client and ensures the attendance table exists
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create roster_attendance: %w", err)
	}

	return &Client{conn: conn}, nil
}

// RecordImport appends one import's rows in a single batch
func (c *Client) RecordImport(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO roster_attendance")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range records {
		if err := batch.Append(r.ImportID, r.ImportedAt, r.DiscordName, string(r.Status), r.PlayerID); err != nil {
			batch.Abort()
			return fmt.Errorf("append attendance row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send attendance batch: %w", err)
	}
	return nil
}

// Counts aggregates the history of every matched player
func (c *Client) Counts(ctx context.Context) (map[string]models.AttendanceCount, error) {
	query := `
		SELECT
			player_id,
			countIf(status = 'Accepted') AS accepted,
			countIf(status = 'Maybe')    AS maybe,
			countIf(status = 'Declined') AS declined
		FROM roster_attendance
		WHERE player_id != ''
		GROUP BY player_id
	`

	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]models.AttendanceCount)
	for rows.Next() {
		var id string
		var accepted, maybe, declined uint64
		if err := rows.Scan(&id, &accepted, &maybe, &declined); err != nil {
			return nil, err
		}
		counts[id] = models.AttendanceCount{
			PlayerID: id,
			Accepted: int(accepted),
			Maybe:    int(maybe),
			Declined: int(declined),
		}
	}

	return counts, rows.Err()
}

// Ping checks the connection for readiness checks
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

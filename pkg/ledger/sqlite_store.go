// Package ledger pkg/ledger/sqlite_store.go provides the SQLite-backed
// downtime interval store.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mfreeman451/flowwatch/pkg/models"
)

const (
	dbOperationTimeout = 5 * time.Second

	createTablesSQL = `
	-- Downtime interval history, append-only. ended_at is NULL while the
	-- interval is still open; the partial unique index enforces at most
	-- one open interval per key.
	CREATE TABLE IF NOT EXISTS downtime_intervals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exporter TEXT NOT NULL,
		iface TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_intervals_key_start
		ON downtime_intervals(exporter, iface, started_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_intervals_one_open
		ON downtime_intervals(exporter, iface) WHERE ended_at IS NULL;

	PRAGMA foreign_keys=ON;
	`
)

var (
	errFailedOpenDB      = errors.New("failed to open database")
	errFailedToEnableWAL = errors.New("failed to enable WAL mode")
	errFailedToInit      = errors.New("failed to initialize schema")
	errFailedToInsert    = errors.New("failed to insert interval")
	errFailedToClose     = errors.New("failed to close interval")
	errFailedToQuery     = errors.New("failed to query intervals")
	errFailedToScan      = errors.New("failed to scan interval row")
)

// SQLiteStore implements Store on SQLite with WAL mode enabled for
// concurrent readers.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// NewSQLiteStore opens (creating if needed) the downtime database at
// dbPath and initializes the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedOpenDB, err)
	}

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToEnableWAL, err)
	}

	if _, err := sqlDB.Exec(createTablesSQL); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToInit, err)
	}

	return &SQLiteStore{db: sqlDB, nowFunc: time.Now}, nil
}

func (s *SQLiteStore) OpenInterval(ctx context.Context, key models.InterfaceKey, startedAt time.Time) (models.DowntimeInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	open, err := s.GetOpenInterval(ctx, key)
	if err != nil {
		return models.DowntimeInterval{}, err
	}

	if open != nil {
		return models.DowntimeInterval{}, fmt.Errorf("%w for %s", ErrIntervalAlreadyOpen, key)
	}

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO downtime_intervals (exporter, iface, started_at)
        VALUES (?, ?, ?)
    `, key.Exporter, key.Iface, startedAt)
	if err != nil {
		return models.DowntimeInterval{}, fmt.Errorf("%w: %w", errFailedToInsert, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.DowntimeInterval{}, fmt.Errorf("%w: %w", errFailedToInsert, err)
	}

	return models.DowntimeInterval{ID: id, Key: key, StartedAt: startedAt}, nil
}

func (s *SQLiteStore) CloseInterval(ctx context.Context, key models.InterfaceKey, endedAt time.Time) (models.DowntimeInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	open, err := s.GetOpenInterval(ctx, key)
	if err != nil {
		return models.DowntimeInterval{}, err
	}

	if open == nil {
		return models.DowntimeInterval{}, fmt.Errorf("%w for %s", ErrNoOpenInterval, key)
	}

	if _, err := s.db.ExecContext(ctx, `
        UPDATE downtime_intervals SET ended_at = ? WHERE id = ?
    `, endedAt, open.ID); err != nil {
		return models.DowntimeInterval{}, fmt.Errorf("%w: %w", errFailedToClose, err)
	}

	ended := endedAt
	open.EndedAt = &ended

	return *open, nil
}

func (s *SQLiteStore) GetOpenInterval(ctx context.Context, key models.InterfaceKey) (*models.DowntimeInterval, error) {
	const query = `
        SELECT id, started_at
        FROM downtime_intervals
        WHERE exporter = ? AND iface = ? AND ended_at IS NULL
    `

	var interval models.DowntimeInterval

	err := s.db.QueryRowContext(ctx, query, key.Exporter, key.Iface).Scan(
		&interval.ID,
		&interval.StartedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}

	interval.Key = key

	return &interval, nil
}

func (s *SQLiteStore) Query(ctx context.Context, key models.InterfaceKey, w models.TimeWindow) (float64, error) {
	intervals, err := s.Intervals(ctx, key, w)
	if err != nil {
		return 0, err
	}

	now := s.nowFunc()

	var total float64
	for _, interval := range intervals {
		total += interval.ClippedSeconds(w, now)
	}

	return total, nil
}

func (s *SQLiteStore) QueryAll(ctx context.Context, w models.TimeWindow) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	const query = `
        SELECT exporter, iface, id, started_at, ended_at
        FROM downtime_intervals
        WHERE started_at < ? AND (ended_at IS NULL OR ended_at > ?)
    `

	rows, err := s.db.QueryContext(ctx, query, w.End, w.Start)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}
	defer closeRows(rows)

	now := s.nowFunc()

	var total float64

	for rows.Next() {
		var (
			interval models.DowntimeInterval
			ended    sql.NullTime
		)

		if err := rows.Scan(&interval.Key.Exporter, &interval.Key.Iface,
			&interval.ID, &interval.StartedAt, &ended); err != nil {
			return 0, fmt.Errorf("%w: %w", errFailedToScan, err)
		}

		if ended.Valid {
			t := ended.Time
			interval.EndedAt = &t
		}

		total += interval.ClippedSeconds(w, now)
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}

	return total, nil
}

func (s *SQLiteStore) Intervals(ctx context.Context, key models.InterfaceKey, w models.TimeWindow) ([]models.DowntimeInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	const query = `
        SELECT id, started_at, ended_at
        FROM downtime_intervals
        WHERE exporter = ? AND iface = ?
          AND started_at < ? AND (ended_at IS NULL OR ended_at > ?)
        ORDER BY started_at
    `

	rows, err := s.db.QueryContext(ctx, query, key.Exporter, key.Iface, w.End, w.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}
	defer closeRows(rows)

	var intervals []models.DowntimeInterval

	for rows.Next() {
		var (
			interval models.DowntimeInterval
			ended    sql.NullTime
		)

		interval.Key = key

		if err := rows.Scan(&interval.ID, &interval.StartedAt, &ended); err != nil {
			return nil, fmt.Errorf("%w: %w", errFailedToScan, err)
		}

		if ended.Valid {
			t := ended.Time
			interval.EndedAt = &t
		}

		intervals = append(intervals, interval)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToQuery, err)
	}

	return intervals, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}

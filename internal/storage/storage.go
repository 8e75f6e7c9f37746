// Package storage provides SQLite-backed persistence for subscribers,
// crossover state checkpoints, and alert history.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quantfold/smasentinel/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db        *sql.DB
	maxAlerts int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/smasentinel/data.db.
func New(maxAlerts int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "smasentinel", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxAlerts: maxAlerts}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subscribers (
			chat_id       INTEGER PRIMARY KEY,
			subscribed_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS crossover_state (
			period     INTEGER PRIMARY KEY,
			side       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT PRIMARY KEY,
			period      INTEGER NOT NULL,
			direction   TEXT NOT NULL,
			price       REAL NOT NULL,
			sma_value   REAL NOT NULL,
			detected_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_detected_at ON alerts(detected_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddSubscriber records a chat id; adding an existing subscriber is a no-op.
func (s *Storage) AddSubscriber(chatID int64) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO subscribers (chat_id, subscribed_at)
		VALUES (?, ?)`,
		chatID, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscriber: %w", err)
	}
	return nil
}

// RemoveSubscriber deletes a chat id; removing an absent subscriber is a no-op.
func (s *Storage) RemoveSubscriber(chatID int64) error {
	if _, err := s.db.Exec(`DELETE FROM subscribers WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	return nil
}

// LoadSubscribers returns all persisted chat ids in ascending order.
func (s *Storage) LoadSubscribers() ([]int64, error) {
	rows, err := s.db.Query(`SELECT chat_id FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveState checkpoints the full crossover state, one row per period.
func (s *Storage) SaveState(state models.CrossoverState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UnixNano()
	for period, side := range state {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO crossover_state (period, side, updated_at)
			VALUES (?, ?, ?)`,
			period, side.String(), now,
		); err != nil {
			return fmt.Errorf("failed to save state for period %d: %w", period, err)
		}
	}
	return tx.Commit()
}

// LoadState restores the persisted crossover state. Periods never
// checkpointed are absent from the result; a nil map means no checkpoint
// exists at all.
func (s *Storage) LoadState() (models.CrossoverState, error) {
	rows, err := s.db.Query(`SELECT period, side FROM crossover_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	defer rows.Close()

	var state models.CrossoverState
	for rows.Next() {
		var period int
		var sideStr string
		if err := rows.Scan(&period, &sideStr); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		side, err := models.ParseSide(sideStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse persisted state: %w", err)
		}
		if state == nil {
			state = make(models.CrossoverState)
		}
		state[period] = side
	}
	return state, rows.Err()
}

// AddAlert appends a crossover event to the alert history and rotates out
// the oldest rows beyond the configured cap.
func (s *Storage) AddAlert(event models.CrossoverEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO alerts (id, period, direction, price, sma_value, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), event.Period, event.Direction.String(),
		event.Price, event.SMAValue, event.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM alerts WHERE id NOT IN (
			SELECT id FROM alerts ORDER BY detected_at DESC LIMIT ?
		)`, s.maxAlerts); err != nil {
		return fmt.Errorf("failed to enforce alert cap: %w", err)
	}

	return tx.Commit()
}

// RecentAlerts returns up to k alerts, newest first.
func (s *Storage) RecentAlerts(k int) ([]models.CrossoverEvent, error) {
	rows, err := s.db.Query(`
		SELECT period, direction, price, sma_value, detected_at
		FROM alerts ORDER BY detected_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.CrossoverEvent
	for rows.Next() {
		var event models.CrossoverEvent
		var directionStr string
		var detectedAtNano int64
		if err := rows.Scan(&event.Period, &directionStr, &event.Price, &event.SMAValue, &detectedAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		direction, err := models.ParseDirection(directionStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse persisted alert: %w", err)
		}
		event.Direction = direction
		event.Timestamp = time.Unix(0, detectedAtNano)
		alerts = append(alerts, event)
	}
	return alerts, rows.Err()
}

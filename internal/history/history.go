// Package history persists terminal job snapshots to SQLite. Writes are
// best-effort: the scheduler logs a failed append and moves on.
package history

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"promowatch/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Sink is an append-only history store backed by a SQLite database.
type Sink struct {
	db *sql.DB
}

// Open connects to the history database at path, creating the file and its
// directory if needed, and initializes the schema.
func Open(path string) (*Sink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Sink{db: db}, nil
}

// Append writes one terminal job record. Results are stored as JSON.
func (s *Sink) Append(rec *models.HistoryRecord) error {
	list := rec.Results
	if list == nil {
		list = []models.Result{}
	}
	results, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO job_history (id, status, created_at, started_at, finished_at, total, results, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.Status),
		rec.CreatedAt.Format(time.RFC3339),
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
		rec.Total,
		string(results),
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Sink) Recent(limit int) ([]models.HistoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, status, created_at, started_at, finished_at, total, results
		FROM job_history
		ORDER BY recorded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		var status, createdAt, results string
		var startedAt, finishedAt sql.NullString
		if err := rows.Scan(&rec.ID, &status, &createdAt, &startedAt, &finishedAt, &rec.Total, &results); err != nil {
			return nil, err
		}
		rec.Status = models.Status(status)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		rec.StartedAt = parseTime(startedAt)
		rec.FinishedAt = parseTime(finishedAt)
		if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results for job %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Sink) Close() error {
	return s.db.Close()
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/imu.capture/internal/capture"
)

// ErrSessionNotFound is returned when a session ID has no history record.
var ErrSessionNotFound = errors.New("session not found")

// SessionSummary is one row of the capture history.
type SessionSummary struct {
	ID        string        `json:"session_id"`
	Port      string        `json:"port"`
	BaudRate  int           `json:"baud_rate"`
	Command   string        `json:"command"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Lines     int           `json:"line_count"`
	Discarded int           `json:"discarded"`
}

func (s *SessionSummary) String() string {
	return fmt.Sprintf("%s  %s  %-16s %6d lines  %s",
		s.ID, s.StartedAt.Local().Format(time.DateTime), s.Port, s.Lines, s.Duration.Round(time.Millisecond))
}

// RecordSession stores the session metadata and its lines in one transaction.
func (db *DB) RecordSession(s *capture.Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session has no ID")
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO capture_sessions (
			session_id, port, baud_rate, command, started_unix_nanos,
			duration_ms, line_count, discarded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Port, s.BaudRate, s.Command, s.StartedAt.UnixNano(),
		s.Duration.Milliseconds(), len(s.Lines), s.Discarded,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO session_lines (session_id, line_no, line) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, line := range s.Lines {
		if _, err := stmt.Exec(s.ID, i, line); err != nil {
			return fmt.Errorf("failed to insert line %d of session %s: %w", i, s.ID, err)
		}
	}

	return tx.Commit()
}

// Sessions lists the most recent sessions, newest first. A limit <= 0 lists
// all of them.
func (db *DB) Sessions(limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT session_id, port, baud_rate, command, started_unix_nanos,
			duration_ms, line_count, discarded
		FROM capture_sessions
		ORDER BY started_unix_nanos DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var startedNanos, durationMs int64
		if err := rows.Scan(&s.ID, &s.Port, &s.BaudRate, &s.Command, &startedNanos,
			&durationMs, &s.Lines, &s.Discarded); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, startedNanos).UTC()
		s.Duration = time.Duration(durationMs) * time.Millisecond
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionLines returns the accepted lines of one session in arrival order.
func (db *DB) SessionLines(id string) ([]string, error) {
	var exists int
	err := db.QueryRow(`SELECT 1 FROM capture_sessions WHERE session_id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT line FROM session_lines WHERE session_id = ? ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

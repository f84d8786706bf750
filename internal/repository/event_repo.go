package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danghica/cliver/internal/model"
)

// EventRepository stores session events. Rows are only ever appended.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts an event.
func (r *EventRepository) Append(ctx context.Context, ev model.Event) error {
	query := `
		INSERT INTO events (session_id, type, mode, line, stdout, stderr, exit_code, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var exitCode sql.NullInt64
	if ev.Code != nil {
		exitCode = sql.NullInt64{Int64: int64(*ev.Code), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		ev.Session,
		ev.Type,
		nullString(string(ev.Mode)),
		nullString(ev.Line),
		nullString(ev.Stdout),
		nullString(ev.Stderr),
		exitCode,
		nullString(ev.Reason),
		ev.Time,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// ListBySession returns the events of a session in insertion order.
func (r *EventRepository) ListBySession(ctx context.Context, sessionID string) ([]model.Event, error) {
	query := `
		SELECT session_id, type, mode, line, stdout, stderr, exit_code, reason, created_at
		FROM events
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var mode, line, stdout, stderr, reason sql.NullString
		var exitCode sql.NullInt64

		err := rows.Scan(
			&ev.Session,
			&ev.Type,
			&mode,
			&line,
			&stdout,
			&stderr,
			&exitCode,
			&reason,
			&ev.Time,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.Mode = model.TransportMode(mode.String)
		ev.Line = line.String
		ev.Stdout = stdout.String
		ev.Stderr = stderr.String
		ev.Reason = reason.String
		if exitCode.Valid {
			code := int(exitCode.Int64)
			ev.Code = &code
		}

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Count returns the number of stored events.
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

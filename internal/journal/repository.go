// Package journal persists the activity log to SQLite so history survives
// the in-memory ring buffer and restarts.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/fleet-core/internal/events"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// Filter controls which journal entries List returns.
type Filter struct {
	Severity events.Severity // optional
	Since    time.Time       // optional, inclusive
	Limit    int             // default 50, max 500
	Offset   int
}

// ListResult is one page of journal entries, newest first.
type ListResult struct {
	Events []events.Event `json:"events"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// Repository stores and queries journal entries.
type Repository interface {
	Append(ctx context.Context, ev events.Event) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps the journal in the events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts one event. Appending an ID that is already stored is a
// no-op.
func (r *SQLiteRepository) Append(ctx context.Context, ev events.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("journal: event has no id")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	var dataJSON *string
	if len(ev.Data) > 0 {
		b, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("marshalling event data: %w", err)
		}
		s := string(b)
		dataJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (id, severity, message, data, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Severity), ev.Message, dataJSON,
		formatTime(ev.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM events " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	query := "SELECT id, severity, message, data, occurred_at FROM events " + where + //nolint:gosec // WHERE built from parameterised conditions
		" ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		var ev events.Event
		var severity, occurredAt string
		var dataJSON sql.NullString

		if err := rows.Scan(&ev.ID, &severity, &ev.Message, &dataJSON, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Severity = events.Severity(severity)

		if dataJSON.Valid && dataJSON.String != "" {
			var data map[string]any
			if json.Unmarshal([]byte(dataJSON.String), &data) == nil {
				ev.Data = data
			}
		}

		t, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", occurredAt, err)
		}
		ev.Timestamp = t

		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return &ListResult{
		Events: out,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// formatTime renders timestamps so that string order is time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry represents a single recorded projector state change.
//
// Each entry stores the full raw field map alongside the columns that
// queries filter on, so the audit trail survives even when the
// time-series database is down.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// ProjectorID is the logical projector identifier from config.
	ProjectorID string `json:"projector_id"`

	// Power is the derived power state at the time of recording.
	Power string `json:"power"`

	// InputSource is the raw input source value, empty when unknown.
	InputSource string `json:"input_source"`

	// Available is whether the projector was reachable.
	Available bool `json:"available"`

	// Fields is the raw state map as reported by the device.
	Fields map[string]string `json:"fields"`

	// RecordedAt is the timestamp of the change (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository stores and retrieves projector state change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record persists one state change entry.
	Record(ctx context.Context, e Entry) error

	// Recent returns history entries for a projector, newest first.
	// The limit is clamped to [1, 200]; zero means the default of 50.
	Recent(ctx context.Context, projectorID string, limit int) ([]Entry, error)

	// Prune deletes entries older than the retention window.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository on the controller's SQLite
// database. Schema lives in the migrations package.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a new history entry.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.ProjectorID == "" {
		return fmt.Errorf("projector id is required")
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}

	fieldsJSON, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO state_history (projector_id, recorded_at, power, input_source, available, fields)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ProjectorID,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
		e.Power,
		e.InputSource,
		boolToInt(e.Available),
		string(fieldsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// Recent returns history entries ordered newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, projectorID string, limit int) ([]Entry, error) {
	if projectorID == "" {
		return nil, fmt.Errorf("projector id is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, projector_id, recorded_at, power, input_source, available, fields
		 FROM state_history
		 WHERE projector_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		projectorID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var recordedAt, fieldsJSON string
		var available int

		if err := rows.Scan(&e.ID, &e.ProjectorID, &recordedAt, &e.Power, &e.InputSource, &available, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt) //nolint:errcheck // Format is controlled
		e.Available = available != 0
		if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
			return nil, fmt.Errorf("unmarshalling fields: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than the retention window and returns
// how many rows were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM state_history WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning state history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package endpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// reportTimeLayout sorts lexically in time order.
	reportTimeLayout = "2006-01-02T15:04:05.000Z"
)

// ErrEndpointIDRequired is returned by history queries without an endpoint.
var ErrEndpointIDRequired = errors.New("endpoint: endpoint id is required")

// ReportEntry is one recorded change report.
type ReportEntry struct {
	ID         int64           `json:"id"`
	EndpointID string          `json:"endpoint_id"`
	Cause      alexa.CauseType `json:"cause"`
	Properties int             `json:"properties"`
	Report     json.RawMessage `json:"report"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ReportStore keeps a local history of published change reports.
//
// Implementations must be thread-safe and use UTC timestamps.
type ReportStore interface {
	// Record stores a published change report.
	Record(ctx context.Context, report ChangeReport) error

	// History returns recent reports for an endpoint, newest first.
	History(ctx context.Context, endpointID string, limit int) ([]ReportEntry, error)
}

// SQLiteReportStore implements ReportStore on the change_reports table.
type SQLiteReportStore struct {
	db *sql.DB
}

// NewSQLiteReportStore creates a report store.
//
// Parameters:
//   - db: Open SQLite connection with migrations applied
//
// Returns:
//   - *SQLiteReportStore: Store ready for use
func NewSQLiteReportStore(db *sql.DB) *SQLiteReportStore {
	return &SQLiteReportStore{db: db}
}

// Record inserts a change report.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - report: Report as handed to the sinks
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteReportStore) Record(ctx context.Context, report ChangeReport) error {
	if report.EndpointID == "" {
		return ErrEndpointIDRequired
	}

	payload, err := json.Marshal(report.Response)
	if err != nil {
		return fmt.Errorf("marshalling change report: %w", err)
	}

	at := report.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO change_reports (endpoint_id, cause, properties, report, created_at) VALUES (?, ?, ?, ?, ?)",
		report.EndpointID,
		string(report.Cause),
		report.Changed,
		string(payload),
		at.UTC().Format(reportTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting change report: %w", err)
	}
	return nil
}

// History returns recent change reports for an endpoint, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - endpointID: Endpoint identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []ReportEntry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (s *SQLiteReportStore) History(ctx context.Context, endpointID string, limit int) ([]ReportEntry, error) {
	if endpointID == "" {
		return nil, ErrEndpointIDRequired
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, endpoint_id, cause, properties, report, created_at
		 FROM change_reports
		 WHERE endpoint_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		endpointID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying change reports: %w", err)
	}
	defer rows.Close()

	entries := make([]ReportEntry, 0, limit)
	for rows.Next() {
		var (
			entry     ReportEntry
			cause     string
			report    string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.EndpointID, &cause, &entry.Properties, &report, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning change report: %w", err)
		}
		entry.Cause = alexa.CauseType(cause)
		entry.Report = json.RawMessage(report)

		ts, err := parseReportTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = ts

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change reports: %w", err)
	}
	return entries, nil
}

// Prune deletes reports older than olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteReportStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(reportTimeLayout)
	result, err := s.db.ExecContext(ctx, "DELETE FROM change_reports WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting change reports: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// parseReportTimestamp parses a timestamp stored in SQLite.
func parseReportTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	ts, err := time.Parse(reportTimeLayout, value)
	if err == nil {
		return ts, nil
	}
	fallback, fallbackErr := time.Parse(time.RFC3339, value)
	if fallbackErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}

package followup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/readmit-risk-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite follow-up store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const recordColumns = `id, assessment_id, patient_id, patient_name, unit,
	tier, condition, timing, channel, due_at,
	completed, completed_at, notes, created_at, updated_at`

// scanRecord scans a row into a Record struct.
func scanRecord(s scanner) (*Record, error) {
	r := &Record{}
	var tier, condition string
	var completedAt sql.NullTime

	err := s.Scan(
		&r.ID, &r.AssessmentID, &r.PatientID, &r.PatientName, &r.Unit,
		&tier, &condition, &r.Timing, &r.Channel, &r.DueAt,
		&r.Completed, &completedAt, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Tier = domain.RiskTier(tier)
	r.Condition = domain.ConditionType(condition)
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS followups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assessment_id TEXT NOT NULL UNIQUE,
		patient_id TEXT DEFAULT '',
		patient_name TEXT DEFAULT '',
		unit TEXT DEFAULT '',
		tier TEXT NOT NULL,
		condition TEXT NOT NULL,
		timing TEXT NOT NULL,
		channel TEXT NOT NULL,
		due_at DATETIME NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_at DATETIME,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_followups_due_at ON followups(due_at);
	CREATE INDEX IF NOT EXISTS idx_followups_unit ON followups(unit);
	CREATE INDEX IF NOT EXISTS idx_followups_completed ON followups(completed);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates the follow-up for an assessment.
func (s *SQLiteStore) Save(ctx context.Context, record *Record) error {
	now := time.Now()

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM followups WHERE assessment_id = ?",
		record.AssessmentID,
	).Scan(&existingID)

	if err == nil {
		record.ID = existingID
		record.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE followups SET
				patient_id = ?,
				patient_name = ?,
				unit = ?,
				tier = ?,
				condition = ?,
				timing = ?,
				channel = ?,
				due_at = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			record.PatientID,
			record.PatientName,
			record.Unit,
			string(record.Tier),
			string(record.Condition),
			record.Timing,
			record.Channel,
			record.DueAt,
			record.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	record.CreatedAt = now
	record.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO followups (
			assessment_id, patient_id, patient_name, unit,
			tier, condition, timing, channel, due_at,
			completed, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.AssessmentID,
		record.PatientID,
		record.PatientName,
		record.Unit,
		string(record.Tier),
		string(record.Condition),
		record.Timing,
		record.Channel,
		record.DueAt,
		record.Completed,
		record.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	record.ID = id

	return nil
}

// Get retrieves the follow-up for an assessment.
func (s *SQLiteStore) Get(ctx context.Context, assessmentID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM followups
		WHERE assessment_id = ?
		LIMIT 1
	`, assessmentID)

	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return r, nil
}

// List returns follow-ups ordered most recent first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM followups
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListPending returns uncompleted follow-ups ordered by due date.
func (s *SQLiteStore) ListPending(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM followups
		WHERE completed = 0
		ORDER BY due_at ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var result []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Complete marks a follow-up as done.
func (s *SQLiteStore) Complete(ctx context.Context, id int64, notes string) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE followups SET
			completed = 1,
			completed_at = ?,
			notes = ?,
			updated_at = ?
		WHERE id = ?
	`, now, notes, now, id)
	if err != nil {
		return fmt.Errorf("failed to complete: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of follow-ups.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM followups").Scan(&count)
	return count, err
}

// Delete removes a follow-up by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM followups WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all follow-ups to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list followups: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Followups:  all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

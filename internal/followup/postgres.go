package followup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL follow-up store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL follow-up store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates the follow-up for an assessment.
func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	now := time.Now()

	query := `
		INSERT INTO followups (
			assessment_id, patient_id, patient_name, unit,
			tier, condition, timing, channel, due_at,
			completed, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (assessment_id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			patient_name = EXCLUDED.patient_name,
			unit = EXCLUDED.unit,
			tier = EXCLUDED.tier,
			condition = EXCLUDED.condition,
			timing = EXCLUDED.timing,
			channel = EXCLUDED.channel,
			due_at = EXCLUDED.due_at,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
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
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save followup: %w", err)
	}

	record.UpdatedAt = now
	return nil
}

// Get retrieves the follow-up for an assessment.
func (s *PostgresStore) Get(ctx context.Context, assessmentID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM followups
		WHERE assessment_id = $1
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
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM followups
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListPending returns uncompleted follow-ups ordered by due date.
func (s *PostgresStore) ListPending(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM followups
		WHERE completed = FALSE
		ORDER BY due_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Complete marks a follow-up as done.
func (s *PostgresStore) Complete(ctx context.Context, id int64, notes string) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE followups SET
			completed = TRUE,
			completed_at = $1,
			notes = $2,
			updated_at = $3
		WHERE id = $4
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
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM followups").Scan(&count)
	return count, err
}

// Delete removes a follow-up by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM followups WHERE id = $1", id)
	return err
}

// ExportJSON exports all follow-ups to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Package repository provides PostgreSQL persistence for completed risk
// assessments.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/database"
	"github.com/readmit-risk-server/internal/domain"
)

// AssessmentRepository implements domain.AssessmentRepository on top of a
// pgx connection pool.
type AssessmentRepository struct {
	db  *database.DB
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *database.DB, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

const assessmentColumns = `id, condition, probability, tier,
	plan_timing, plan_channel, plan_rationale, estimator,
	air_quality_index, social_event_count, environment_source,
	patient_id, patient_name, unit, created_at`

// Save persists a completed assessment. Assessments are immutable; saving
// the same ID twice is a caller bug and surfaces as a conflict error.
func (r *AssessmentRepository) Save(ctx context.Context, a *domain.RiskAssessment) error {
	if err := a.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO assessments (
			id, condition, probability, tier,
			plan_timing, plan_channel, plan_rationale, estimator,
			air_quality_index, social_event_count, environment_source,
			patient_id, patient_name, unit, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		a.ID,
		string(a.Condition),
		a.Probability,
		string(a.Tier),
		a.Plan.Timing,
		a.Plan.Channel,
		a.Plan.Rationale,
		a.Estimator,
		a.Environment.AirQualityIndex,
		a.Environment.SocialEventCount,
		a.Environment.Source,
		a.PatientID,
		a.PatientName,
		a.Unit,
		a.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"error":         err,
		}).Error("Failed to save assessment")
		return fmt.Errorf("saving assessment: %w", err)
	}

	return nil
}

// GetByID retrieves one assessment, or domain.ErrNotFound.
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*domain.RiskAssessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": id,
			"error":         err,
		}).Error("Failed to get assessment")
		return nil, fmt.Errorf("getting assessment: %w", err)
	}

	return a, nil
}

// ListByUnit returns a unit's assessments, newest first. An empty unit
// lists across all units.
func (r *AssessmentRepository) ListByUnit(ctx context.Context, unit string, limit, offset int) ([]*domain.RiskAssessment, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE ($1 = '' OR unit = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, unit, limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"unit":  unit,
			"error": err,
		}).Error("Failed to list assessments")
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()

	var result []*domain.RiskAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment row: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// TierCountsByUnit aggregates stored assessments into per-tier counts for
// a unit, feeding staffing simulations over historical cohorts.
func (r *AssessmentRepository) TierCountsByUnit(ctx context.Context, unit string) (map[domain.RiskTier]int, error) {
	query := `
		SELECT tier, COUNT(*)
		FROM assessments
		WHERE ($1 = '' OR unit = $1)
		GROUP BY tier
	`

	rows, err := r.db.Pool.Query(ctx, query, unit)
	if err != nil {
		return nil, fmt.Errorf("counting assessments by tier: %w", err)
	}
	defer rows.Close()

	counts := map[domain.RiskTier]int{}
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("scanning tier count: %w", err)
		}
		counts[domain.RiskTier(tier)] = count
	}
	return counts, rows.Err()
}

func scanAssessment(row pgx.Row) (*domain.RiskAssessment, error) {
	a := &domain.RiskAssessment{}
	var condition, tier string

	err := row.Scan(
		&a.ID, &condition, &a.Probability, &tier,
		&a.Plan.Timing, &a.Plan.Channel, &a.Plan.Rationale, &a.Estimator,
		&a.Environment.AirQualityIndex, &a.Environment.SocialEventCount, &a.Environment.Source,
		&a.PatientID, &a.PatientName, &a.Unit, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Condition = domain.ConditionType(condition)
	a.Tier = domain.RiskTier(tier)
	return a, nil
}

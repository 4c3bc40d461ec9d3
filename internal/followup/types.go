// Package followup provides persistent tracking of post-discharge
// follow-up tasks derived from risk assessments. Care coordinators work
// the pending list and mark contacts as completed.
package followup

import (
	"context"
	"io"
	"time"

	"github.com/readmit-risk-server/internal/domain"
)

// Record represents one scheduled follow-up contact.
type Record struct {
	ID           int64                `json:"id,omitempty"`
	AssessmentID string               `json:"assessment_id"`
	PatientID    string               `json:"patient_id,omitempty"`
	PatientName  string               `json:"patient_name,omitempty"`
	Unit         string               `json:"unit,omitempty"`
	Tier         domain.RiskTier      `json:"tier"`
	Condition    domain.ConditionType `json:"condition"`
	Timing       string               `json:"timing"`
	Channel      string               `json:"channel"`
	DueAt        time.Time            `json:"due_at"`
	Completed    bool                 `json:"completed"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	Notes        string               `json:"notes,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// DueDate computes the contact deadline for a tier relative to the
// assessment time.
func DueDate(tier domain.RiskTier, from time.Time) time.Time {
	switch tier {
	case domain.TierHigh:
		return from.AddDate(0, 0, 3)
	case domain.TierMedium:
		return from.AddDate(0, 0, 7)
	default:
		return from.AddDate(0, 0, 14)
	}
}

// FromAssessment derives a follow-up record from a completed assessment.
func FromAssessment(a *domain.RiskAssessment) *Record {
	return &Record{
		AssessmentID: a.ID,
		PatientID:    a.PatientID,
		PatientName:  a.PatientName,
		Unit:         a.Unit,
		Tier:         a.Tier,
		Condition:    a.Condition,
		Timing:       a.Plan.Timing,
		Channel:      a.Plan.Channel,
		DueAt:        DueDate(a.Tier, a.CreatedAt),
	}
}

// Store defines the interface for follow-up persistence.
type Store interface {
	// Save stores or updates the follow-up for an assessment. One record
	// exists per assessment; a second Save replaces its schedule.
	Save(ctx context.Context, record *Record) error

	// Get retrieves the follow-up for an assessment, or nil if none.
	Get(ctx context.Context, assessmentID string) (*Record, error)

	// List returns follow-ups ordered most recent first.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// ListPending returns uncompleted follow-ups ordered by due date.
	ListPending(ctx context.Context, limit, offset int) ([]*Record, error)

	// Complete marks a follow-up as done.
	Complete(ctx context.Context, id int64, notes string) error

	// Count returns the total number of follow-ups.
	Count(ctx context.Context) (int64, error)

	// Delete removes a follow-up by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all follow-ups to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Followups  []*Record `json:"followups"`
}

// Package domain contains core business entities and types for 30-day
// hospital-readmission risk assessment and cohort resource planning.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RiskTier represents the discretized readmission risk band for a patient.
// Tiers drive the follow-up policy and the staffing multipliers, so only
// the three named values are ever valid.
type RiskTier string

const (
	TierLow    RiskTier = "Low"
	TierMedium RiskTier = "Medium"
	TierHigh   RiskTier = "High"
)

// ConditionType identifies which condition-specific model, heuristic branch
// and feature schema apply to an observation.
type ConditionType string

const (
	ConditionDiabetes     ConditionType = "diabetes"
	ConditionHeartFailure ConditionType = "heart_failure"
)

// Probability bounds enforced on the heuristic path to avoid overconfident
// extremes.
const (
	HeuristicFloor   = 0.10
	HeuristicCeiling = 0.95
)

// Tier thresholds. Bands are closed on their lower bound: exactly 0.70 is
// High, exactly 0.40 is Medium.
const (
	HighRiskThreshold   = 0.70
	MediumRiskThreshold = 0.40
)

// Validation errors for clinical data integrity.
var (
	ErrNotFound             = errors.New("not found")
	ErrUnknownCondition     = errors.New("unknown condition type")
	ErrInvalidRiskTier      = errors.New("invalid risk tier")
	ErrInvalidProbability   = errors.New("probability out of range")
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrIncompatibleArtifact = errors.New("incompatible model artifact")
)

// IsValid reports whether the tier is one of the three recognized bands.
func (t RiskTier) IsValid() bool {
	switch t {
	case TierLow, TierMedium, TierHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (t RiskTier) String() string {
	return string(t)
}

// Severity returns an ordinal rank for the tier, used when comparing tiers
// for monotonicity (High > Medium > Low).
func (t RiskTier) Severity() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}

// ParseRiskTier parses a tier label leniently (case-insensitive).
func ParseRiskTier(s string) (RiskTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRiskTier, s)
	}
}

// IsValid reports whether the condition type is recognized.
func (c ConditionType) IsValid() bool {
	switch c {
	case ConditionDiabetes, ConditionHeartFailure:
		return true
	default:
		return false
	}
}

// String returns the string representation of the condition type.
func (c ConditionType) String() string {
	return string(c)
}

// Label returns the display name used in plans and reports.
func (c ConditionType) Label() string {
	switch c {
	case ConditionDiabetes:
		return "Diabetes"
	case ConditionHeartFailure:
		return "Heart Failure"
	default:
		return "Unknown"
	}
}

// ParseConditionType parses a condition discriminator leniently. Payloads
// from older clients use labels like "Heart Failure" or "heart-failure".
func ParseConditionType(s string) (ConditionType, error) {
	switch strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(s))) {
	case "diabetes":
		return ConditionDiabetes, nil
	case "heart_failure":
		return ConditionHeartFailure, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCondition, s)
	}
}

// ClassifyRisk maps a probability to its tier. Pure and total; boundaries
// are closed on the lower bound of each band.
func ClassifyRisk(probability float64) RiskTier {
	switch {
	case probability >= HighRiskThreshold:
		return TierHigh
	case probability >= MediumRiskThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// PatientObservation is one assessment request: the raw submitted fields
// plus the condition discriminator. Field values arrive as free-form JSON
// scalars (string, number, bool, null); the normalizer copes with anything.
type PatientObservation struct {
	Condition ConditionType  `json:"condition"`
	Fields    map[string]any `json:"fields"`

	// Pass-through labels, not consumed by the core algorithms.
	PatientID   string `json:"patient_id,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// Validate checks the one hard input error the core surfaces: an
// unrecognized condition discriminator. Everything else is recovered by
// the normalizer.
func (o *PatientObservation) Validate() error {
	if !o.Condition.IsValid() {
		return fmt.Errorf("observation validation: %w: %q", ErrUnknownCondition, o.Condition)
	}
	return nil
}

// FollowUpPlan prescribes post-discharge outreach for one assessment.
type FollowUpPlan struct {
	Timing    string `json:"timing"`
	Channel   string `json:"channel"`
	Rationale string `json:"rationale"`
}

// EnvironmentFactors are the environmental covariates attached to an
// observation, either submitted by the client or resolved from external
// data sources.
type EnvironmentFactors struct {
	AirQualityIndex  float64 `json:"air_quality_index"`
	SocialEventCount float64 `json:"social_event_count"`
	Source           string  `json:"source,omitempty"`
}

// RiskAssessment is the engine's output for one observation. Immutable
// after creation.
type RiskAssessment struct {
	ID          string             `json:"id"`
	Condition   ConditionType      `json:"condition"`
	Probability float64            `json:"probability"`
	Tier        RiskTier           `json:"tier"`
	Plan        FollowUpPlan       `json:"plan"`
	Estimator   string             `json:"estimator"`
	Environment EnvironmentFactors `json:"environment"`

	PatientID   string    `json:"patient_id,omitempty"`
	PatientName string    `json:"patient_name,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate ensures an assessment meets the output invariants before it is
// persisted or returned.
func (a *RiskAssessment) Validate() error {
	if !a.Condition.IsValid() {
		return fmt.Errorf("assessment validation: %w", ErrUnknownCondition)
	}
	if a.Probability < 0 || a.Probability > 1 {
		return fmt.Errorf("assessment validation: %w: %f", ErrInvalidProbability, a.Probability)
	}
	if !a.Tier.IsValid() {
		return fmt.Errorf("assessment validation: %w", ErrInvalidRiskTier)
	}
	return nil
}

// CohortMember is one tier-labeled patient in a staffing simulation.
type CohortMember struct {
	Tier      RiskTier      `json:"tier"`
	Condition ConditionType `json:"condition,omitempty"`
}

// CohortSummary is the staffing simulator's output for a cohort. Resource
// counts are monotonic non-decreasing in tier severity and cohort size, and
// are recomputed fully on every call.
type CohortSummary struct {
	TotalPatients        int              `json:"total_patients"`
	TierCounts           map[RiskTier]int `json:"tier_counts"`
	ExpectedReadmissions float64          `json:"expected_readmissions"`
	RequiredDoctors      int              `json:"required_doctors"`
	RequiredNurseHours   float64          `json:"required_nurse_hours"`
	RequiredBeds         int              `json:"required_beds"`

	// Pass-through cohort metadata.
	SimulationDate string `json:"simulation_date,omitempty"`
	Unit           string `json:"unit,omitempty"`
}

package domain

import (
	"context"
)

// FeatureVector is a normalized, fixed-order numeric feature vector for one
// observation. Names and Values are parallel slices whose order is the
// model-agreed column order for the condition; it never varies between
// calls regardless of which optional fields were supplied.
type FeatureVector struct {
	Condition ConditionType
	Names     []string
	Values    []float64
}

// Get returns the value for a named feature, or 0 if the feature is not in
// the schema.
func (v *FeatureVector) Get(name string) float64 {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i]
		}
	}
	return 0
}

// RiskEstimator produces a readmission probability from a normalized
// feature vector. Two implementations exist: one backed by a trained
// classifier artifact and one backed by the deterministic clinical
// heuristic. The implementation serving a condition is selected once at
// startup based on artifact load success.
type RiskEstimator interface {
	// EstimateRisk returns a probability in [0, 1].
	EstimateRisk(ctx context.Context, features *FeatureVector) (float64, error)

	// Name identifies the estimator in logs and assessment records.
	Name() string
}

// EnvironmentProvider resolves environmental covariates (air quality,
// social events) for a hospital unit's locale. Implementations must be
// soft-failing: on any upstream trouble they return defaults, never an
// error that aborts an assessment.
type EnvironmentProvider interface {
	Resolve(ctx context.Context, unit string) *EnvironmentFactors
}

// AssessmentRepository persists completed risk assessments.
type AssessmentRepository interface {
	Save(ctx context.Context, assessment *RiskAssessment) error
	GetByID(ctx context.Context, id string) (*RiskAssessment, error)
	ListByUnit(ctx context.Context, unit string, limit, offset int) ([]*RiskAssessment, error)
}

// ConfigManager defines the interface for configuration management.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetStaffingConfig() *StaffingConfig
	Validate() error
	GetDatabaseConnectionString() string
	IsProduction() bool
}

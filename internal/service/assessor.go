package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/domain"
)

// Assessor orchestrates the full assessment pipeline: environment
// resolution, feature normalization, risk estimation, tier classification,
// and follow-up planning. One Assessor serves all conditions; the
// estimator for each condition is chosen at construction time.
type Assessor struct {
	estimators  map[domain.ConditionType]domain.RiskEstimator
	fallback    domain.RiskEstimator
	environment domain.EnvironmentProvider
	log         *logrus.Logger
}

// NewAssessor wires the pipeline. estimators maps each condition to its
// preferred estimator; fallback (the heuristic) handles conditions whose
// preferred estimator fails at request time. environment may be nil, in
// which case client-supplied environment fields are used as-is.
func NewAssessor(
	estimators map[domain.ConditionType]domain.RiskEstimator,
	fallback domain.RiskEstimator,
	environment domain.EnvironmentProvider,
	logger *logrus.Logger,
) *Assessor {
	return &Assessor{
		estimators:  estimators,
		fallback:    fallback,
		environment: environment,
		log:         logger,
	}
}

// Assess runs one observation through the pipeline and returns a complete,
// validated assessment. The only client error it surfaces is an unknown
// condition; malformed field values are coerced, and estimator trouble
// degrades to the heuristic rather than failing the request.
func (a *Assessor) Assess(ctx context.Context, obs *domain.PatientObservation) (*domain.RiskAssessment, error) {
	start := time.Now()

	if err := obs.Validate(); err != nil {
		return nil, err
	}

	env := a.resolveEnvironment(ctx, obs)
	features := Normalize(obs.Condition, a.withEnvironment(obs.Fields, env))

	estimator := a.estimatorFor(obs.Condition)
	probability, err := estimator.EstimateRisk(ctx, features)
	if err != nil {
		if a.fallback == nil || estimator == a.fallback {
			return nil, fmt.Errorf("estimating risk: %w", err)
		}
		a.log.WithFields(logrus.Fields{
			"condition": obs.Condition,
			"estimator": estimator.Name(),
			"error":     err,
		}).Warn("Estimator failed, falling back to heuristic")
		estimator = a.fallback
		probability, err = estimator.EstimateRisk(ctx, features)
		if err != nil {
			return nil, fmt.Errorf("estimating risk: %w", err)
		}
	}
	probability = math.Max(0, math.Min(1, probability))

	tier := domain.ClassifyRisk(probability)
	assessment := &domain.RiskAssessment{
		ID:          uuid.New().String(),
		Condition:   obs.Condition,
		Probability: probability,
		Tier:        tier,
		Plan:        PlanFollowUp(tier, obs.Condition),
		Estimator:   estimator.Name(),
		Environment: *env,
		PatientID:   obs.PatientID,
		PatientName: obs.PatientName,
		Unit:        obs.Unit,
		CreatedAt:   time.Now().UTC(),
	}
	if err := assessment.Validate(); err != nil {
		return nil, fmt.Errorf("assessment failed output validation: %w", err)
	}

	a.log.WithFields(logrus.Fields{
		"assessment_id": assessment.ID,
		"condition":     assessment.Condition,
		"probability":   assessment.Probability,
		"tier":          assessment.Tier,
		"estimator":     assessment.Estimator,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Risk assessment completed")

	return assessment, nil
}

// estimatorFor returns the estimator configured for a condition, or the
// fallback if none was registered.
func (a *Assessor) estimatorFor(condition domain.ConditionType) domain.RiskEstimator {
	if est, ok := a.estimators[condition]; ok && est != nil {
		return est
	}
	return a.fallback
}

// resolveEnvironment fills in environmental covariates. Values the client
// submitted win over resolved ones; the provider is only consulted for
// fields the client left out.
func (a *Assessor) resolveEnvironment(ctx context.Context, obs *domain.PatientObservation) *domain.EnvironmentFactors {
	aqi, hasAQI := obs.Fields[FeatureAirQuality]
	events, hasEvents := obs.Fields[FeatureSocialEvent]

	env := &domain.EnvironmentFactors{Source: "client"}
	if hasAQI && hasEvents {
		env.AirQualityIndex = safeFloat(aqi, 0)
		env.SocialEventCount = safeFloat(events, 0)
		return env
	}

	if a.environment != nil {
		resolved := a.environment.Resolve(ctx, obs.Unit)
		env = resolved
	}
	if hasAQI {
		env.AirQualityIndex = safeFloat(aqi, 0)
	}
	if hasEvents {
		env.SocialEventCount = safeFloat(events, 0)
	}
	return env
}

// withEnvironment overlays resolved environment values onto the raw fields
// without mutating the caller's map.
func (a *Assessor) withEnvironment(fields map[string]any, env *domain.EnvironmentFactors) map[string]any {
	merged := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		merged[k] = v
	}
	merged[FeatureAirQuality] = env.AirQualityIndex
	merged[FeatureSocialEvent] = env.SocialEventCount
	return merged
}

// IsClientError reports whether an assessment error was caused by the
// request rather than the service.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrUnknownCondition)
}

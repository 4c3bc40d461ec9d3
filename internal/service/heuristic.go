package service

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/domain"
)

// Heuristic policy constants.
const (
	heuristicBaseRate    = 0.25
	heuristicPerturbSpan = 0.02
)

// riskRule is one band of an additive scoring category.
type riskRule struct {
	reason  string
	applies func(v *domain.FeatureVector) bool
	delta   float64
}

// ruleCategory is an ordered list of bands evaluated first-match-wins:
// within a category at most one band contributes, so e.g. age >75 does not
// also collect the 65-75 bonus. Categories themselves are independent and
// additive.
type ruleCategory struct {
	name      string
	condition domain.ConditionType // zero value: applies to all conditions
	rules     []riskRule
}

// HeuristicEstimator is the deterministic, rule-based probability estimate
// used when no trained classifier is usable for a condition. It never
// fails and its output is always within [HeuristicFloor, HeuristicCeiling].
type HeuristicEstimator struct {
	log        *logrus.Logger
	categories []ruleCategory

	mu      sync.Mutex
	perturb func() float64
}

// HeuristicOption configures a HeuristicEstimator.
type HeuristicOption func(*HeuristicEstimator)

// WithPerturbation overrides the random perturbation source. Tests pass a
// fixed function to make scores exactly reproducible.
func WithPerturbation(f func() float64) HeuristicOption {
	return func(h *HeuristicEstimator) {
		h.perturb = f
	}
}

// NewHeuristicEstimator creates the heuristic estimator with the standard
// clinical rule set.
func NewHeuristicEstimator(logger *logrus.Logger, opts ...HeuristicOption) *HeuristicEstimator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	h := &HeuristicEstimator{
		log:        logger,
		categories: buildRuleCategories(),
		perturb: func() float64 {
			return (rng.Float64()*2 - 1) * heuristicPerturbSpan
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name identifies the estimator in logs and assessment records.
func (h *HeuristicEstimator) Name() string {
	return "heuristic"
}

// EstimateRisk sums the first matching band of each applicable category on
// top of the base rate, adds a small symmetric perturbation and clamps the
// total to [HeuristicFloor, HeuristicCeiling]. Total function: any vector,
// including an all-default one, yields an in-range probability.
func (h *HeuristicEstimator) EstimateRisk(_ context.Context, features *domain.FeatureVector) (float64, error) {
	score := heuristicBaseRate
	matched := make([]string, 0, len(h.categories))

	for _, cat := range h.categories {
		if cat.condition != "" && cat.condition != features.Condition {
			continue
		}
		for _, rule := range cat.rules {
			if rule.applies(features) {
				score += rule.delta
				matched = append(matched, cat.name+":"+rule.reason)
				break
			}
		}
	}

	h.mu.Lock()
	score += h.perturb()
	h.mu.Unlock()

	score = math.Max(domain.HeuristicFloor, math.Min(domain.HeuristicCeiling, score))

	h.log.WithFields(logrus.Fields{
		"condition":     features.Condition,
		"matched_rules": matched,
		"probability":   score,
	}).Debug("Heuristic risk estimate computed")

	return score, nil
}

// present reports whether a clinical reading was actually supplied. The
// normalizer imputes 0 for missing fields, so a zero reading carries no
// evidence; below-threshold bands must not fire on it.
func present(v float64) bool {
	return v > 0
}

func buildRuleCategories() []ruleCategory {
	return []ruleCategory{
		{
			name: "age",
			rules: []riskRule{
				{"over_75", feat(FeatureAge, func(v float64) bool { return v > 75 }), 0.20},
				{"65_to_75", feat(FeatureAge, func(v float64) bool { return v >= 65 }), 0.15},
				{"55_to_65", feat(FeatureAge, func(v float64) bool { return v >= 55 }), 0.08},
				{"under_30", feat(FeatureAge, func(v float64) bool { return present(v) && v < 30 }), -0.05},
			},
		},
		{
			name: "cardiovascular",
			rules: []riskRule{
				{"severe_hypertension", func(fv *domain.FeatureVector) bool {
					return fv.Get(FeatureSystolicBP) > 160 || fv.Get(FeatureDiastolicBP) > 100
				}, 0.15},
				{"hypertension", func(fv *domain.FeatureVector) bool {
					return fv.Get(FeatureSystolicBP) > 140 || fv.Get(FeatureDiastolicBP) > 90
				}, 0.10},
			},
		},
		{
			name: "cholesterol",
			rules: []riskRule{
				{"high", feat(FeatureCholesterol, func(v float64) bool { return v > 240 }), 0.12},
				{"borderline", feat(FeatureCholesterol, func(v float64) bool { return v >= 200 }), 0.05},
				{"low", feat(FeatureCholesterol, func(v float64) bool { return present(v) && v < 120 }), -0.03},
			},
		},
		{
			name: "insulin",
			rules: []riskRule{
				{"elevated", feat(FeatureInsulin, func(v float64) bool { return v > 50 }), 0.10},
			},
		},
		{
			name: "platelets",
			rules: []riskRule{
				{"elevated", feat(FeaturePlatelets, func(v float64) bool { return v > 400 }), 0.08},
				{"low", feat(FeaturePlatelets, func(v float64) bool { return present(v) && v < 150 }), 0.08},
			},
		},
		{
			name: "weight",
			rules: []riskRule{
				{"over_100", feat(FeatureWeight, func(v float64) bool { return v > 100 }), 0.08},
				{"under_50", feat(FeatureWeight, func(v float64) bool { return present(v) && v < 50 }), 0.05},
			},
		},
		{
			name:      "hemoglobin",
			condition: domain.ConditionDiabetes,
			rules: []riskRule{
				{"over_8", feat(FeatureHemoglobin, func(v float64) bool { return v > 8.0 }), 0.18},
				{"7_to_8", feat(FeatureHemoglobin, func(v float64) bool { return v >= 7.0 }), 0.10},
			},
		},
		{
			name:      "urine_glucose",
			condition: domain.ConditionDiabetes,
			rules: []riskRule{
				{"over_100", feat(FeatureUrineGlucose, func(v float64) bool { return v > 100 }), 0.12},
				{"50_to_100", feat(FeatureUrineGlucose, func(v float64) bool { return v >= 50 }), 0.06},
			},
		},
		{
			name:      "wbc",
			condition: domain.ConditionDiabetes,
			rules: []riskRule{
				{"elevated", feat(FeatureWBCCount, func(v float64) bool { return v > 11 }), 0.08},
				{"low", feat(FeatureWBCCount, func(v float64) bool { return present(v) && v < 4 }), 0.08},
			},
		},
		{
			name:      "ecg",
			condition: domain.ConditionHeartFailure,
			rules: []riskRule{
				{"severe_abnormality", feat(FeatureECGResult, func(v float64) bool { return math.Abs(v) > 2 }), 0.18},
				{"abnormality", feat(FeatureECGResult, func(v float64) bool { return math.Abs(v) > 1 }), 0.10},
			},
		},
		{
			name:      "pulse",
			condition: domain.ConditionHeartFailure,
			rules: []riskRule{
				{"tachycardia", feat(FeaturePulseRate, func(v float64) bool { return v > 100 }), 0.15},
				{"bradycardia", feat(FeaturePulseRate, func(v float64) bool { return present(v) && v < 50 }), 0.15},
				{"elevated", feat(FeaturePulseRate, func(v float64) bool { return v > 90 }), 0.08},
				{"reduced", feat(FeaturePulseRate, func(v float64) bool { return present(v) && v < 60 }), 0.08},
			},
		},
	}
}

// feat lifts a single-feature predicate into a vector predicate.
func feat(name string, pred func(float64) bool) func(*domain.FeatureVector) bool {
	return func(fv *domain.FeatureVector) bool {
		return pred(fv.Get(name))
	}
}

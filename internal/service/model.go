package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/domain"
)

// modelSchemaVersion is the artifact format this build understands.
// Artifacts with any other version are treated as incompatible (version
// skew from a retrained pipeline), which is a soft failure.
const modelSchemaVersion = 1

// modelArtifact is the serialized form of an externally-trained logistic
// classifier: an intercept plus one weight per feature column, in the
// model-agreed column order.
type modelArtifact struct {
	SchemaVersion int       `json:"schema_version"`
	Condition     string    `json:"condition"`
	Features      []string  `json:"features"`
	Intercept     float64   `json:"intercept"`
	Weights       []float64 `json:"weights"`
}

// ModelEstimator wraps a serialized classifier artifact for one condition.
// The artifact is loaded lazily on first use; load failure is cached so a
// broken artifact is never re-read per request. A failed ModelEstimator
// signals unavailability rather than crashing the surrounding request; the
// caller falls back to the heuristic.
type ModelEstimator struct {
	condition domain.ConditionType
	path      string
	log       *logrus.Logger

	once     sync.Once
	artifact *modelArtifact
	loadErr  error
}

// NewModelEstimator creates an adapter for a condition's artifact. No I/O
// happens until the first Available or EstimateRisk call.
func NewModelEstimator(condition domain.ConditionType, path string, logger *logrus.Logger) *ModelEstimator {
	return &ModelEstimator{
		condition: condition,
		path:      path,
		log:       logger,
	}
}

// Name identifies the estimator in logs and assessment records.
func (m *ModelEstimator) Name() string {
	return "model"
}

// Available triggers the one-time artifact load and reports whether the
// model path can serve this condition. The result never changes for the
// lifetime of the process.
func (m *ModelEstimator) Available() bool {
	m.load()
	return m.loadErr == nil
}

// EstimateRisk runs inference against the loaded artifact and returns the
// positive-class probability, clamped to [0, 1]. If the artifact could not
// be loaded it returns domain.ErrModelUnavailable so the caller can fall
// back.
func (m *ModelEstimator) EstimateRisk(_ context.Context, features *domain.FeatureVector) (float64, error) {
	m.load()
	if m.loadErr != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, m.loadErr)
	}
	if len(features.Values) != len(m.artifact.Weights) {
		return 0, fmt.Errorf("%w: feature vector has %d columns, artifact expects %d",
			domain.ErrModelUnavailable, len(features.Values), len(m.artifact.Weights))
	}

	z := m.artifact.Intercept
	for i, w := range m.artifact.Weights {
		z += w * features.Values[i]
	}
	p := 1.0 / (1.0 + math.Exp(-z))

	return math.Max(0, math.Min(1, p)), nil
}

// load reads and validates the artifact exactly once.
func (m *ModelEstimator) load() {
	m.once.Do(func() {
		if m.path == "" {
			m.loadErr = fmt.Errorf("%w: no artifact path configured", domain.ErrModelUnavailable)
			return
		}

		artifact, err := readModelArtifact(m.path, m.condition)
		if err != nil {
			m.loadErr = err
			m.log.WithFields(logrus.Fields{
				"condition": m.condition,
				"path":      m.path,
				"error":     err,
			}).Warn("Model artifact unusable, requests will use the heuristic estimator")
			return
		}

		m.artifact = artifact
		m.log.WithFields(logrus.Fields{
			"condition": m.condition,
			"path":      m.path,
			"features":  len(artifact.Features),
		}).Info("Model artifact loaded")
	})
}

// readModelArtifact deserializes and validates one artifact file. Any
// mismatch with the expected schema is an incompatibility, not a fatal
// error.
func readModelArtifact(path string, condition domain.ConditionType) (*modelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}

	var artifact modelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIncompatibleArtifact, err)
	}

	if artifact.SchemaVersion != modelSchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d",
			domain.ErrIncompatibleArtifact, artifact.SchemaVersion, modelSchemaVersion)
	}
	if artifact.Condition != condition.String() {
		return nil, fmt.Errorf("%w: artifact trained for %q, want %q",
			domain.ErrIncompatibleArtifact, artifact.Condition, condition)
	}
	if len(artifact.Weights) != len(artifact.Features) {
		return nil, fmt.Errorf("%w: %d weights for %d features",
			domain.ErrIncompatibleArtifact, len(artifact.Weights), len(artifact.Features))
	}

	expected := FeatureSchema(condition)
	if len(artifact.Features) != len(expected) {
		return nil, fmt.Errorf("%w: %d feature columns, want %d",
			domain.ErrIncompatibleArtifact, len(artifact.Features), len(expected))
	}
	for i, name := range expected {
		if artifact.Features[i] != name {
			return nil, fmt.Errorf("%w: feature column %d is %q, want %q",
				domain.ErrIncompatibleArtifact, i, artifact.Features[i], name)
		}
	}

	return &artifact, nil
}

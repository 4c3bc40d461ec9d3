package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		want        RiskTier
	}{
		{"zero", 0.0, TierLow},
		{"just below medium", 0.39999, TierLow},
		{"medium boundary is closed", 0.40, TierMedium},
		{"mid band", 0.55, TierMedium},
		{"just below high", 0.69999, TierMedium},
		{"high boundary is closed", 0.70, TierHigh},
		{"ceiling", 0.95, TierHigh},
		{"one", 1.0, TierHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRisk(tt.probability))
		})
	}
}

func TestRiskTier_IsValid(t *testing.T) {
	assert.True(t, TierLow.IsValid())
	assert.True(t, TierMedium.IsValid())
	assert.True(t, TierHigh.IsValid())
	assert.False(t, RiskTier("Critical").IsValid())
	assert.False(t, RiskTier("").IsValid())
}

func TestRiskTier_Severity(t *testing.T) {
	assert.Greater(t, TierHigh.Severity(), TierMedium.Severity())
	assert.Greater(t, TierMedium.Severity(), TierLow.Severity())
	assert.Equal(t, 0, RiskTier("bogus").Severity())
}

func TestParseRiskTier(t *testing.T) {
	tests := []struct {
		input   string
		want    RiskTier
		wantErr bool
	}{
		{"High", TierHigh, false},
		{"high", TierHigh, false},
		{" MEDIUM ", TierMedium, false},
		{"low", TierLow, false},
		{"critical", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		tier, err := ParseRiskTier(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRiskTier, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, tier, tt.input)
	}
}

func TestParseConditionType(t *testing.T) {
	tests := []struct {
		input   string
		want    ConditionType
		wantErr bool
	}{
		{"diabetes", ConditionDiabetes, false},
		{"Diabetes", ConditionDiabetes, false},
		{"heart_failure", ConditionHeartFailure, false},
		{"Heart Failure", ConditionHeartFailure, false},
		{"heart-failure", ConditionHeartFailure, false},
		{"asthma", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		condition, err := ParseConditionType(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownCondition, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, condition, tt.input)
	}
}

func TestConditionType_Label(t *testing.T) {
	assert.Equal(t, "Diabetes", ConditionDiabetes.Label())
	assert.Equal(t, "Heart Failure", ConditionHeartFailure.Label())
	assert.Equal(t, "Unknown", ConditionType("asthma").Label())
}

func TestPatientObservation_Validate(t *testing.T) {
	valid := &PatientObservation{Condition: ConditionDiabetes}
	assert.NoError(t, valid.Validate())

	invalid := &PatientObservation{Condition: "asthma"}
	assert.ErrorIs(t, invalid.Validate(), ErrUnknownCondition)
}

func TestRiskAssessment_Validate(t *testing.T) {
	base := func() *RiskAssessment {
		return &RiskAssessment{
			ID:          "a-1",
			Condition:   ConditionDiabetes,
			Probability: 0.5,
			Tier:        TierMedium,
		}
	}

	assert.NoError(t, base().Validate())

	badCondition := base()
	badCondition.Condition = "asthma"
	assert.ErrorIs(t, badCondition.Validate(), ErrUnknownCondition)

	negative := base()
	negative.Probability = -0.1
	assert.ErrorIs(t, negative.Validate(), ErrInvalidProbability)

	above := base()
	above.Probability = 1.5
	assert.ErrorIs(t, above.Validate(), ErrInvalidProbability)

	badTier := base()
	badTier.Tier = "Critical"
	assert.ErrorIs(t, badTier.Validate(), ErrInvalidRiskTier)
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmit-risk-server/internal/domain"
)

func TestFeatureSchema_FixedOrder(t *testing.T) {
	diabetes := FeatureSchema(domain.ConditionDiabetes)
	heart := FeatureSchema(domain.ConditionHeartFailure)

	assert.Len(t, diabetes, len(commonFeatures)+len(diabetesFeatures))
	assert.Len(t, heart, len(commonFeatures)+len(heartFailureFeatures))

	// Common block leads in both schemas, in identical order.
	for i, name := range commonFeatures {
		assert.Equal(t, name, diabetes[i])
		assert.Equal(t, name, heart[i])
	}
	assert.Equal(t, FeatureHemoglobin, diabetes[len(commonFeatures)])
	assert.Equal(t, FeatureECGResult, heart[len(commonFeatures)])
}

func TestNormalize_StableAcrossMissingFields(t *testing.T) {
	full := Normalize(domain.ConditionDiabetes, map[string]any{
		"age":         65.0,
		"cholesterol": 210.0,
		"hemoglobin":  7.5,
	})
	sparse := Normalize(domain.ConditionDiabetes, map[string]any{})
	empty := Normalize(domain.ConditionDiabetes, nil)

	require.Equal(t, full.Names, sparse.Names)
	require.Equal(t, full.Names, empty.Names)
	require.Len(t, sparse.Values, len(sparse.Names))

	for _, v := range sparse.Values {
		assert.Zero(t, v)
	}
	assert.Equal(t, 65.0, full.Get(FeatureAge))
	assert.Equal(t, 210.0, full.Get(FeatureCholesterol))
	assert.Equal(t, 7.5, full.Get(FeatureHemoglobin))
}

func TestNormalize_BloodPressure(t *testing.T) {
	tests := []struct {
		name         string
		fields       map[string]any
		wantSystolic float64
		wantDiastol  float64
	}{
		{
			name:         "Combined string",
			fields:       map[string]any{"blood_pressure": "120/80"},
			wantSystolic: 120,
			wantDiastol:  80,
		},
		{
			name:         "Combined string with spaces",
			fields:       map[string]any{"blood_pressure": "150 / 95"},
			wantSystolic: 150,
			wantDiastol:  95,
		},
		{
			name: "Separate fields win over combined",
			fields: map[string]any{
				"blood_pressure": "120/80",
				"systolic_bp":    160.0,
				"diastolic_bp":   100.0,
			},
			wantSystolic: 160,
			wantDiastol:  100,
		},
		{
			name:         "Unparsable combined string",
			fields:       map[string]any{"blood_pressure": "high"},
			wantSystolic: 0,
			wantDiastol:  0,
		},
		{
			name:         "Non-string combined value",
			fields:       map[string]any{"blood_pressure": 120.0},
			wantSystolic: 0,
			wantDiastol:  0,
		},
		{
			name:         "Missing entirely",
			fields:       map[string]any{},
			wantSystolic: 0,
			wantDiastol:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := Normalize(domain.ConditionDiabetes, tt.fields)
			assert.Equal(t, tt.wantSystolic, fv.Get(FeatureSystolicBP))
			assert.Equal(t, tt.wantDiastol, fv.Get(FeatureDiastolicBP))
		})
	}
}

func TestNormalize_CategoricalEncodings(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
		want  float64
	}{
		{"Male", "sex", "male", 1},
		{"Male abbreviated", "sex", "M", 1},
		{"Female", "sex", "female", 0},
		{"Sex numeric passthrough", "sex", 1.0, 1},
		{"Sex missing", "sex", nil, 0},
		{"Diabetic yes", "diabetic", "yes", 1},
		{"Diabetic y", "diabetic", "Y", 1},
		{"Diabetic true bool", "diabetic", true, 1},
		{"Diabetic no", "diabetic", "no", 0},
		{"Diabetic missing", "diabetic", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := map[string]any{}
			if tt.value != nil {
				fields[tt.field] = tt.value
			}
			fv := Normalize(domain.ConditionDiabetes, fields)
			assert.Equal(t, tt.want, fv.Get(tt.field))
		})
	}
}

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name  string
		value any
		def   float64
		want  float64
	}{
		{"Float", 42.5, 0, 42.5},
		{"Int", 42, 0, 42},
		{"Numeric string", "42.5", 0, 42.5},
		{"Padded string", "  42.5  ", 0, 42.5},
		{"Empty string", "", 7, 7},
		{"NaN placeholder", "NaN", 7, 7},
		{"None placeholder", "none", 7, 7},
		{"N/A placeholder", "N/A", 7, 7},
		{"Garbage string", "abc", 7, 7},
		{"Nil", nil, 7, 7},
		{"Bool true", true, 0, 1},
		{"Bool false", false, 7, 0},
		{"Unsupported type", []string{"x"}, 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, safeFloat(tt.value, tt.def))
		})
	}
}

package service

import (
	"strconv"
	"strings"

	"github.com/readmit-risk-server/internal/domain"
)

// Feature column names. The concatenation of the common block and one
// condition block is the model-agreed column order for that condition;
// both prediction paths rely on it.
const (
	FeatureAge         = "age"
	FeatureSex         = "sex"
	FeatureWeight      = "weight"
	FeatureSystolicBP  = "systolic_bp"
	FeatureDiastolicBP = "diastolic_bp"
	FeatureCholesterol = "cholesterol"
	FeatureInsulin     = "insulin"
	FeaturePlatelets   = "platelets"
	FeatureDiabetic    = "diabetic"
	FeatureAirQuality  = "air_quality_index"
	FeatureSocialEvent = "social_event_count"

	FeatureHemoglobin    = "hemoglobin"
	FeatureWBCCount      = "wbc_count"
	FeaturePlateletCount = "platelet_count"
	FeatureUrineProtein  = "urine_protein"
	FeatureUrineGlucose  = "urine_glucose"

	FeatureECGResult = "ecg_result"
	FeaturePulseRate = "pulse_rate"
)

var commonFeatures = []string{
	FeatureAge,
	FeatureSex,
	FeatureWeight,
	FeatureSystolicBP,
	FeatureDiastolicBP,
	FeatureCholesterol,
	FeatureInsulin,
	FeaturePlatelets,
	FeatureDiabetic,
	FeatureAirQuality,
	FeatureSocialEvent,
}

var diabetesFeatures = []string{
	FeatureHemoglobin,
	FeatureWBCCount,
	FeaturePlateletCount,
	FeatureUrineProtein,
	FeatureUrineGlucose,
}

var heartFailureFeatures = []string{
	FeatureECGResult,
	FeaturePulseRate,
}

// FeatureSchema returns the fixed column order for a condition.
func FeatureSchema(condition domain.ConditionType) []string {
	var specific []string
	switch condition {
	case domain.ConditionHeartFailure:
		specific = heartFailureFeatures
	default:
		specific = diabetesFeatures
	}
	schema := make([]string, 0, len(commonFeatures)+len(specific))
	schema = append(schema, commonFeatures...)
	schema = append(schema, specific...)
	return schema
}

// Normalize converts a raw field-to-value mapping into the fixed-order
// feature vector for the condition. It is a pure function and never fails:
// missing, empty or garbled fields become 0, categorical fields get their
// fixed numeric encoding, and a combined "120/80" blood-pressure string is
// split into its systolic/diastolic components.
func Normalize(condition domain.ConditionType, fields map[string]any) *domain.FeatureVector {
	schema := FeatureSchema(condition)
	values := make([]float64, len(schema))

	systolic, diastolic := bloodPressure(fields)

	for i, name := range schema {
		switch name {
		case FeatureSex:
			values[i] = encodeSex(fields[FeatureSex])
		case FeatureDiabetic:
			values[i] = encodeFlag(fields[FeatureDiabetic])
		case FeatureSystolicBP:
			values[i] = systolic
		case FeatureDiastolicBP:
			values[i] = diastolic
		default:
			values[i] = safeFloat(fields[name], 0)
		}
	}

	return &domain.FeatureVector{
		Condition: condition,
		Names:     schema,
		Values:    values,
	}
}

// bloodPressure extracts systolic/diastolic readings. Separate numeric
// fields win over the combined string; an unparsable combined string
// yields 0/0.
func bloodPressure(fields map[string]any) (systolic, diastolic float64) {
	systolic = safeFloat(fields[FeatureSystolicBP], 0)
	diastolic = safeFloat(fields[FeatureDiastolicBP], 0)
	if systolic > 0 && diastolic > 0 {
		return systolic, diastolic
	}

	raw, ok := fields["blood_pressure"]
	if !ok {
		return systolic, diastolic
	}
	s, ok := raw.(string)
	if !ok {
		return systolic, diastolic
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return systolic, diastolic
	}
	sys := safeFloat(parts[0], 0)
	dia := safeFloat(parts[1], 0)
	if systolic == 0 {
		systolic = sys
	}
	if diastolic == 0 {
		diastolic = dia
	}
	return systolic, diastolic
}

// safeFloat coerces an arbitrary JSON scalar to a float64, substituting the
// default on any parse failure or absence.
func safeFloat(value any, def float64) float64 {
	switch v := value.(type) {
	case nil:
		return def
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return def
		}
		switch strings.ToLower(s) {
		case "nan", "none", "null", "n/a":
			return def
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// encodeSex maps the sex field to its fixed encoding: male=1, female=0.
// Unrecognized values take the 0 encoding.
func encodeSex(value any) float64 {
	s, ok := value.(string)
	if !ok {
		return safeFloat(value, 0)
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "m") {
		return 1
	}
	return 0
}

// encodeFlag maps a boolean-like field to 1/0: yes=1, no=0. Unrecognized
// values take the negative encoding.
func encodeFlag(value any) float64 {
	switch v := value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "y", "true", "1":
			return 1
		}
		return 0
	default:
		if safeFloat(value, 0) >= 1 {
			return 1
		}
		return 0
	}
}

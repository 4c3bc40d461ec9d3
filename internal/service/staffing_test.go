package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/readmit-risk-server/internal/domain"
)

func testStaffingConfig() domain.StaffingConfig {
	return domain.StaffingConfig{
		ReadmissionRates:  domain.TierRates{High: 0.70, Medium: 0.45, Low: 0.15},
		TierMultipliers:   domain.TierRates{High: 2.0, Medium: 1.5, Low: 1.0},
		BaseNurseHours:    2.0,
		BaseBeds:          1.0,
		HighRiskPerDoctor: 5,
	}
}

func cohortOf(tiers ...domain.RiskTier) []domain.CohortMember {
	cohort := make([]domain.CohortMember, len(tiers))
	for i, tier := range tiers {
		cohort[i] = domain.CohortMember{Tier: tier, Condition: domain.ConditionDiabetes}
	}
	return cohort
}

func TestStaffingSimulator_EmptyCohort(t *testing.T) {
	s := NewStaffingSimulator(testStaffingConfig(), newTestLogger())

	summary := s.Simulate(nil, "2026-09-01", "ward-3")

	assert.Zero(t, summary.TotalPatients)
	assert.Zero(t, summary.ExpectedReadmissions)
	assert.Zero(t, summary.RequiredDoctors)
	assert.Zero(t, summary.RequiredNurseHours)
	assert.Zero(t, summary.RequiredBeds)
	assert.Equal(t, "2026-09-01", summary.SimulationDate)
	assert.Equal(t, "ward-3", summary.Unit)
}

func TestStaffingSimulator_AllHighScalesLinearly(t *testing.T) {
	s := NewStaffingSimulator(testStaffingConfig(), newTestLogger())

	single := s.Simulate(cohortOf(domain.TierHigh), "", "")
	quad := s.Simulate(cohortOf(domain.TierHigh, domain.TierHigh, domain.TierHigh, domain.TierHigh), "", "")

	assert.Equal(t, 4*single.RequiredNurseHours, quad.RequiredNurseHours)
	assert.Equal(t, 4*single.RequiredBeds, quad.RequiredBeds)
	assert.InDelta(t, 4*single.ExpectedReadmissions, quad.ExpectedReadmissions, 1e-9)
}

func TestStaffingSimulator_MixedCohort(t *testing.T) {
	s := NewStaffingSimulator(testStaffingConfig(), newTestLogger())

	summary := s.Simulate(cohortOf(domain.TierHigh, domain.TierHigh, domain.TierMedium, domain.TierLow), "", "")

	assert.Equal(t, 4, summary.TotalPatients)
	assert.Equal(t, 2, summary.TierCounts[domain.TierHigh])
	assert.Equal(t, 1, summary.TierCounts[domain.TierMedium])
	assert.Equal(t, 1, summary.TierCounts[domain.TierLow])

	// nurse hours: 2.0*(2.0+2.0+1.5+1.0) = 13
	assert.InDelta(t, 13.0, summary.RequiredNurseHours, 1e-9)
	// beds: ceil(1.0*(2.0+2.0+1.5+1.0)) = ceil(6.5) = 7
	assert.Equal(t, 7, summary.RequiredBeds)
	// expected readmissions: 0.70+0.70+0.45+0.15 = 2.0
	assert.InDelta(t, 2.0, summary.ExpectedReadmissions, 1e-9)
	// 2 high-risk patients, 5 per doctor, floor of one doctor on duty
	assert.Equal(t, 1, summary.RequiredDoctors)
}

func TestStaffingSimulator_DoctorCoverage(t *testing.T) {
	s := NewStaffingSimulator(testStaffingConfig(), newTestLogger())

	tests := []struct {
		name        string
		highCount   int
		wantDoctors int
	}{
		{"No high-risk still staffs one doctor", 0, 1},
		{"Exactly one doctor's load", 5, 1},
		{"One over the load", 6, 2},
		{"Two full loads", 10, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiers := make([]domain.RiskTier, 0, tt.highCount+1)
			for i := 0; i < tt.highCount; i++ {
				tiers = append(tiers, domain.TierHigh)
			}
			tiers = append(tiers, domain.TierLow)

			summary := s.Simulate(cohortOf(tiers...), "", "")
			assert.Equal(t, tt.wantDoctors, summary.RequiredDoctors)
		})
	}
}

func TestStaffingSimulator_HigherTiersDemandMore(t *testing.T) {
	s := NewStaffingSimulator(testStaffingConfig(), newTestLogger())

	high := s.Simulate(cohortOf(domain.TierHigh, domain.TierHigh, domain.TierMedium), "", "")
	low := s.Simulate(cohortOf(domain.TierLow, domain.TierLow, domain.TierLow), "", "")

	assert.Greater(t, high.RequiredNurseHours, low.RequiredNurseHours)
	assert.Greater(t, high.RequiredBeds, low.RequiredBeds)
	assert.Greater(t, high.ExpectedReadmissions, low.ExpectedReadmissions)
}

func TestStaffingSimulator_InvalidTierIgnored(t *testing.T) {
	s := NewStaffingSimulator(testStaffingConfig(), newTestLogger())

	cohort := []domain.CohortMember{
		{Tier: domain.TierLow},
		{Tier: domain.RiskTier("Critical")},
	}
	summary := s.Simulate(cohort, "", "")

	assert.Equal(t, 2, summary.TotalPatients)
	assert.Equal(t, 1, summary.TierCounts[domain.TierLow])
	assert.InDelta(t, 2.0, summary.RequiredNurseHours, 1e-9)
	assert.Equal(t, 1, summary.RequiredBeds)
}

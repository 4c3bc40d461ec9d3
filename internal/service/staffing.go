package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/domain"
)

// StaffingSimulator projects resource demand for a cohort of classified
// patients. All outputs are recomputed from scratch on every call; the
// simulator holds no state between cohorts.
type StaffingSimulator struct {
	cfg domain.StaffingConfig
	log *logrus.Logger
}

// NewStaffingSimulator builds a simulator with the deployment's staffing
// policy constants.
func NewStaffingSimulator(cfg domain.StaffingConfig, logger *logrus.Logger) *StaffingSimulator {
	return &StaffingSimulator{cfg: cfg, log: logger}
}

// Simulate aggregates a cohort into expected readmissions and required
// doctors, nurse hours, and beds. An empty cohort yields all zeros.
// Members with an invalid tier are counted in the total but contribute
// nothing to demand.
func (s *StaffingSimulator) Simulate(cohort []domain.CohortMember, simulationDate, unit string) *domain.CohortSummary {
	summary := &domain.CohortSummary{
		TotalPatients:  len(cohort),
		TierCounts:     map[domain.RiskTier]int{},
		SimulationDate: simulationDate,
		Unit:           unit,
	}
	if len(cohort) == 0 {
		return summary
	}

	var nurseHours, beds, expected float64
	for _, member := range cohort {
		if !member.Tier.IsValid() {
			continue
		}
		summary.TierCounts[member.Tier]++

		mult := s.cfg.TierMultipliers.ForTier(member.Tier)
		nurseHours += s.cfg.BaseNurseHours * mult
		beds += s.cfg.BaseBeds * mult
		expected += s.cfg.ReadmissionRates.ForTier(member.Tier)
	}

	summary.ExpectedReadmissions = expected
	summary.RequiredNurseHours = nurseHours
	summary.RequiredBeds = int(math.Ceil(beds))

	if highCount := summary.TierCounts[domain.TierHigh]; s.cfg.HighRiskPerDoctor > 0 {
		doctors := int(math.Ceil(float64(highCount) / float64(s.cfg.HighRiskPerDoctor)))
		if doctors < 1 {
			doctors = 1
		}
		summary.RequiredDoctors = doctors
	} else {
		summary.RequiredDoctors = 1
	}

	s.log.WithFields(logrus.Fields{
		"total_patients":        summary.TotalPatients,
		"high":                  summary.TierCounts[domain.TierHigh],
		"medium":                summary.TierCounts[domain.TierMedium],
		"low":                   summary.TierCounts[domain.TierLow],
		"expected_readmissions": summary.ExpectedReadmissions,
		"required_doctors":      summary.RequiredDoctors,
		"required_nurse_hours":  summary.RequiredNurseHours,
		"required_beds":         summary.RequiredBeds,
	}).Info("Staffing simulation completed")

	return summary
}

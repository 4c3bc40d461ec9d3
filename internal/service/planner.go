package service

import (
	"fmt"

	"github.com/readmit-risk-server/internal/domain"
)

// followUpPolicy maps a risk tier to its discharge follow-up schedule and
// contact channel. The mapping is total over the tier enum.
var followUpPolicy = map[domain.RiskTier]domain.FollowUpPlan{
	domain.TierHigh: {
		Timing:  "within 3 days",
		Channel: "phone call + SMS/app reminder",
	},
	domain.TierMedium: {
		Timing:  "within 7 days",
		Channel: "SMS/app reminder",
	},
	domain.TierLow: {
		Timing:  "within 14 days",
		Channel: "email / portal message",
	},
}

// PlanFollowUp produces the follow-up plan for a classified assessment.
// Timing and channel depend only on the tier; the rationale restates the
// tier and condition for the discharge note.
func PlanFollowUp(tier domain.RiskTier, condition domain.ConditionType) domain.FollowUpPlan {
	plan, ok := followUpPolicy[tier]
	if !ok {
		plan = followUpPolicy[domain.TierLow]
	}
	plan.Rationale = fmt.Sprintf("%s risk %s patient.", tier, condition.Label())
	return plan
}

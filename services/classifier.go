package services

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"mission-reward-system/config"
	"mission-reward-system/models"
)

// Classification is the derived policy view of one submission
type Classification struct {
	AutoApprovalEligible bool                      `json:"auto_approval_eligible"`
	Priority             models.SubmissionPriority `json:"priority"`
}

// EligibilityClassifier derives autoApprovalEligible and the priority tier
// from submission content, verification results and policy thresholds.
// Pure and deterministic: the same submission at the same instant always
// classifies identically.
type EligibilityClassifier struct {
	Policy     *config.Policy
	Calculator *RewardCalculator
}

func NewEligibilityClassifier(policy *config.Policy) *EligibilityClassifier {
	return &EligibilityClassifier{Policy: policy, Calculator: NewRewardCalculator(policy)}
}

// Classify evaluates one submission. attendanceStreak feeds the proposed
// reward used by the large-payout priority rule.
func (c *EligibilityClassifier) Classify(sub *models.MissionSubmission, attendanceStreak int, now time.Time) Classification {
	return Classification{
		AutoApprovalEligible: c.eligible(sub),
		Priority:             c.priority(sub, attendanceStreak, now),
	}
}

func (c *EligibilityClassifier) eligible(sub *models.MissionSubmission) bool {
	// Any captured verification failure keeps the submission in the
	// manual-review queue.
	if sub.VerificationNote != "" {
		return false
	}

	switch sub.MissionType {
	case models.MissionTypeAttendance:
		proof := sub.Proof.Attendance
		if proof == nil {
			return false
		}
		if proof.Method == "qr" {
			return sub.StoreLocationID != nil
		}
		return sub.GeofenceVerdict == models.VerdictAccurate &&
			!sub.LowConfidence &&
			proof.Accuracy <= c.Policy.AccuracyThresholdM

	case models.MissionTypeReview:
		proof := sub.Proof.Review
		return proof != nil &&
			utf8.RuneCountInString(strings.TrimSpace(proof.Text)) >= c.Policy.MinReviewTextLen &&
			wellFormedURL(proof.URL)

	case models.MissionTypeSNS:
		proof := sub.Proof.SNS
		return proof != nil &&
			utf8.RuneCountInString(strings.TrimSpace(proof.Caption)) >= c.Policy.MinSNSCaptionLen &&
			wellFormedURL(proof.URL)

	default:
		// Challenge and referral always take a human decision.
		return false
	}
}

func (c *EligibilityClassifier) priority(sub *models.MissionSubmission, attendanceStreak int, now time.Time) models.SubmissionPriority {
	p := models.PriorityLow

	proposed := c.Calculator.Compute(sub, attendanceStreak)
	switch {
	case proposed.RewardAmount > c.Policy.LargePayoutThreshold:
		p = models.PriorityHigh
	case now.Sub(sub.SubmittedAt) > c.Policy.StaleAfter:
		// Aging boosts priority so nothing starves in the queue.
		p = models.PriorityHigh
	case sub.GeofenceVerdict == models.VerdictSuspicious:
		p = models.PriorityMedium
	}

	// Low-confidence GPS fixes are still acceptable but drop one tier.
	if sub.LowConfidence && sub.MissionType == models.MissionTypeAttendance {
		p = demote(p)
	}
	return p
}

func demote(p models.SubmissionPriority) models.SubmissionPriority {
	switch p {
	case models.PriorityHigh:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func wellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

package services

import (
	"mission-reward-system/config"
	"mission-reward-system/models"
)

// RewardProposal is what the calculator suggests for an approval. It is
// advisory: the operator may override the amount at decide time, bounded
// by the same ceilings.
type RewardProposal struct {
	RewardAmount     int64 `json:"reward_amount"`
	ExperiencePoints int64 `json:"experience_points"`
}

// RewardCalculator computes payout and XP for an approved submission.
// Pure: it never mutates state, only proposes values.
type RewardCalculator struct {
	Policy *config.Policy
}

func NewRewardCalculator(policy *config.Policy) *RewardCalculator {
	return &RewardCalculator{Policy: policy}
}

// Compute derives the proposed payout from the per-type base plus any
// bonus (referral tier, attendance streak), clamped so the total never
// exceeds ceiling+bonusCeiling regardless of input.
func (r *RewardCalculator) Compute(sub *models.MissionSubmission, attendanceStreak int) RewardProposal {
	base := r.Policy.BaseReward(sub.MissionType)
	bonus := int64(0)

	switch sub.MissionType {
	case models.MissionTypeReferral:
		if sub.Proof.Referral != nil {
			bonus = r.Policy.TierBonus(sub.Proof.Referral.Tier)
		}
	case models.MissionTypeAttendance:
		if attendanceStreak > 0 {
			bonus = r.Policy.StreakBonusPerDay * int64(attendanceStreak)
		}
	}

	if maxBonus := r.Policy.BonusCeiling(sub.MissionType); bonus > maxBonus {
		bonus = maxBonus
	}
	amount := base + bonus
	if max := r.Policy.Ceiling(sub.MissionType) + r.Policy.BonusCeiling(sub.MissionType); amount > max {
		amount = max
	}
	if amount < 0 {
		amount = 0
	}

	return RewardProposal{
		RewardAmount:     amount,
		ExperiencePoints: r.Policy.XPWeight(sub.MissionType),
	}
}

// ClampOverride bounds an operator-supplied amount by the same per-type
// ceilings the calculator honors.
func (r *RewardCalculator) ClampOverride(t models.MissionType, amount int64) int64 {
	if amount < 0 {
		return 0
	}
	if max := r.Policy.Ceiling(t) + r.Policy.BonusCeiling(t); amount > max {
		return max
	}
	return amount
}

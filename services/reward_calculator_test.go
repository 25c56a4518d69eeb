package services

import (
	"testing"

	"mission-reward-system/config"
	"mission-reward-system/models"

	"github.com/stretchr/testify/require"
)

func referralSubmission(tier models.ReferralTier) *models.MissionSubmission {
	return &models.MissionSubmission{
		MissionType: models.MissionTypeReferral,
		Proof: models.ProofData{
			Referral: &models.ReferralProof{
				ReferredUserID:   "friend-1",
				Registered:       true,
				PaymentConfirmed: true,
				Tier:             tier,
			},
		},
	}
}

func TestComputeReferralTierBonusMonotone(t *testing.T) {
	calc := NewRewardCalculator(config.LoadPolicy())

	tiers := []models.ReferralTier{models.TierBronze, models.TierSilver, models.TierGold, models.TierPlatinum}
	var previous int64
	for _, tier := range tiers {
		proposal := calc.Compute(referralSubmission(tier), 0)
		require.Greater(t, proposal.RewardAmount, previous, "tier %s", tier)
		previous = proposal.RewardAmount
	}
}

func TestComputeNeverExceedsCeiling(t *testing.T) {
	policy := config.LoadPolicy()
	calc := NewRewardCalculator(policy)

	sub := &models.MissionSubmission{
		MissionType: models.MissionTypeAttendance,
		Proof:       models.ProofData{Attendance: &models.AttendanceProof{Method: "gps"}},
	}

	// An absurd streak must still clamp to ceiling + bonus ceiling
	proposal := calc.Compute(sub, 10000)
	max := policy.Ceiling(models.MissionTypeAttendance) + policy.BonusCeiling(models.MissionTypeAttendance)
	require.LessOrEqual(t, proposal.RewardAmount, max)
	require.GreaterOrEqual(t, proposal.RewardAmount, int64(0))
}

func TestComputeStreakBonusGrowsUntilClamped(t *testing.T) {
	calc := NewRewardCalculator(config.LoadPolicy())

	sub := &models.MissionSubmission{
		MissionType: models.MissionTypeAttendance,
		Proof:       models.ProofData{Attendance: &models.AttendanceProof{Method: "gps"}},
	}

	none := calc.Compute(sub, 0)
	five := calc.Compute(sub, 5)
	require.Greater(t, five.RewardAmount, none.RewardAmount)
}

func TestComputeXPFollowsMissionType(t *testing.T) {
	policy := config.LoadPolicy()
	calc := NewRewardCalculator(policy)

	proposal := calc.Compute(referralSubmission(models.TierBronze), 0)
	require.Equal(t, policy.XPWeight(models.MissionTypeReferral), proposal.ExperiencePoints)
}

func TestClampOverride(t *testing.T) {
	policy := config.LoadPolicy()
	calc := NewRewardCalculator(policy)

	max := policy.Ceiling(models.MissionTypeReview) + policy.BonusCeiling(models.MissionTypeReview)
	require.Equal(t, max, calc.ClampOverride(models.MissionTypeReview, max+999999))
	require.Equal(t, int64(0), calc.ClampOverride(models.MissionTypeReview, -100))
	require.Equal(t, int64(12345), calc.ClampOverride(models.MissionTypeReview, 12345))
}

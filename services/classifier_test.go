package services

import (
	"testing"
	"time"

	"mission-reward-system/config"
	"mission-reward-system/models"

	"github.com/stretchr/testify/require"
)

func verifiedAttendance() *models.MissionSubmission {
	storeID := "loc-1"
	return &models.MissionSubmission{
		MissionType: models.MissionTypeAttendance,
		Proof: models.ProofData{
			Attendance: &models.AttendanceProof{Method: "gps", Latitude: 37.5, Longitude: 127.0, Accuracy: 5},
		},
		StoreLocationID: &storeID,
		GeofenceVerdict: models.VerdictAccurate,
		SubmittedAt:     time.Now(),
	}
}

func TestClassifyVerifiedAttendanceIsAutoEligible(t *testing.T) {
	classifier := NewEligibilityClassifier(config.LoadPolicy())

	cls := classifier.Classify(verifiedAttendance(), 0, time.Now())
	require.True(t, cls.AutoApprovalEligible)
	require.Equal(t, models.PriorityLow, cls.Priority)
}

func TestClassifyFailedVerificationNeverEligible(t *testing.T) {
	classifier := NewEligibilityClassifier(config.LoadPolicy())

	sub := verifiedAttendance()
	sub.VerificationNote = "too far (850m)"
	cls := classifier.Classify(sub, 0, time.Now())
	require.False(t, cls.AutoApprovalEligible)
}

func TestClassifySuspiciousVerdictGetsMediumPriority(t *testing.T) {
	classifier := NewEligibilityClassifier(config.LoadPolicy())

	sub := verifiedAttendance()
	sub.GeofenceVerdict = models.VerdictSuspicious
	cls := classifier.Classify(sub, 0, time.Now())
	require.False(t, cls.AutoApprovalEligible)
	require.Equal(t, models.PriorityMedium, cls.Priority)
}

func TestClassifyLowConfidenceDemotedOneTier(t *testing.T) {
	classifier := NewEligibilityClassifier(config.LoadPolicy())

	sub := verifiedAttendance()
	sub.GeofenceVerdict = models.VerdictSuspicious
	sub.LowConfidence = true
	cls := classifier.Classify(sub, 0, time.Now())
	require.Equal(t, models.PriorityLow, cls.Priority)
	require.False(t, cls.AutoApprovalEligible)
}

func TestClassifyAgingBoostsToHigh(t *testing.T) {
	policy := config.LoadPolicy()
	classifier := NewEligibilityClassifier(policy)

	sub := verifiedAttendance()
	sub.SubmittedAt = time.Now().Add(-policy.StaleAfter - time.Hour)
	cls := classifier.Classify(sub, 0, time.Now())
	require.Equal(t, models.PriorityHigh, cls.Priority)
}

func TestClassifyLargePayoutReferralIsHigh(t *testing.T) {
	classifier := NewEligibilityClassifier(config.LoadPolicy())

	platinum := referralSubmission(models.TierPlatinum)
	platinum.SubmittedAt = time.Now()
	cls := classifier.Classify(platinum, 0, time.Now())
	require.Equal(t, models.PriorityHigh, cls.Priority)
	// Referrals always take a human decision
	require.False(t, cls.AutoApprovalEligible)

	bronze := referralSubmission(models.TierBronze)
	bronze.SubmittedAt = time.Now()
	cls = classifier.Classify(bronze, 0, time.Now())
	require.Equal(t, models.PriorityLow, cls.Priority)
}

func TestClassifyReviewCompleteness(t *testing.T) {
	classifier := NewEligibilityClassifier(config.LoadPolicy())
	now := time.Now()

	sub := &models.MissionSubmission{
		MissionType: models.MissionTypeReview,
		SubmittedAt: now,
		Proof: models.ProofData{Review: &models.ReviewProof{
			Platform: "naver",
			URL:      "https://blog.naver.com/review/123",
			Rating:   5,
			Text:     "강사님이 친절하고 코스 설명이 자세해서 연수받기 정말 좋았습니다. 추천해요!",
		}},
	}
	require.True(t, classifier.Classify(sub, 0, now).AutoApprovalEligible)

	short := *sub
	short.Proof = models.ProofData{Review: &models.ReviewProof{URL: "https://blog.naver.com/x", Text: "좋아요"}}
	require.False(t, classifier.Classify(&short, 0, now).AutoApprovalEligible)

	noURL := *sub
	noURL.Proof = models.ProofData{Review: &models.ReviewProof{URL: "not-a-url", Text: sub.Proof.Review.Text}}
	require.False(t, classifier.Classify(&noURL, 0, now).AutoApprovalEligible)
}

func TestClassifyDeterministic(t *testing.T) {
	classifier := NewEligibilityClassifier(config.LoadPolicy())
	sub := verifiedAttendance()
	now := time.Now()

	first := classifier.Classify(sub, 3, now)
	second := classifier.Classify(sub, 3, now)
	require.Equal(t, first, second)
}

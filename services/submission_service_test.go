package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"mission-reward-system/config"
	"mission-reward-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestService wires the pipeline against a per-test in-memory database
func newTestService(t *testing.T) *SubmissionService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	// sqlite allows a single writer; funnel everything through one
	// connection so concurrent batch decisions queue instead of erroring
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.MissionSubmission{},
		&models.StoreLocation{},
		&models.Payback{},
		&models.UserProgress{},
	))
	return NewSubmissionService(db, NewCacheService(), config.LoadPolicy())
}

func seedLocation(t *testing.T, s *SubmissionService, radius float64, active bool) *models.StoreLocation {
	t.Helper()
	location := &models.StoreLocation{
		ID:           uuid.NewString(),
		Name:         "Gangnam Branch",
		Slug:         "gangnam-branch",
		Latitude:     37.5325,
		Longitude:    126.9035,
		Radius:       radius,
		QRSecretSeed: "test-seed",
		IsActive:     active,
	}
	require.NoError(t, s.DB.Create(location).Error)
	return location
}

func submitReview(t *testing.T, s *SubmissionService, userID string) *models.MissionSubmission {
	t.Helper()
	sub, err := s.Submit(SubmitRequest{
		UserID:      userID,
		MissionID:   "mission-review",
		MissionType: models.MissionTypeReview,
		Proof: models.ProofData{Review: &models.ReviewProof{
			Platform: "naver",
			URL:      "https://blog.naver.com/review/123",
			Rating:   5,
			Text:     "강사님이 친절하고 코스 설명이 자세해서 연수받기 정말 좋았습니다. 추천해요!",
		}},
	})
	require.NoError(t, err)
	return sub
}

func TestSubmitGPSAttendanceAccepted(t *testing.T) {
	s := newTestService(t)
	location := seedLocation(t, s, 50, true)

	sub, err := s.Submit(SubmitRequest{
		UserID:      "user-1",
		MissionID:   "mission-att",
		MissionType: models.MissionTypeAttendance,
		Proof: models.ProofData{Attendance: &models.AttendanceProof{
			Method: "gps", Latitude: 37.5326, Longitude: 126.9036, Accuracy: 5, Timestamp: time.Now(),
		}},
		StoreLocationID: location.ID,
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, sub.Status)
	require.Equal(t, models.VerdictAccurate, sub.GeofenceVerdict)
	require.True(t, sub.AutoApprovalEligible)
	require.Empty(t, sub.VerificationNote)
	require.NotNil(t, sub.StoreLocationID)
	require.Zero(t, sub.RewardAmount)
}

func TestSubmitFarClaimCreatedWithFailureNote(t *testing.T) {
	s := newTestService(t)
	location := seedLocation(t, s, 50, true)

	// ~850m away — still created, never silently dropped
	sub, err := s.Submit(SubmitRequest{
		UserID:      "user-1",
		MissionID:   "mission-att",
		MissionType: models.MissionTypeAttendance,
		Proof: models.ProofData{Attendance: &models.AttendanceProof{
			Method: "gps", Latitude: 37.54014, Longitude: 126.9035, Accuracy: 10, Timestamp: time.Now(),
		}},
		StoreLocationID: location.ID,
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, sub.Status)
	require.Contains(t, sub.VerificationNote, "too far (")
	require.False(t, sub.AutoApprovalEligible)

	// An operator may still approve with manual judgement
	decided, err := s.Decide(sub.ID, models.SubmissionStatusApproved, "staff-1", "verified by phone", nil)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, decided.Status)
}

func TestSubmitQRAttendance(t *testing.T) {
	s := newTestService(t)
	location := seedLocation(t, s, 50, true)

	token := IssueToken(location, time.Now())
	sub, err := s.Submit(SubmitRequest{
		UserID:      "user-1",
		MissionID:   "mission-att",
		MissionType: models.MissionTypeAttendance,
		Proof: models.ProofData{Attendance: &models.AttendanceProof{
			Method: "qr", Token: token, Timestamp: time.Now(),
		}},
	})
	require.NoError(t, err)
	require.True(t, sub.AutoApprovalEligible)
	require.Equal(t, location.ID, *sub.StoreLocationID)

	// Replaying the same token within the window is flagged
	replay, err := s.Submit(SubmitRequest{
		UserID:      "user-2",
		MissionID:   "mission-att",
		MissionType: models.MissionTypeAttendance,
		Proof: models.ProofData{Attendance: &models.AttendanceProof{
			Method: "qr", Token: token, Timestamp: time.Now(),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, "token already used", replay.VerificationNote)
	require.False(t, replay.AutoApprovalEligible)
}

func TestSubmitQRTokenSurvivesFailedCreate(t *testing.T) {
	s := newTestService(t)
	location := seedLocation(t, s, 50, true)
	token := IssueToken(location, time.Now())

	qrRequest := func(userID string) SubmitRequest {
		return SubmitRequest{
			UserID:      userID,
			MissionID:   "mission-att",
			MissionType: models.MissionTypeAttendance,
			Proof: models.ProofData{Attendance: &models.AttendanceProof{
				Method: "qr", Token: token, Timestamp: time.Now(),
			}},
		}
	}

	// Break the insert path: the submission is lost, the token must not burn
	require.NoError(t, s.DB.Migrator().DropTable(&models.MissionSubmission{}))
	_, err := s.Submit(qrRequest("user-1"))
	require.Error(t, err)

	// With the table back, the same token still checks the user in
	require.NoError(t, s.DB.AutoMigrate(&models.MissionSubmission{}))
	sub, err := s.Submit(qrRequest("user-1"))
	require.NoError(t, err)
	require.Empty(t, sub.VerificationNote)
	require.True(t, sub.AutoApprovalEligible)
}

func TestSubmitExpiredTokenCapturedOnSubmission(t *testing.T) {
	s := newTestService(t)
	location := seedLocation(t, s, 50, true)

	token := IssueToken(location, time.Now().Add(-6*time.Minute))
	sub, err := s.Submit(SubmitRequest{
		UserID:      "user-1",
		MissionID:   "mission-att",
		MissionType: models.MissionTypeAttendance,
		Proof: models.ProofData{Attendance: &models.AttendanceProof{
			Method: "qr", Token: token, Timestamp: time.Now(),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, ErrExpiredToken.Error(), sub.VerificationNote)
	require.False(t, sub.AutoApprovalEligible)
}

func TestSubmitReferralWithoutPaymentNeedsVerification(t *testing.T) {
	s := newTestService(t)

	sub, err := s.Submit(SubmitRequest{
		UserID:      "user-1",
		MissionID:   "mission-ref",
		MissionType: models.MissionTypeReferral,
		Proof: models.ProofData{Referral: &models.ReferralProof{
			ReferredUserID: "friend-1", Registered: true, PaymentConfirmed: false, Tier: models.TierGold,
		}},
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusVerificationNeeded, sub.Status)

	// Operators resolve verification_needed directly
	decided, err := s.Decide(sub.ID, models.SubmissionStatusRejected, "staff-1", "payment never confirmed", nil)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRejected, decided.Status)
}

func TestSubmitProofMismatchRejected(t *testing.T) {
	s := newTestService(t)

	_, err := s.Submit(SubmitRequest{
		UserID:      "user-1",
		MissionID:   "mission-att",
		MissionType: models.MissionTypeAttendance,
		Proof:       models.ProofData{Review: &models.ReviewProof{URL: "https://x.com", Text: "text"}},
	})
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestDecideApprovalStampsRewardAndLedger(t *testing.T) {
	s := newTestService(t)
	sub := submitReview(t, s, "user-1")

	decided, err := s.Decide(sub.ID, models.SubmissionStatusApproved, "staff-1", "looks good", nil)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, decided.Status)
	require.Equal(t, s.Policy.BaseReward(models.MissionTypeReview), decided.RewardAmount)
	require.NotNil(t, decided.ReviewedAt)
	require.Equal(t, "staff-1", *decided.ReviewedBy)

	var payback models.Payback
	require.NoError(t, s.DB.First(&payback, "submission_id = ?", sub.ID).Error)
	require.Equal(t, decided.RewardAmount, payback.Amount)
	require.Equal(t, models.PaybackStatusPending, payback.Status)

	var prog models.UserProgress
	require.NoError(t, s.DB.First(&prog, "external_user_id = ?", "user-1").Error)
	require.Equal(t, int64(1), prog.TotalApproved)
	require.Equal(t, decided.RewardAmount, prog.TotalPayback)
	require.Equal(t, decided.ExperiencePoints, prog.TotalXP)
}

func TestDecideSecondCallReturnsAlreadyDecided(t *testing.T) {
	s := newTestService(t)
	sub := submitReview(t, s, "user-1")

	first, err := s.Decide(sub.ID, models.SubmissionStatusApproved, "staff-1", "ok", nil)
	require.NoError(t, err)

	_, err = s.Decide(sub.ID, models.SubmissionStatusRejected, "staff-2", "changed my mind", nil)
	require.ErrorIs(t, err, ErrAlreadyDecided)

	// The original decision is untouched
	current, err := s.Get(sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, current.Status)
	require.Equal(t, first.RewardAmount, current.RewardAmount)
	require.Equal(t, "staff-1", *current.ReviewedBy)
}

func TestDecideConcurrentCallsOneWinner(t *testing.T) {
	s := newTestService(t)
	sub := submitReview(t, s, "user-1")

	// Two operators race on the same submission: the conditional update
	// lets exactly one through, the other gets ErrAlreadyDecided.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Decide(sub.ID, models.SubmissionStatusApproved, fmt.Sprintf("staff-%d", n), "ok", nil)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var failed []error
	for err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	require.Len(t, failed, 1)
	require.ErrorIs(t, failed[0], ErrAlreadyDecided)

	// The ledger saw exactly one approval
	var count int64
	s.DB.Model(&models.Payback{}).Where("submission_id = ?", sub.ID).Count(&count)
	require.EqualValues(t, 1, count)

	current, err := s.Get(sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, current.Status)
}

func TestDecideRejectionRequiresReason(t *testing.T) {
	s := newTestService(t)
	sub := submitReview(t, s, "user-1")

	_, err := s.Decide(sub.ID, models.SubmissionStatusRejected, "staff-1", "   ", nil)
	require.ErrorIs(t, err, ErrMissingRejectionReason)

	// Submission untouched
	current, err := s.Get(sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, current.Status)
	require.Nil(t, current.ReviewedAt)
}

func TestDecideRejectionZeroesReward(t *testing.T) {
	s := newTestService(t)
	sub := submitReview(t, s, "user-1")

	decided, err := s.Decide(sub.ID, models.SubmissionStatusRejected, "staff-1", "screenshot does not match", nil)
	require.NoError(t, err)
	require.Zero(t, decided.RewardAmount)
	require.Zero(t, decided.ExperiencePoints)

	var count int64
	s.DB.Model(&models.Payback{}).Where("submission_id = ?", sub.ID).Count(&count)
	require.Zero(t, count)
}

func TestDecideRewardOverrideClamped(t *testing.T) {
	s := newTestService(t)
	sub := submitReview(t, s, "user-1")

	override := int64(9999999)
	decided, err := s.Decide(sub.ID, models.SubmissionStatusApproved, "staff-1", "bonus payout", &override)
	require.NoError(t, err)
	max := s.Policy.Ceiling(models.MissionTypeReview) + s.Policy.BonusCeiling(models.MissionTypeReview)
	require.Equal(t, max, decided.RewardAmount)
}

func TestDecideInvalidInputs(t *testing.T) {
	s := newTestService(t)
	sub := submitReview(t, s, "user-1")

	_, err := s.Decide(sub.ID, models.SubmissionStatusPending, "staff-1", "", nil)
	require.ErrorIs(t, err, ErrInvalidDecision)

	_, err = s.Decide(uuid.NewString(), models.SubmissionStatusApproved, "staff-1", "", nil)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestListReadsThroughCacheAndDecideInvalidates(t *testing.T) {
	s := newTestService(t)
	sub := submitReview(t, s, "user-1")

	pending, err := s.List(ListFilters{Status: string(models.SubmissionStatusPending)})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = s.Decide(sub.ID, models.SubmissionStatusApproved, "staff-1", "ok", nil)
	require.NoError(t, err)

	// Invalidation means the next read sees the decision immediately
	pending, err = s.List(ListFilters{Status: string(models.SubmissionStatusPending)})
	require.NoError(t, err)
	require.Empty(t, pending)
}

package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mission-reward-system/config"
	"mission-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State-machine precondition failures, returned as typed errors so the
// admin console can show the operator what went wrong.
var (
	ErrSubmissionNotFound     = errors.New("submission not found")
	ErrAlreadyDecided         = errors.New("submission already decided")
	ErrMissingRejectionReason = errors.New("rejection requires a non-empty reason")
	ErrInvalidDecision        = errors.New("decision must be approved or rejected")
	ErrInvalidProof           = errors.New("proof data does not match mission type")
)

// decidableStatuses are the only states Decide may transition from.
// approved and rejected are terminal; verification_needed exists for
// referral submissions awaiting external payment confirmation.
var decidableStatuses = []models.SubmissionStatus{
	models.SubmissionStatusPending,
	models.SubmissionStatusVerificationNeeded,
}

// SubmitRequest carries everything the submission action provides
type SubmitRequest struct {
	UserID          string             `json:"user_id"`
	MissionID       string             `json:"mission_id"`
	MissionType     models.MissionType `json:"mission_type"`
	Proof           models.ProofData   `json:"proof"`
	StoreLocationID string             `json:"store_location_id,omitempty"` // expected target for GPS attendance
}

// SubmissionService owns the submission lifecycle: every status mutation
// goes through Submit or Decide.
type SubmissionService struct {
	DB          *gorm.DB
	Cache       *CacheService
	Policy      *config.Policy
	Geofence    *GeofenceEvaluator
	Classifier  *EligibilityClassifier
	Calculator  *RewardCalculator
	Progression *ProgressionService
}

func NewSubmissionService(db *gorm.DB, cache *CacheService, policy *config.Policy) *SubmissionService {
	return &SubmissionService{
		DB:          db,
		Cache:       cache,
		Policy:      policy,
		Geofence:    NewGeofenceEvaluator(policy),
		Classifier:  NewEligibilityClassifier(policy),
		Calculator:  NewRewardCalculator(policy),
		Progression: NewProgressionService(db),
	}
}

// Submit creates a submission in pending (verification_needed for referral
// claims whose payment is not yet confirmed). Attendance claims run the
// geofence evaluator or token verifier first; a failed verification is
// captured on the submission for the operator, never silently dropped.
func (s *SubmissionService) Submit(req SubmitRequest) (*models.MissionSubmission, error) {
	if err := validateProof(req.MissionType, req.Proof); err != nil {
		return nil, err
	}

	sub := &models.MissionSubmission{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		MissionID:   req.MissionID,
		MissionType: req.MissionType,
		Proof:       req.Proof,
		Status:      models.SubmissionStatusPending,
		SubmittedAt: time.Now(),
	}

	consumedKey := ""
	if req.MissionType == models.MissionTypeAttendance {
		consumedKey = s.verifyAttendance(sub, req.StoreLocationID)
	}

	if req.MissionType == models.MissionTypeReferral && !req.Proof.Referral.PaymentConfirmed {
		sub.Status = models.SubmissionStatusVerificationNeeded
	}

	streak := s.Progression.AttendanceStreak(sub.UserID)
	cls := s.Classifier.Classify(sub, streak, time.Now())
	sub.AutoApprovalEligible = cls.AutoApprovalEligible
	sub.Priority = cls.Priority

	if err := s.DB.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	// The token burns only once the claim is durably on record; a failed
	// insert must not waste the code for the rest of its window.
	if consumedKey != "" {
		s.Cache.Set(consumedKey, true, s.Policy.TokenValidityWindow)
	}

	if err := s.Progression.RecordSubmission(sub.UserID); err != nil {
		log.Printf("⚠️ Failed to bump submission counter for %s: %v", sub.UserID, err)
	}

	s.Cache.Invalidate("submissions:")
	s.Cache.Invalidate("stats:")
	s.Cache.Invalidate("user:" + sub.UserID)

	log.Printf("📥 Submission %s created (%s, status=%s, priority=%s, auto=%t)",
		sub.ID, sub.MissionType, sub.Status, sub.Priority, sub.AutoApprovalEligible)
	return sub, nil
}

// verifyAttendance runs the appropriate verifier and records the outcome
// on the submission. Failures land in VerificationNote so the operator can
// still approve with manual judgement. For a verified QR claim it returns
// the cache key that marks the token consumed, to be set after persistence.
func (s *SubmissionService) verifyAttendance(sub *models.MissionSubmission, expectedLocationID string) string {
	proof := sub.Proof.Attendance

	if proof.Method == "qr" {
		locations, err := s.ActiveLocations()
		if err != nil {
			sub.VerificationNote = fmt.Sprintf("location lookup failed: %v", err)
			return ""
		}
		locationID, err := VerifyToken(proof.Token, time.Now(), locations, s.Policy.TokenValidityWindow)
		if err != nil {
			sub.VerificationNote = err.Error()
			return ""
		}
		// Consumed-token set: a code may only check in one user per window.
		// The caller marks the key once the submission is persisted.
		consumedKey := "qrtoken:consumed:" + proof.Token
		if s.Cache.Has(consumedKey) {
			sub.VerificationNote = "token already used"
			return ""
		}
		sub.StoreLocationID = &locationID
		return consumedKey
	}

	store, err := s.LocationByID(expectedLocationID)
	if err != nil {
		sub.VerificationNote = fmt.Sprintf("unknown store location %q", expectedLocationID)
		return ""
	}

	result := s.Geofence.Evaluate(ReportedLocation{
		Latitude:  proof.Latitude,
		Longitude: proof.Longitude,
		Accuracy:  proof.Accuracy,
	}, store)

	sub.GeofenceVerdict = result.Verdict
	sub.DistanceMeters = &result.DistanceMeters
	sub.LowConfidence = result.LowConfidence
	if !result.Accepted {
		sub.VerificationNote = result.Reason
		return ""
	}
	sub.StoreLocationID = &store.ID
	return ""
}

// Decide applies exactly one operator decision. The status precondition is
// enforced with a conditional update so two concurrent calls on the same
// submission yield one success and one ErrAlreadyDecided — the first
// decision is never overwritten.
func (s *SubmissionService) Decide(id string, decision models.SubmissionStatus, reviewer, comment string, rewardOverride *int64) (*models.MissionSubmission, error) {
	if decision != models.SubmissionStatusApproved && decision != models.SubmissionStatusRejected {
		return nil, ErrInvalidDecision
	}
	if decision == models.SubmissionStatusRejected && strings.TrimSpace(comment) == "" {
		return nil, ErrMissingRejectionReason
	}

	var sub models.MissionSubmission
	if err := s.DB.First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	if sub.Decided() {
		return nil, ErrAlreadyDecided
	}

	now := time.Now()
	reward := int64(0)
	xp := int64(0)
	if decision == models.SubmissionStatusApproved {
		proposal := s.Calculator.Compute(&sub, s.Progression.AttendanceStreak(sub.UserID))
		reward = proposal.RewardAmount
		xp = proposal.ExperiencePoints
		if rewardOverride != nil {
			reward = s.Calculator.ClampOverride(sub.MissionType, *rewardOverride)
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MissionSubmission{}).
			Where("id = ? AND status IN ?", id, decidableStatuses).
			Updates(map[string]interface{}{
				"status":            decision,
				"reviewed_at":       now,
				"reviewed_by":       reviewer,
				"review_comment":    comment,
				"reward_amount":     reward,
				"experience_points": xp,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race: somebody decided first.
			return ErrAlreadyDecided
		}

		if decision == models.SubmissionStatusApproved {
			payback := &models.Payback{
				ID:               uuid.NewString(),
				UserID:           sub.UserID,
				SubmissionID:     sub.ID,
				MissionType:      sub.MissionType,
				Amount:           reward,
				ExperiencePoints: xp,
				Status:           models.PaybackStatusPending,
				ApprovedBy:       reviewer,
			}
			if err := tx.Create(payback).Error; err != nil {
				return fmt.Errorf("failed to create payback record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub.Status = decision
	sub.ReviewedAt = &now
	sub.ReviewedBy = &reviewer
	sub.ReviewComment = &comment
	sub.RewardAmount = reward
	sub.ExperiencePoints = xp

	if decision == models.SubmissionStatusApproved {
		if err := s.Progression.RecordApproval(&sub); err != nil {
			log.Printf("⚠️ Failed to record approval progression for %s: %v", sub.UserID, err)
		}
	}

	s.Cache.Invalidate("submissions:")
	s.Cache.Invalidate("stats:")
	s.Cache.Invalidate("user:" + sub.UserID)
	s.Cache.Invalidate("paybacks:")

	log.Printf("⚖️ Submission %s → %s by %s (reward=%d)", sub.ID, decision, reviewer, reward)
	return &sub, nil
}

// ListFilters narrow the admin review queue. Empty fields match everything.
type ListFilters struct {
	Status      string     `json:"status"`
	MissionType string     `json:"mission_type"`
	Priority    string     `json:"priority"`
	StoreID     string     `json:"store_id"`
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
	AutoOnly    bool       `json:"auto_only"`
}

func (f ListFilters) cacheKey() string {
	from, to := "", ""
	if f.From != nil {
		from = f.From.UTC().Format(time.RFC3339)
	}
	if f.To != nil {
		to = f.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("submissions:%s:%s:%s:%s:%s:%s:%t",
		f.Status, f.MissionType, f.Priority, f.StoreID, from, to, f.AutoOnly)
}

// List returns submissions matching the filters, read through the cache.
func (s *SubmissionService) List(f ListFilters) ([]models.MissionSubmission, error) {
	value, err := s.Cache.Get(f.cacheKey(), s.Policy.ListTTL, func() (interface{}, error) {
		query := s.DB.Order("submitted_at DESC")
		if f.Status != "" {
			query = query.Where("status = ?", f.Status)
		}
		if f.MissionType != "" {
			query = query.Where("mission_type = ?", f.MissionType)
		}
		if f.Priority != "" {
			query = query.Where("priority = ?", f.Priority)
		}
		if f.StoreID != "" {
			query = query.Where("store_location_id = ?", f.StoreID)
		}
		if f.From != nil {
			query = query.Where("submitted_at >= ?", *f.From)
		}
		if f.To != nil {
			query = query.Where("submitted_at <= ?", *f.To)
		}
		if f.AutoOnly {
			query = query.Where("auto_approval_eligible = ?", true)
		}
		var subs []models.MissionSubmission
		if err := query.Find(&subs).Error; err != nil {
			return nil, err
		}
		return subs, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]models.MissionSubmission), nil
}

// Get returns one submission by id
func (s *SubmissionService) Get(id string) (*models.MissionSubmission, error) {
	var sub models.MissionSubmission
	if err := s.DB.First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// ActiveLocations returns all active store locations through the cache
func (s *SubmissionService) ActiveLocations() ([]models.StoreLocation, error) {
	value, err := s.Cache.Get("locations:active", s.Policy.LocationTTL, func() (interface{}, error) {
		var locations []models.StoreLocation
		if err := s.DB.Where("is_active = ?", true).Find(&locations).Error; err != nil {
			return nil, err
		}
		return locations, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]models.StoreLocation), nil
}

// LocationByID returns one store location through the cache
func (s *SubmissionService) LocationByID(id string) (*models.StoreLocation, error) {
	value, err := s.Cache.Get("locations:id:"+id, s.Policy.LocationTTL, func() (interface{}, error) {
		var location models.StoreLocation
		if err := s.DB.First(&location, "id = ?", id).Error; err != nil {
			return nil, err
		}
		return &location, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.StoreLocation), nil
}

// validateProof checks that exactly the variant matching the mission type
// is populated, so optional-field checks never leak into the rest of the
// pipeline.
func validateProof(t models.MissionType, p models.ProofData) error {
	switch t {
	case models.MissionTypeAttendance:
		if p.Attendance == nil {
			return ErrInvalidProof
		}
		if p.Attendance.Method != "gps" && p.Attendance.Method != "qr" {
			return ErrInvalidProof
		}
	case models.MissionTypeReview:
		if p.Review == nil {
			return ErrInvalidProof
		}
	case models.MissionTypeSNS:
		if p.SNS == nil {
			return ErrInvalidProof
		}
	case models.MissionTypeReferral:
		if p.Referral == nil {
			return ErrInvalidProof
		}
	case models.MissionTypeChallenge:
		if p.Challenge == nil {
			return ErrInvalidProof
		}
	default:
		return fmt.Errorf("unknown mission type %q", t)
	}
	return nil
}

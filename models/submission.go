package models

import (
	"time"

	"gorm.io/gorm"
)

// MissionType identifies which kind of mission a submission belongs to
type MissionType string

const (
	MissionTypeChallenge  MissionType = "challenge"
	MissionTypeSNS        MissionType = "sns"
	MissionTypeReview     MissionType = "review"
	MissionTypeAttendance MissionType = "attendance"
	MissionTypeReferral   MissionType = "referral"
)

// SubmissionStatus is the lifecycle state of a submission.
// verification_needed is only reachable for referral missions.
type SubmissionStatus string

const (
	SubmissionStatusPending            SubmissionStatus = "pending"
	SubmissionStatusApproved           SubmissionStatus = "approved"
	SubmissionStatusRejected           SubmissionStatus = "rejected"
	SubmissionStatusVerificationNeeded SubmissionStatus = "verification_needed"
)

// SubmissionPriority is derived by the classifier, never user-settable
type SubmissionPriority string

const (
	PriorityHigh   SubmissionPriority = "high"
	PriorityMedium SubmissionPriority = "medium"
	PriorityLow    SubmissionPriority = "low"
)

// GeofenceVerdict classifies a GPS claim by distance band
type GeofenceVerdict string

const (
	VerdictAccurate   GeofenceVerdict = "accurate"
	VerdictSuspicious GeofenceVerdict = "suspicious"
	VerdictInvalid    GeofenceVerdict = "invalid"
)

// ReferralTier scales the referral bonus
type ReferralTier string

const (
	TierBronze   ReferralTier = "bronze"
	TierSilver   ReferralTier = "silver"
	TierGold     ReferralTier = "gold"
	TierPlatinum ReferralTier = "platinum"
)

// AttendanceProof is either a GPS claim (Latitude/Longitude/Accuracy set)
// or a QR claim (Token set). Method records which one was used.
type AttendanceProof struct {
	Method    string    `json:"method"` // "gps" | "qr"
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	Accuracy  float64   `json:"accuracy,omitempty"` // meters
	Token     string    `json:"token,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ReviewProof struct {
	Platform string `json:"platform"` // e.g., "naver", "google"
	URL      string `json:"url"`
	Rating   int    `json:"rating"`
	Text     string `json:"text"`
}

type SNSProof struct {
	Platform   string `json:"platform"` // e.g., "instagram", "blog"
	URL        string `json:"url"`
	Caption    string `json:"caption"`
	Engagement int    `json:"engagement"` // likes/views reported at submit time
}

type ReferralProof struct {
	ReferredUserID   string       `json:"referred_user_id"`
	ReferralCodeUsed string       `json:"referral_code_used"`
	Registered       bool         `json:"registered"`
	PaymentConfirmed bool         `json:"payment_confirmed"`
	Tier             ReferralTier `json:"tier"`
}

type ChallengeProof struct {
	MediaURL    string `json:"media_url"`
	Description string `json:"description"`
}

// ProofData is a tagged union keyed by the submission's mission type:
// exactly one variant is non-nil.
type ProofData struct {
	Attendance *AttendanceProof `json:"attendance,omitempty"`
	Review     *ReviewProof     `json:"review,omitempty"`
	SNS        *SNSProof        `json:"sns,omitempty"`
	Referral   *ReferralProof   `json:"referral,omitempty"`
	Challenge  *ChallengeProof  `json:"challenge,omitempty"`
}

// MissionSubmission is one attempt by a user to complete one mission.
// Review columns (reviewed_at/by/comment) are null exactly while the
// submission is undecided; reward fields stay zero until approval.
type MissionSubmission struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string           `gorm:"index;not null" json:"user_id"` // ExternalUserID from profile service
	MissionID   string           `gorm:"index;not null" json:"mission_id"`
	MissionType MissionType      `gorm:"type:varchar(20);index;not null" json:"mission_type"`
	Proof       ProofData        `gorm:"serializer:json;type:jsonb" json:"proof"`
	Status      SubmissionStatus `gorm:"type:varchar(24);default:'pending';index" json:"status"`

	// Derived by the classifier
	Priority             SubmissionPriority `gorm:"type:varchar(8);default:'low';index" json:"priority"`
	AutoApprovalEligible bool               `gorm:"default:false;index" json:"auto_approval_eligible"`

	// Attendance verification outcome (zero values for other types)
	StoreLocationID  *string          `gorm:"index" json:"store_location_id,omitempty"`
	GeofenceVerdict  GeofenceVerdict  `gorm:"type:varchar(12)" json:"geofence_verdict,omitempty"`
	DistanceMeters   *float64         `json:"distance_meters,omitempty"`
	LowConfidence    bool             `gorm:"default:false" json:"low_confidence"`
	VerificationNote string           `gorm:"type:text" json:"verification_note,omitempty"` // failure reason kept for the operator

	// Zero until approved
	RewardAmount     int64 `gorm:"default:0" json:"reward_amount"`
	ExperiencePoints int64 `gorm:"default:0" json:"experience_points"`

	SubmittedAt   time.Time  `gorm:"autoCreateTime" json:"submitted_at"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy    *string    `json:"reviewed_by,omitempty"`
	ReviewComment *string    `gorm:"type:text" json:"review_comment,omitempty"`

	Timestamps
}

// Decided reports whether the submission reached a terminal state
func (s *MissionSubmission) Decided() bool {
	return s.Status == SubmissionStatusApproved || s.Status == SubmissionStatusRejected
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

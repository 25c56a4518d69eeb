package models

import "time"

// PaybackStatus indicates whether the payout has been settled
type PaybackStatus string

const (
	PaybackStatusPending PaybackStatus = "pending_payout"
	PaybackStatusPaid    PaybackStatus = "paid"
)

// Payback is the ledger record created when a submission is approved.
// One row per approved submission; never updated except for settlement.
type Payback struct {
	ID               string        `gorm:"primaryKey;type:uuid" json:"id"`
	UserID           string        `gorm:"index;not null" json:"user_id"`
	SubmissionID     string        `gorm:"uniqueIndex;not null" json:"submission_id"`
	MissionType      MissionType   `gorm:"type:varchar(20);not null" json:"mission_type"`
	Amount           int64         `gorm:"not null" json:"amount"`
	ExperiencePoints int64         `gorm:"default:0" json:"experience_points"`
	Status           PaybackStatus `gorm:"type:varchar(16);default:'pending_payout';index" json:"status"`
	ApprovedBy       string        `json:"approved_by"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
}

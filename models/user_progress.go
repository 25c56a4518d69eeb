package models

import "time"

// UserProgress tracks gamified progression for each user (denormalized for performance)
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	// Core progression
	TotalXP int64 `json:"total_xp" gorm:"default:0"`
	Level   int   `json:"level" gorm:"default:1"`

	// Attendance streak: consecutive check-in days, feeds the reward bonus
	AttendanceStreak int        `json:"attendance_streak" gorm:"default:0"`
	LastAttendanceAt *time.Time `json:"last_attendance_at,omitempty"`

	// Activity counters
	TotalSubmissions int64 `json:"total_submissions" gorm:"default:0"`
	TotalApproved    int64 `json:"total_approved" gorm:"default:0"`
	TotalPayback     int64 `json:"total_payback" gorm:"default:0"`
	TotalReferrals   int64 `json:"total_referrals" gorm:"default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

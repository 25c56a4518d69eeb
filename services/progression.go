package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"mission-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LevelConfig: XP needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from current level
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	// L_n = floor(BaseXPPerLevel * n^1.2)
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// ProgressionService maintains the denormalized per-user gamification
// state (XP, level, attendance streak, counters).
type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(externalUserID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if err == gorm.ErrRecordNotFound {
		prog = models.UserProgress{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			TotalXP:        0,
			Level:          1,
		}
		if err := s.DB.Create(&prog).Error; err != nil {
			return nil, err
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// AwardXP atomically updates XP and level — returns updated progress
func (s *ProgressionService) AwardXP(externalUserID string, xp int64, reason string) (*models.UserProgress, error) {
	var updatedProg *models.UserProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var prog models.UserProgress
		if err := tx.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
			return fmt.Errorf("progress record not found for %s", externalUserID)
		}

		prog.TotalXP += xp

		// Level-up logic: accumulate until enough for next level
		for prog.TotalXP >= int64(BaseXPPerLevel)*int64(prog.Level)+xpForNextLevel(prog.Level) {
			prog.Level++
			now := time.Now()
			prog.LastLevelUpAt = &now
		}

		if err := tx.Save(&prog).Error; err != nil {
			return err
		}

		updatedProg = &models.UserProgress{}
		*updatedProg = prog

		log.Printf("🎮 XP Awarded: %s → XP=%d, Lvl=%d (reason: %s)",
			externalUserID, prog.TotalXP, prog.Level, reason)

		return nil
	})
	if err != nil {
		return nil, err
	}
	return updatedProg, nil
}

// AttendanceStreak returns the user's current consecutive-day streak
// (0 when no progress record exists yet).
func (s *ProgressionService) AttendanceStreak(externalUserID string) int {
	var prog models.UserProgress
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
		return 0
	}
	return prog.AttendanceStreak
}

// RecordApproval updates counters and payback totals after a submission
// was approved, bumping the attendance streak for attendance missions.
// The submission and ledger row were already committed by the decide
// transaction; progression updates follow behind it.
func (s *ProgressionService) RecordApproval(sub *models.MissionSubmission) error {
	prog, err := s.EnsureProgressRecord(sub.UserID)
	if err != nil {
		return err
	}

	prog.TotalApproved++
	prog.TotalPayback += sub.RewardAmount
	if sub.MissionType == models.MissionTypeReferral {
		prog.TotalReferrals++
	}

	if sub.MissionType == models.MissionTypeAttendance {
		now := time.Now()
		prog.AttendanceStreak = nextStreak(prog.AttendanceStreak, prog.LastAttendanceAt, now)
		prog.LastAttendanceAt = &now
	}

	if err := s.DB.Save(prog).Error; err != nil {
		return err
	}

	_, err = s.AwardXP(sub.UserID, sub.ExperiencePoints, fmt.Sprintf("%s_%s", sub.MissionType, sub.ID))
	return err
}

// RecordSubmission increments the submission counter (called at create time)
func (s *ProgressionService) RecordSubmission(externalUserID string) error {
	prog, err := s.EnsureProgressRecord(externalUserID)
	if err != nil {
		return err
	}
	prog.TotalSubmissions++
	return s.DB.Save(prog).Error
}

// nextStreak continues the streak only for check-ins on consecutive
// calendar days in the check-in's timezone; a same-day repeat keeps it, a
// gap resets to 1. Calendar days, not 24h buckets: 23:30 → 00:30 counts.
func nextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	calendarDay := func(t time.Time) time.Time {
		t = t.In(now.Location())
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	lastDay := calendarDay(*last)
	today := calendarDay(now)
	switch {
	case today.Equal(lastDay):
		return current // already checked in today
	case today.Equal(lastDay.AddDate(0, 0, 1)):
		return current + 1
	default:
		return 1
	}
}

// services/scheduler.go
package services

import (
	"log"
	"time"

	"mission-reward-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartReviewScheduler runs background maintenance of the review queue:
// stale undecided submissions get boosted to high priority so nothing
// starves, and the cache drops expired entries.
func (s *SubmissionService) StartReviewScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 5 minutes: aging boost for stale undecided submissions
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-s.Policy.StaleAfter)
			res := s.DB.Model(&models.MissionSubmission{}).
				Where("status IN ? AND submitted_at <= ? AND priority <> ?",
					decidableStatuses, cutoff, models.PriorityHigh).
				Update("priority", models.PriorityHigh)
			if res.Error != nil {
				log.Printf("[Scheduler] DB error during aging sweep: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				s.Cache.Invalidate("submissions:")
				s.Cache.Invalidate("stats:")
				log.Printf("⏫ Aging sweep boosted %d stale submissions to high priority", res.RowsAffected)
			}
		}),
	)

	// Every minute: reclaim expired cache entries
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.Cache.Sweep()
		}),
	)
}

package services

import (
	"strings"
	"sync"
	"time"

	"mission-reward-system/models"
)

// BatchFailure carries the per-id reason a decision did not apply
type BatchFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchResult separates outcomes: the batch is never all-or-nothing, each
// submission keeps its own per-item atomicity.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// BatchService lets an operator process many submissions with one decision
type BatchService struct {
	Submissions *SubmissionService
}

func NewBatchService(submissions *SubmissionService) *BatchService {
	return &BatchService{Submissions: submissions}
}

// FilterSubmissions is a pure intersection of independent predicates:
// order-independent and idempotent when re-applied to its own output.
func FilterSubmissions(subs []models.MissionSubmission, f ListFilters) []models.MissionSubmission {
	filtered := make([]models.MissionSubmission, 0, len(subs))
	for _, sub := range subs {
		if f.Status != "" && string(sub.Status) != f.Status {
			continue
		}
		if f.MissionType != "" && string(sub.MissionType) != f.MissionType {
			continue
		}
		if f.Priority != "" && string(sub.Priority) != f.Priority {
			continue
		}
		if f.StoreID != "" && (sub.StoreLocationID == nil || *sub.StoreLocationID != f.StoreID) {
			continue
		}
		if f.From != nil && sub.SubmittedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && sub.SubmittedAt.After(*f.To) {
			continue
		}
		if f.AutoOnly && !sub.AutoApprovalEligible {
			continue
		}
		filtered = append(filtered, sub)
	}
	return filtered
}

// SelectAutoEligible returns the ids of undecided submissions that already
// satisfy every policy rule — the bulk-selectable candidates. They are
// never committed without an operator action.
func SelectAutoEligible(subs []models.MissionSubmission) []string {
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		if sub.AutoApprovalEligible && !sub.Decided() {
			ids = append(ids, sub.ID)
		}
	}
	return ids
}

// ApplyDecision applies one decision to every id independently
// (fire-and-collect). One submission's failure never blocks the rest; the
// per-submission conditional update in Decide prevents double-processing,
// so no cross-item lock is needed.
func (b *BatchService) ApplyDecision(ids []string, decision models.SubmissionStatus, reviewer, reason string) (BatchResult, error) {
	if decision == models.SubmissionStatusRejected && strings.TrimSpace(reason) == "" {
		return BatchResult{}, ErrMissingRejectionReason
	}

	result := BatchResult{
		Succeeded: make([]string, 0, len(ids)),
		Failed:    make([]BatchFailure, 0),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := b.Submissions.Decide(id, decision, reviewer, reason, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, BatchFailure{ID: id, Reason: err.Error()})
				return
			}
			result.Succeeded = append(result.Succeeded, id)
		}(id)
	}
	wg.Wait()

	return result, nil
}

// ReviewStats is the dashboard summary, derived purely from a submission
// collection so it stays independent of any rendering concern.
type ReviewStats struct {
	Total         int                               `json:"total"`
	ByStatus      map[models.SubmissionStatus]int   `json:"by_status"`
	ByType        map[models.MissionType]int        `json:"by_type"`
	ByPriority    map[models.SubmissionPriority]int `json:"by_priority"`
	AutoEligible  int                               `json:"auto_eligible"`
	OldestPending *time.Time                        `json:"oldest_pending,omitempty"`
}

// ComputeStats derives queue statistics from a submission collection
func ComputeStats(subs []models.MissionSubmission) ReviewStats {
	stats := ReviewStats{
		ByStatus:   make(map[models.SubmissionStatus]int),
		ByType:     make(map[models.MissionType]int),
		ByPriority: make(map[models.SubmissionPriority]int),
	}
	for i := range subs {
		sub := &subs[i]
		stats.Total++
		stats.ByStatus[sub.Status]++
		stats.ByType[sub.MissionType]++
		stats.ByPriority[sub.Priority]++
		if sub.AutoApprovalEligible && !sub.Decided() {
			stats.AutoEligible++
		}
		if sub.Status == models.SubmissionStatusPending {
			if stats.OldestPending == nil || sub.SubmittedAt.Before(*stats.OldestPending) {
				t := sub.SubmittedAt
				stats.OldestPending = &t
			}
		}
	}
	return stats
}

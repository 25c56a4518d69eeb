// workers/referral_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"mission-reward-system/config"
	"mission-reward-system/models"
	"mission-reward-system/services"
	"mission-reward-system/utils"

	"gorm.io/gorm"
)

// ReferredUserStatus matches the JSON response from the profile service.
type ReferredUserStatus struct {
	ExternalUserID   string    `json:"external_user_id"`
	Registered       bool      `json:"registered"`
	PaymentConfirmed bool      `json:"payment_confirmed"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GetReferredStatusResponse is the top-level structure of the profile service response.
type GetReferredStatusResponse struct {
	Users []ReferredUserStatus `json:"users"`
}

// ReferralSyncWorker polls the profile service for referred-user
// registration/payment flags and refreshes referral submissions awaiting
// verification. Status stays verification_needed until an operator
// decides — the worker only keeps the evidence current.
type ReferralSyncWorker struct {
	db           *gorm.DB
	cache        *services.CacheService
	classifier   *services.EligibilityClassifier
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/referred-status"
	serviceToken string
}

func NewReferralSyncWorker(db *gorm.DB, cache *services.CacheService, policy *config.Policy, baseURL, endpointPath, serviceToken string) *ReferralSyncWorker {
	return &ReferralSyncWorker{
		db:           db,
		cache:        cache,
		classifier:   services.NewEligibilityClassifier(policy),
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
	}
}

func (w *ReferralSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Referral Sync Worker (profile-service → referral submissions)…")
	go w.run(ctx)
}

func (w *ReferralSyncWorker) run(ctx context.Context) {
	if err := w.syncBatch(ctx); err != nil {
		log.Printf("⚠️ Initial referral sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx); err != nil {
				log.Printf("❌ Referral sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Referral Sync Worker stopped")
			return
		}
	}
}

// syncBatch fetches flags for every referred user with a submission still
// awaiting verification and writes back any change.
func (w *ReferralSyncWorker) syncBatch(ctx context.Context) error {
	var pending []models.MissionSubmission
	if err := w.db.
		Where("mission_type = ? AND status = ?", models.MissionTypeReferral, models.SubmissionStatusVerificationNeeded).
		Find(&pending).Error; err != nil {
		return fmt.Errorf("failed to load referral submissions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	statuses, err := w.fetchStatuses(ctx, pending)
	if err != nil {
		return err
	}

	updated := 0
	for i := range pending {
		sub := &pending[i]
		proof := sub.Proof.Referral
		if proof == nil {
			continue
		}
		status, ok := statuses[proof.ReferredUserID]
		if !ok {
			continue
		}
		if proof.Registered == status.Registered && proof.PaymentConfirmed == status.PaymentConfirmed {
			continue
		}
		proof.Registered = status.Registered
		proof.PaymentConfirmed = status.PaymentConfirmed

		// Re-run the classifier on the refreshed evidence so the queue
		// priority reflects what the operator will actually pay out.
		cls := w.classifier.Classify(sub, 0, time.Now())
		if err := w.db.Model(sub).Updates(map[string]interface{}{
			"proof":                  sub.Proof,
			"priority":               cls.Priority,
			"auto_approval_eligible": cls.AutoApprovalEligible,
		}).Error; err != nil {
			log.Printf("❌ Failed to update referral submission %s: %v", sub.ID, err)
			continue
		}
		updated++
	}

	if updated > 0 {
		w.cache.Invalidate("submissions:")
		w.cache.Invalidate("stats:")
		log.Printf("[SYNC] ✅ Refreshed %d referral submissions", updated)
	}
	return nil
}

func (w *ReferralSyncWorker) fetchStatuses(ctx context.Context, pending []models.MissionSubmission) (map[string]ReferredUserStatus, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile service URL '%s': %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)

	q := endpoint.Query()
	for i := range pending {
		if proof := pending[i].Proof.Referral; proof != nil {
			q.Add("ids", proof.ReferredUserID)
		}
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := utils.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response GetReferredStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode profile service response: %w", err)
	}

	statuses := make(map[string]ReferredUserStatus, len(response.Users))
	for _, u := range response.Users {
		statuses[u.ExternalUserID] = u
	}
	return statuses, nil
}

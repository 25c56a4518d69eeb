// handlers/submission_routes.go
package handlers

import (
	"strconv"
	"time"

	"mission-reward-system/middleware"
	"mission-reward-system/models"
	"mission-reward-system/services"
	"mission-reward-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupSubmissionRoutes(app *fiber.App, submissionService *services.SubmissionService, batchService *services.BatchService) {
	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/s", middleware.UserContextMiddleware())

	// Users create submissions; the verification pipeline runs inline.
	secured.Post("/submissions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req services.SubmitRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		req.UserID = userID

		sub, err := submissionService.Submit(req)
		if err != nil {
			if err == services.ErrInvalidProof {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create submission",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(sub)
	})

	// Challenge proof media upload (multipart) → R2, URL goes into the proof
	secured.Post("/submissions/media", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		fileHeader, err := c.FormFile("media")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "media file is required"})
		}

		key := utils.ProofMediaKey(userID, fileHeader.Filename)
		url, err := utils.UploadProofMedia(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to upload media",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"media_url": url})
	})

	// Users see their own submissions
	secured.Get("/submissions/mine", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var subs []models.MissionSubmission
		if err := submissionService.DB.
			Where("user_id = ?", userID).
			Order("submitted_at DESC").
			Find(&subs).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch submissions"})
		}
		return c.JSON(subs)
	})

	// 🔐 Admin review surface — staff only
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireStaff())

	admin.Get("/submissions", func(c *fiber.Ctx) error {
		filters, err := parseFilters(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		subs, err := submissionService.List(filters)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list submissions",
				"cause": err.Error(),
			})
		}
		return c.JSON(subs)
	})

	admin.Get("/submissions/stats", func(c *fiber.Ctx) error {
		value, err := submissionService.Cache.Get("stats:review", submissionService.Policy.StatsTTL, func() (interface{}, error) {
			subs, err := submissionService.List(services.ListFilters{})
			if err != nil {
				return nil, err
			}
			return services.ComputeStats(subs), nil
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to compute stats",
				"cause": err.Error(),
			})
		}
		return c.JSON(value)
	})

	admin.Get("/submissions/:id", func(c *fiber.Ctx) error {
		sub, err := submissionService.Get(c.Params("id"))
		if err != nil {
			if err == services.ErrSubmissionNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.JSON(sub)
	})

	admin.Post("/submissions/:id/decide", func(c *fiber.Ctx) error {
		reviewer := c.Locals("user_id").(string)

		var req struct {
			Decision       models.SubmissionStatus `json:"decision"`
			Comment        string                  `json:"comment"`
			RewardOverride *int64                  `json:"reward_override,omitempty"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		sub, err := submissionService.Decide(c.Params("id"), req.Decision, reviewer, req.Comment, req.RewardOverride)
		if err != nil {
			return decisionError(c, err)
		}
		return c.JSON(sub)
	})

	// Batch: select the submissions that satisfy every policy rule
	admin.Post("/submissions/batch/auto-select", func(c *fiber.Ctx) error {
		filters, err := parseFilters(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		subs, err := submissionService.List(filters)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list submissions",
				"cause": err.Error(),
			})
		}
		ids := services.SelectAutoEligible(subs)
		return c.JSON(fiber.Map{"ids": ids, "count": len(ids)})
	})

	admin.Post("/submissions/batch/decide", func(c *fiber.Ctx) error {
		reviewer := c.Locals("user_id").(string)

		var req struct {
			IDs      []string                `json:"ids"`
			Decision models.SubmissionStatus `json:"decision"`
			Reason   string                  `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if len(req.IDs) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ids must not be empty"})
		}

		result, err := batchService.ApplyDecision(req.IDs, req.Decision, reviewer, req.Reason)
		if err != nil {
			return decisionError(c, err)
		}
		return c.JSON(fiber.Map{
			"succeeded":       result.Succeeded,
			"failed":          result.Failed,
			"succeeded_count": len(result.Succeeded),
			"failed_count":    len(result.Failed),
		})
	})
}

func parseFilters(c *fiber.Ctx) (services.ListFilters, error) {
	filters := services.ListFilters{
		Status:      c.Query("status"),
		MissionType: c.Query("mission_type"),
		Priority:    c.Query("priority"),
		StoreID:     c.Query("store_id"),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, err
		}
		filters.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, err
		}
		filters.To = &t
	}
	if raw := c.Query("auto_only"); raw != "" {
		auto, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, err
		}
		filters.AutoOnly = auto
	}
	return filters, nil
}

func decisionError(c *fiber.Ctx, err error) error {
	switch err {
	case services.ErrSubmissionNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case services.ErrAlreadyDecided:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case services.ErrMissingRejectionReason, services.ErrInvalidDecision:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "decision failed",
			"cause": err.Error(),
		})
	}
}

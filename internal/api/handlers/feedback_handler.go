package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/metrics"
	"github.com/nl2api/backend/internal/storage/models"
	"github.com/nl2api/backend/pkg/logger"
)

type FeedbackStore interface {
	StoreFeedback(feedback *models.Feedback) error
}

type FeedbackHandler struct {
	store FeedbackStore
}

func NewFeedbackHandler(store FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{store: store}
}

func (h *FeedbackHandler) HandleFeedback(c *fiber.Ctx) error {
	if h.store == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Feedback storage is not enabled",
		})
	}

	var req struct {
		RequestID string `json:"request_id"`
		Helpful   *bool  `json:"helpful"`
		Comment   string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.RequestID == "" || req.Helpful == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "request_id and helpful are required",
		})
	}

	feedback := &models.Feedback{
		ID:      uuid.New().String(),
		AskID:   req.RequestID,
		Helpful: *req.Helpful,
		Comment: req.Comment,
	}

	if err := h.store.StoreFeedback(feedback); err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	if *req.Helpful {
		metrics.UserSatisfaction.WithLabelValues("true").Inc()
	} else {
		metrics.UserSatisfaction.WithLabelValues("false").Inc()
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": feedback.ID,
	})
}

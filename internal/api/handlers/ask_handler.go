package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/pipeline"
	"github.com/nl2api/backend/internal/storage/models"
	"github.com/nl2api/backend/pkg/logger"
)

type Asker interface {
	Ask(ctx context.Context, utterance string) (*pipeline.GenerationResult, error)
}

// HistoryReader is optional; a nil reader turns history endpoints into 404s.
type HistoryReader interface {
	GetAskHistory(limit int) ([]models.AskRecord, error)
	GetContextSources(askID string) ([]models.ContextSource, error)
}

type AskHandler struct {
	pipeline Asker
	history  HistoryReader
}

func NewAskHandler(pipeline Asker, history HistoryReader) *AskHandler {
	return &AskHandler{
		pipeline: pipeline,
		history:  history,
	}
}

func (h *AskHandler) HandleAsk(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// The validation middleware stores the sanitized question; prefer it
	// over the raw body so trimming and NUL stripping reach the pipeline.
	if body, ok := c.Locals("validated_body").(map[string]interface{}); ok {
		if question, ok := body["question"].(string); ok && question != "" {
			req.Question = question
		}
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	result, err := h.pipeline.Ask(c.Context(), req.Question)
	if err != nil {
		logger.Error("Failed to process question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process question",
		})
	}

	return c.JSON(result)
}

func (h *AskHandler) GetAskHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "History storage is not enabled",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	records, err := h.history.GetAskHistory(limit)
	if err != nil {
		logger.Error("Failed to load ask history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	if records == nil {
		records = []models.AskRecord{}
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}

func (h *AskHandler) GetAskSources(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "History storage is not enabled",
		})
	}

	askID := c.Params("id")
	if askID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ask id is required",
		})
	}

	sources, err := h.history.GetContextSources(askID)
	if err != nil {
		logger.Error("Failed to load context sources", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load sources",
		})
	}

	if sources == nil {
		sources = []models.ContextSource{}
	}

	return c.JSON(fiber.Map{
		"sources": sources,
	})
}

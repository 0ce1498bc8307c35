package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/internal/executor"
	"github.com/nl2api/backend/internal/storage/models"
	"github.com/nl2api/backend/internal/synthesizer"
	"github.com/nl2api/backend/pkg/logger"
)

type UpstreamExecutor interface {
	ExecuteGraphQL(ctx context.Context, query string, variables map[string]interface{}) (*executor.Response, error)
	ExecuteREST(ctx context.Context, req *synthesizer.GeneratedRequest) (*executor.Response, error)
}

// AskLookup resolves a stored ask record so its generated query can be
// executed by id. Optional; nil disables the request_id form.
type AskLookup interface {
	GetAskRecord(id string) (*models.AskRecord, error)
}

// ExecuteHandler forwards a previously generated query to the upstream API.
// Execution is explicit and separate from generation; nothing generated by
// the pipeline runs without the caller asking for it.
type ExecuteHandler struct {
	executor UpstreamExecutor
	lookup   AskLookup
}

func NewExecuteHandler(executor UpstreamExecutor, lookup AskLookup) *ExecuteHandler {
	return &ExecuteHandler{
		executor: executor,
		lookup:   lookup,
	}
}

func (h *ExecuteHandler) HandleExecute(c *fiber.Ctx) error {
	var req struct {
		RequestID string                        `json:"request_id"`
		Protocol  string                        `json:"protocol"`
		Query     string                        `json:"query"`
		Variables map[string]interface{}        `json:"variables"`
		Request   *synthesizer.GeneratedRequest `json:"request"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.RequestID != "" {
		if err := h.resolveStored(req.RequestID, &req.Protocol, &req.Query, &req.Request); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Unknown request_id",
			})
		}
	}

	var (
		resp *executor.Response
		err  error
	)

	switch req.Protocol {
	case dsl.ProtocolGraphQL:
		if req.Query == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "query is required for graphql execution",
			})
		}
		resp, err = h.executor.ExecuteGraphQL(c.Context(), req.Query, req.Variables)
	case dsl.ProtocolREST:
		if req.Request == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "request is required for rest execution",
			})
		}
		resp, err = h.executor.ExecuteREST(c.Context(), req.Request)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "protocol must be graphql or rest",
		})
	}

	if err != nil {
		if errors.Is(err, executor.ErrNotConfigured) {
			return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
				"error": "Upstream execution is not configured",
			})
		}
		logger.Error("Upstream execution failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream execution failed",
		})
	}

	return c.JSON(resp)
}

func (h *ExecuteHandler) resolveStored(requestID string, protocol, query *string, request **synthesizer.GeneratedRequest) error {
	if h.lookup == nil {
		return fmt.Errorf("history storage is not enabled")
	}

	record, err := h.lookup.GetAskRecord(requestID)
	if err != nil {
		return err
	}

	*protocol = record.DetectedProtocol
	*query = record.GeneratedQuery

	if record.GeneratedRequest != "" {
		var stored synthesizer.GeneratedRequest
		if err := json.Unmarshal([]byte(record.GeneratedRequest), &stored); err != nil {
			return err
		}
		*request = &stored
	}

	return nil
}

// Package validation rejects malformed ask requests before they reach the
// LLM pipeline. Keyword blocklists are deliberately absent: utterances like
// "delete the board" or "select all scenarios" are legitimate input here.
package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxQuestionLength   int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = 2000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get("Content-Type")
			if contentType != "" && !isAllowedContentType(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if strings.HasSuffix(c.Path(), "/ask") && c.Method() == fiber.MethodPost {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			question, ok := req["question"].(string)
			question = sanitize(question)
			if !ok || question == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Question is required and must be a non-empty string",
				})
			}

			// Count runes, not bytes, so multi-byte scripts such as
			// Hangul get the same budget as ASCII.
			if utf8.RuneCountInString(question) > cfg.MaxQuestionLength {
				cfg.Logger.Warn("Question rejected for length",
					zap.String("ip", c.IP()),
					zap.Int("length", utf8.RuneCountInString(question)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Question exceeds maximum length",
				})
			}

			req["question"] = question
			c.Locals("validated_body", req)
		}

		return c.Next()
	}
}

func isAllowedContentType(contentType string, allowed []string) bool {
	for _, allowedType := range allowed {
		if strings.Contains(contentType, allowedType) {
			return true
		}
	}
	return false
}

func sanitize(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}

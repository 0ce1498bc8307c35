package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/ask", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func postAsk(t *testing.T, app *fiber.App, body string) int {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()

	return resp.StatusCode
}

func TestValidQuestionPasses(t *testing.T) {
	app := newTestApp(Config{})
	assert.Equal(t, fiber.StatusOK, postAsk(t, app, `{"question": "show me board 42"}`))
}

func TestKoreanQuestionPasses(t *testing.T) {
	app := newTestApp(Config{})
	assert.Equal(t, fiber.StatusOK, postAsk(t, app, `{"question": "모든 게시판을 보여주세요"}`))
}

func TestMissingQuestionRejected(t *testing.T) {
	app := newTestApp(Config{})
	assert.Equal(t, fiber.StatusBadRequest, postAsk(t, app, `{}`))
	assert.Equal(t, fiber.StatusBadRequest, postAsk(t, app, `{"question": "   "}`))
}

func TestInvalidJSONRejected(t *testing.T) {
	app := newTestApp(Config{})
	assert.Equal(t, fiber.StatusBadRequest, postAsk(t, app, `{"question": `))
}

func TestOverlongQuestionRejected(t *testing.T) {
	app := newTestApp(Config{MaxQuestionLength: 10})
	assert.Equal(t, fiber.StatusBadRequest, postAsk(t, app, `{"question": "this question is much longer than ten characters"}`))
}

func TestQuestionLengthCountedInRunes(t *testing.T) {
	app := newTestApp(Config{MaxQuestionLength: 100})

	// 90 Hangul runes occupy 270 bytes; only the rune count matters.
	within := strings.Repeat("가", 90)
	assert.Equal(t, fiber.StatusOK, postAsk(t, app, `{"question": "`+within+`"}`))

	over := strings.Repeat("가", 101)
	assert.Equal(t, fiber.StatusBadRequest, postAsk(t, app, `{"question": "`+over+`"}`))
}

func TestQueryVerbsAreNotBlocked(t *testing.T) {
	// Natural-language utterances legitimately contain SQL-looking verbs.
	app := newTestApp(Config{})
	assert.Equal(t, fiber.StatusOK, postAsk(t, app, `{"question": "delete the scenario named demo"}`))
	assert.Equal(t, fiber.StatusOK, postAsk(t, app, `{"question": "select all boards and update the first one"}`))
}

func TestUnsupportedContentTypeRejected(t *testing.T) {
	app := newTestApp(Config{})

	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader("question=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

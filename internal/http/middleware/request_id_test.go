package middleware_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackly/internal/http/middleware"
)

func newRequestIDApp() *fiber.App {
	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(middleware.GetRequestID(c))
	})
	return app
}

func TestGetRequestIDMatchesResponseHeader(t *testing.T) {
	resp, err := newRequestIDApp().Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
	assert.Equal(t, resp.Header.Get(middleware.RequestIDHeader), string(body))
}

func TestGetRequestIDReusesClientHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")

	resp, err := newRequestIDApp().Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", string(body))
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(middleware.GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a11y-gateway/internal/config"
	"a11y-gateway/internal/infra/chrome"
)

type poolFunc func() (*chrome.Pool, error)

func (f poolFunc) Pool() (*chrome.Pool, error) { return f() }

func TestHandleChromeStats_Disabled(t *testing.T) {
	app := fiber.New()
	app.Get("/stats", HandleChromeStats(chrome.NewRenderer(config.Default()), 0, 60))

	resp, err := app.Test(httptest.NewRequest("GET", "/stats", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var s chrome.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.False(t, s.Enabled)
	assert.Equal(t, 60, s.TimeoutSecs)
}

func TestHandleChromeStats_PoolError(t *testing.T) {
	app := fiber.New()
	app.Get("/stats", HandleChromeStats(poolFunc(func() (*chrome.Pool, error) {
		return nil, errors.New("profile dir not writable")
	}), 1, 60))

	resp, err := app.Test(httptest.NewRequest("GET", "/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

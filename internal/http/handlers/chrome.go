package handlers

import (
	"github.com/gofiber/fiber/v2"

	"a11y-gateway/internal/infra/chrome"
)

// PoolSource exposes the renderer's Chrome pool; nil means pooling is off.
type PoolSource interface {
	Pool() (*chrome.Pool, error)
}

// HandleChromeStats exposes basic observability for the Chrome pool (capacity / idle / in_use).
func HandleChromeStats(src PoolSource, poolSize, timeoutSecs int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pool, err := src.Pool()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Chrome pool init failed: "+err.Error())
		}

		// Pool disabled.
		if pool == nil {
			return c.JSON(chrome.Stats{
				PoolSizeConf: poolSize,
				TimeoutSecs:  timeoutSecs,
			})
		}
		return c.JSON(pool.Stats(timeoutSecs))
	}
}

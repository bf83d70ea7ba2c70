package middleware

import (
	"fmt"
	"time"

	"marketplace/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags the request with an id, stores a logging context on the
// fiber user context and logs the outcome.
func RequestLogger(logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(RequestIDHeader, reqID)

		ctx := logg.WithRequestID(c.UserContext(), reqID)
		ctx = logg.WithFields(ctx, map[string]any{
			"method": c.Method(),
			"path":   c.Path(),
		})
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		done := logg.WithFields(c.UserContext(), map[string]any{
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		msg := fmt.Sprintf("%s %s", c.Method(), c.Path())
		switch {
		case status >= fiber.StatusInternalServerError:
			logg.Error(done, msg, err)
		case status >= fiber.StatusBadRequest:
			logg.Warn(done, msg)
		default:
			logg.Info(done, msg)
		}
		return err
	}
}

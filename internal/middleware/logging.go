package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/satecha/satecha/pkg/logger"
)

const requestIDKey = "requestID"

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Locals(requestIDKey, requestID)
		c.Set("X-Request-ID", requestID)

		var body string
		if c.Method() != fiber.MethodGet {
			body = logger.GetRequestBodySummary(c)
		}

		err := c.Next()

		details := map[string]interface{}{
			"request_id":  requestID,
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.IP(),
			"response":    logger.GetResponseSizeSummary(c),
		}
		if body != "" {
			details["body"] = body
		}
		if err != nil {
			details["handler_error"] = err.Error()
		}

		if userID := logger.GetUserIDFromContext(c); userID != nil {
			logger.InfoWithUser(*userID, "http_request", details)
		} else {
			logger.Info("http_request", details)
		}
		return err
	}
}

// SecurityLogger records rejected requests: failed authentication,
// forbidden access and throttling.
func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		switch status {
		case fiber.StatusUnauthorized, fiber.StatusForbidden, fiber.StatusTooManyRequests:
			logger.Warn("security_event", map[string]interface{}{
				"request_id": GetRequestID(c),
				"method":     c.Method(),
				"path":       c.Path(),
				"status":     status,
				"ip":         c.IP(),
				"user_agent": c.Get("User-Agent"),
			})
		}
		return err
	}
}

func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

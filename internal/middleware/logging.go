// Package middleware provides request-scoped middleware for the web layer:
// context propagation, structured request logging, tracing and rate limiting.
package middleware

import (
	"context"
	"time"

	"quill/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ContextMiddleware injects the request ID, signed-in user ID and trace ID
// from Fiber locals into the request context so the context-aware logger can
// pick them up in deep service layers.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if rid := c.Locals("requestid"); rid != nil {
			if ridStr, ok := rid.(string); ok {
				ctx = observability.WithRequestID(ctx, ridStr)
			}
		}

		// The session middleware runs later, so the user ID is only present
		// here on a second pass. Logging still sees it via SetUserContext in
		// the session middleware itself.
		if uid := c.Locals("userID"); uid != nil {
			if uidUint, ok := uid.(uint); ok {
				ctx = observability.WithUserID(ctx, uidUint)
			}
		}

		if tid := c.Locals("traceID"); tid != nil {
			if tidStr, ok := tid.(string); ok {
				ctx = context.WithValue(ctx, observability.TraceIDKey, tidStr)
			}
		}

		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger returns a Fiber middleware that logs each request with slog.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		latency := time.Since(start)

		fields := []any{
			"status", status,
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"latency", latency,
			"user_agent", c.Get("User-Agent"),
		}

		// InfoContext/ErrorContext so the ctx handler attaches request_id and user_id.
		if err != nil {
			fields = append(fields, "error", err.Error())
			observability.Logger.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			observability.Logger.InfoContext(c.UserContext(), "request processed", fields...)
		}

		return err
	}
}

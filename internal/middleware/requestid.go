package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderRequestID is the inbound/outbound request correlation header.
const HeaderRequestID = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID assigns each request a correlation ID, honoring one supplied
// by the caller. The ID is echoed back in the response headers and made
// available via RequestIDFromContext.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}

			c.Set(string(requestIDKey), id)
			c.Response().Header().Set(HeaderRequestID, id)
			return next(c)
		}
	}
}

// RequestIDFrom returns the correlation ID assigned to the request, or
// an empty string when the middleware did not run.
func RequestIDFrom(c echo.Context) string {
	id, _ := c.Get(string(requestIDKey)).(string)
	return id
}

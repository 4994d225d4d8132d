package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/middleware"
)

// errorResponse is the JSON error envelope every endpoint returns.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFromCode maps application error codes to HTTP status codes.
func statusFromCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ETIMEOUT:
		return http.StatusGatewayTimeout
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler translates application errors into JSON responses.
// Internal error details are logged, never sent to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := errorBody{Code: domain.EINTERNAL, Message: "Internal error."}

		if he, isHTTP := err.(*echo.HTTPError); isHTTP {
			status = he.Code
			body.Code = codeFromStatus(status)
			if msg, isStr := he.Message.(string); isStr {
				body.Message = msg
			} else {
				body.Message = http.StatusText(status)
			}
		} else {
			code := domain.ErrorCode(err)
			status = statusFromCode(code)
			body.Code = code
			body.Message = domain.ErrorMessage(err)
		}

		if status >= 500 {
			logger.Error().
				Err(err).
				Str("op", domain.ErrorOp(err)).
				Str("request_id", middleware.RequestIDFrom(c)).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, errorResponse{Error: body})
	}
}

func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.EINVALID
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusForbidden:
		return domain.EFORBIDDEN
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusConflict:
		return domain.ECONFLICT
	default:
		return domain.EINTERNAL
	}
}

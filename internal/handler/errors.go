package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/service"
)

// statusOf maps a service error kind to its HTTP status.
func statusOf(err error) int {
	switch service.KindOf(err) {
	case service.ErrNotFound:
		return http.StatusNotFound
	case service.ErrForbidden:
		return http.StatusForbidden
	case service.ErrConflict:
		return http.StatusConflict
	case service.ErrBadRequest:
		return http.StatusBadRequest
	case service.ErrUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": message, ...details}.  Unclassified errors
// are logged and answered with a generic 500.
func fail(c echo.Context, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.FromEcho(c).Error("request failed", zap.Error(err))
		return c.JSON(status, echo.Map{"error": "internal server error"})
	}
	body := echo.Map{"error": err.Error()}
	var se *service.Error
	if errors.As(err, &se) {
		for k, v := range se.Details {
			body[k] = v
		}
	}
	return c.JSON(status, body)
}

// ErrorHandler is installed as echo's HTTPErrorHandler so errors returned
// by middleware and handlers share the response shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		_ = c.JSON(he.Code, echo.Map{"error": msg})
		return
	}
	_ = fail(c, err)
}

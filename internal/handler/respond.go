// Package handler implements the HTTP routes and their responders.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Content types declared for the responses we build ourselves.
const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeCSS  = "text/css; charset=utf-8"
)

// NotFound responds 404 with the body "404".
func NotFound(c echo.Context) error {
	return c.String(http.StatusNotFound, "404")
}

func badRequest(c echo.Context, logger *slog.Logger, msg string) error {
	logger.Error("bad request",
		"err", msg,
		"path", c.Request().URL.Path,
	)
	return c.String(http.StatusBadRequest, "400: "+msg)
}

func internalError(c echo.Context, logger *slog.Logger, err error) error {
	logger.Error("internal error",
		"err", err,
		"path", c.Request().URL.Path,
	)
	return c.String(http.StatusInternalServerError, "500: "+err.Error())
}

// ErrorHandler returns an echo.HTTPErrorHandler that answers every routing
// miss, including a known path hit with the wrong method, with NotFound.
// All other errors go to fallback.
func ErrorHandler(fallback echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) && (he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed) {
			c.Response().Header().Del(echo.HeaderAllow)
			_ = NotFound(c)
			return
		}
		fallback(err, c)
	}
}

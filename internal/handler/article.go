package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"article-proxy-go/internal/service"
)

// ArticleHandler fetches the URL posted in the request body and returns the
// remote body as HTML.
type ArticleHandler struct {
	service *service.ArticleService
	logger  *slog.Logger
}

// NewArticleHandler creates an ArticleHandler.
func NewArticleHandler(svc *service.ArticleService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{
		service: svc,
		logger:  logger.With("component", "article_handler"),
	}
}

// Handle expects a body of the form "url=<percent-encoded URL>". The remote
// body is always returned as text/html with status 200, whatever the remote
// content type or status was.
func (h *ArticleHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		// Body limit violations carry their own status.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return badRequest(c, h.logger, "Could not read request body")
	}

	target, err := service.ParseTarget(body)
	switch {
	case errors.Is(err, service.ErrInvalidUTF8):
		return badRequest(c, h.logger, "Body must be a valid UTF-8 string")
	case errors.Is(err, service.ErrMissingPrefix):
		return badRequest(c, h.logger, `Body must start with "`+service.TargetPrefix+`"`)
	case err != nil:
		return internalError(c, h.logger, err)
	}

	page, err := h.service.Fetch(c.Request().Context(), target)
	if err != nil {
		return internalError(c, h.logger, err)
	}

	h.logger.Debug("fetched",
		"url", target,
		"remote_status", page.RemoteStatus,
		"remote_content_type", page.ContentType,
		"bytes", len(page.Body),
	)
	return c.Blob(http.StatusOK, contentTypeHTML, page.Body)
}

package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"article-proxy-go/internal/config"
)

// StaticHandler serves the index page and the stylesheet from disk.
// Files are opened on every request; nothing is cached.
type StaticHandler struct {
	indexPath      string
	stylesheetPath string
	logger         *slog.Logger
}

// NewStaticHandler creates a StaticHandler.
func NewStaticHandler(cfg *config.Config, logger *slog.Logger) *StaticHandler {
	return &StaticHandler{
		indexPath:      cfg.Static.IndexPath(),
		stylesheetPath: cfg.Static.StylesheetPath(),
		logger:         logger.With("component", "static_handler"),
	}
}

// Index serves the index page.
func (h *StaticHandler) Index(c echo.Context) error {
	return h.serveFile(c, h.indexPath, contentTypeHTML)
}

// Stylesheet serves the stylesheet.
func (h *StaticHandler) Stylesheet(c echo.Context) error {
	return h.serveFile(c, h.stylesheetPath, contentTypeCSS)
}

func (h *StaticHandler) serveFile(c echo.Context, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn("static file not found", "path", path)
			return NotFound(c)
		}
		return internalError(c, h.logger, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return internalError(c, h.logger, err)
	}
	if info.IsDir() {
		h.logger.Warn("static path is a directory", "path", path)
		return NotFound(c)
	}

	return c.Stream(http.StatusOK, contentType, f)
}

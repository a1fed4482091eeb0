package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"article-proxy-go/internal/config"
	"article-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// Paths match exactly; anything else falls through to NotFound via ErrorHandler.
func RegisterRoutes(e *echo.Echo, static *StaticHandler, article *ArticleHandler, health *HealthHandler) {
	e.GET("/", static.Index)
	e.GET("/main.css", static.Stylesheet)
	e.POST("/a", article.Handle)

	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	rejectOptions(e, "/", "/main.css", "/a", "/healthz", "/proxy/status")
}

// rejectOptions answers OPTIONS on registered paths with NotFound. Otherwise
// the router replies 204 with an Allow header without reaching ErrorHandler.
func rejectOptions(e *echo.Echo, paths ...string) {
	for _, p := range paths {
		e.Match([]string{http.MethodOptions}, p, NotFound)
	}
}

// RegisterMetrics exposes the Prometheus registry when metrics are enabled.
func RegisterMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	rejectOptions(e, cfg.Metrics.Path)
}

package middleware

import (
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimit returns a per-IP rate limiter allowing rps requests per second,
// with a burst of at least one request.
// Rejected requests get 429 with a plain-text body in the same style as the
// other error responses.
func RateLimit(rps float64) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:  rate.Limit(rps),
		Burst: int(math.Max(1, math.Ceil(rps))),
	})
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.String(http.StatusForbidden, "403: could not identify client")
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.String(http.StatusTooManyRequests, "429: too many requests")
		},
	})
}

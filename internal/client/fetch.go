// Package client provides the outbound HTTP client used for proxy fetches.
package client

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"article-proxy-go/internal/config"
	"article-proxy-go/internal/metrics"
	"article-proxy-go/internal/model"
)

// FetchClient issues GET requests against arbitrary remote hosts.
type FetchClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewFetchClient creates a FetchClient with connection pooling, a total
// timeout and a bounded redirect chain.
// The metrics parameter is optional; pass nil to disable fetch metrics recording.
func NewFetchClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *FetchClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Fetch.IdleConnections,
		MaxIdleConnsPerHost: cfg.Fetch.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	maxRedirects := cfg.Fetch.MaxRedirects
	return &FetchClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		logger:  logger.With("component", "fetch_client"),
		metrics: m,
	}
}

// Get issues a GET for fr.URL with fr.Header and returns the raw response.
// The caller is responsible for closing the response body. The request is
// bound to fr.Ctx: canceling it aborts the fetch.
func (c *FetchClient) Get(fr *model.FetchRequest) (*model.FetchResponse, error) {
	req, err := http.NewRequestWithContext(fr.Ctx, http.MethodGet, fr.URL, http.NoBody)
	if err != nil {
		c.recordFailure("request")
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	if fr.Header != nil {
		req.Header = fr.Header.Clone()
	}

	c.logger.Debug("fetch request",
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via FetchResponse
	duration := time.Since(start).Seconds()

	if c.metrics != nil {
		c.metrics.FetchDuration.Observe(duration)
	}
	if err != nil {
		c.recordFailure("transport")
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.FetchResponses.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.FetchResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

func (c *FetchClient) recordFailure(stage string) {
	if c.metrics != nil {
		c.metrics.FetchFailures.WithLabelValues(stage).Inc()
	}
}

// Package service implements request-body parsing and the proxy fetch.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"article-proxy-go/internal/client"
	"article-proxy-go/internal/config"
	"article-proxy-go/internal/metrics"
	"article-proxy-go/internal/model"
)

// TargetPrefix is the form key the client sends the target URL under.
const TargetPrefix = "url="

var (
	// ErrInvalidUTF8 is returned when the request body is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("request body is not valid UTF-8")
	// ErrMissingPrefix is returned when the request body does not start with TargetPrefix.
	ErrMissingPrefix = errors.New("request body does not start with " + TargetPrefix)
)

// textualTypes are Content-Type fragments whose bodies are decoded to UTF-8.
var textualTypes = []string{"text/", "html", "xml", "json", "javascript"}

// Page is a fetched remote document ready to be returned to the client.
type Page struct {
	Body         []byte
	RemoteStatus int
	ContentType  string
}

// ArticleService fetches remote pages on behalf of the browser.
type ArticleService struct {
	client    *client.FetchClient
	userAgent string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewArticleService creates an ArticleService. The metrics parameter is optional.
func NewArticleService(c *client.FetchClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ArticleService {
	return &ArticleService{
		client:    c,
		userAgent: cfg.Fetch.UserAgent,
		logger:    logger.With("component", "article_service"),
		metrics:   m,
	}
}

// ParseTarget extracts the target URL from a raw request body of the form
// "url=<percent-encoded URL>". Only %XX sequences with two hex digits are
// decoded. A stray '%' and '+' are kept literally.
func ParseTarget(body []byte) (string, error) {
	if !utf8.Valid(body) {
		return "", ErrInvalidUTF8
	}
	s := string(body)
	if !strings.HasPrefix(s, TargetPrefix) {
		return "", ErrMissingPrefix
	}

	target := percentDecode(s[len(TargetPrefix):])
	if !utf8.ValidString(target) {
		return "", errors.New("decode target url: result is not valid UTF-8")
	}
	return target, nil
}

// percentDecode decodes every well-formed %XX escape in s and copies
// everything else through unchanged.
func percentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Fetch GETs target with the configured User-Agent and returns the whole body.
// The remote status code is reported but never treated as a failure.
func (s *ArticleService) Fetch(ctx context.Context, target string) (*Page, error) {
	s.logger.Info("fetching", "url", target)

	header := make(http.Header)
	header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Get(&model.FetchRequest{
		Ctx:    ctx,
		URL:    target,
		Header: header,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.recordFailure("read")
		return nil, fmt.Errorf("read body of %s: %w", target, err)
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := toUTF8(raw, contentType)
	if err != nil {
		s.recordFailure("decode")
		return nil, fmt.Errorf("decode body of %s: %w", target, err)
	}
	if s.metrics != nil {
		s.metrics.FetchBytes.Add(float64(len(body)))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		s.logger.Warn("remote returned error status",
			"url", target,
			"status", resp.StatusCode,
		)
	}

	return &Page{
		Body:         body,
		RemoteStatus: resp.StatusCode,
		ContentType:  contentType,
	}, nil
}

func (s *ArticleService) recordFailure(stage string) {
	if s.metrics != nil {
		s.metrics.FetchFailures.WithLabelValues(stage).Inc()
	}
}

// toUTF8 converts textual bodies to UTF-8 using the declared or sniffed
// charset. Non-textual bodies are returned unchanged.
func toUTF8(raw []byte, contentType string) ([]byte, error) {
	if !isTextual(contentType) {
		return raw, nil
	}

	// Sniffing only looks at the first 1024 bytes, so a valid UTF-8 body is
	// kept as is unless the remote declared another charset.
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if utf8.Valid(raw) && (name == "utf-8" || !certain) {
		return raw, nil
	}
	return enc.NewDecoder().Bytes(raw)
}

func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	for _, t := range textualTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"article-proxy-go/internal/client"
	"article-proxy-go/internal/config"
)

func newTestService(t *testing.T) *ArticleService {
	t.Helper()
	cfg := &config.Config{
		Fetch: config.FetchConfig{
			UserAgent:       config.DefaultUserAgent,
			TimeoutSeconds:  5,
			IdleConnections: 10,
			MaxRedirects:    10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewArticleService(client.NewFetchClient(cfg, logger, nil), cfg, logger, nil)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		want    string
		wantErr error
	}{
		{
			name: "percent-encoded URL",
			body: []byte("url=http%3A%2F%2Fexample.com%2F"),
			want: "http://example.com/",
		},
		{
			name: "unencoded URL",
			body: []byte("url=https://example.com/a?b=c"),
			want: "https://example.com/a?b=c",
		},
		{
			name: "plus kept literally",
			body: []byte("url=https%3A%2F%2Fexample.com%2Fa+b"),
			want: "https://example.com/a+b",
		},
		{
			name: "encoded non-ASCII",
			body: []byte("url=https%3A%2F%2Fexample.com%2Fcaf%C3%A9"),
			want: "https://example.com/café",
		},
		{
			name: "empty target",
			body: []byte("url="),
			want: "",
		},
		{
			name: "stray percent kept literally",
			body: []byte("url=http://host/?discount=50%off"),
			want: "http://host/?discount=50%off",
		},
		{
			name: "truncated escape kept literally",
			body: []byte("url=http%3"),
			want: "http%3",
		},
		{
			name: "non-hex escape kept literally",
			body: []byte("url=http%zz%2Fa"),
			want: "http%zz/a",
		},
		{
			name: "trailing percent",
			body: []byte("url=http://host/100%"),
			want: "http://host/100%",
		},
		{
			name: "lowercase hex",
			body: []byte("url=http%3a%2f%2fexample.com"),
			want: "http://example.com",
		},
		{
			name:    "invalid UTF-8 body",
			body:    []byte{'u', 'r', 'l', '=', 0xff, 0xfe},
			wantErr: ErrInvalidUTF8,
		},
		{
			name:    "missing prefix",
			body:    []byte("link=http%3A%2F%2Fexample.com"),
			wantErr: ErrMissingPrefix,
		},
		{
			name:    "body shorter than prefix",
			body:    []byte("ur"),
			wantErr: ErrMissingPrefix,
		},
		{
			name:    "empty body",
			body:    nil,
			wantErr: ErrMissingPrefix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.body)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseTarget() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTarget_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"decodes to invalid UTF-8", "url=http%FF"},
		{"truncated multi-byte sequence", "url=caf%C3"},
		{"latin-1 escape", "url=caf%E9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTarget([]byte(tt.body))
			if err == nil {
				t.Fatal("ParseTarget() expected error, got nil")
			}
			if errors.Is(err, ErrInvalidUTF8) || errors.Is(err, ErrMissingPrefix) {
				t.Errorf("ParseTarget() error = %v, want a decode error", err)
			}
		})
	}
}

func TestArticleService_Fetch(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != config.DefaultUserAgent {
			t.Errorf("User-Agent = %q, want Googlebot UA", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<h1>Article</h1>"))
	}))
	defer remote.Close()

	page, err := newTestService(t).Fetch(context.Background(), remote.URL+"/post")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(page.Body) != "<h1>Article</h1>" {
		t.Errorf("Body = %q, want %q", page.Body, "<h1>Article</h1>")
	}
	if page.RemoteStatus != http.StatusOK {
		t.Errorf("RemoteStatus = %d, want %d", page.RemoteStatus, http.StatusOK)
	}
}

func TestArticleService_Fetch_RemoteErrorStatusIsNotFailure(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not here"))
	}))
	defer remote.Close()

	page, err := newTestService(t).Fetch(context.Background(), remote.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.RemoteStatus != http.StatusNotFound {
		t.Errorf("RemoteStatus = %d, want %d", page.RemoteStatus, http.StatusNotFound)
	}
	if string(page.Body) != "not here" {
		t.Errorf("Body = %q, want %q", page.Body, "not here")
	}
}

func TestArticleService_Fetch_DecodesDeclaredCharset(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		_, _ = w.Write([]byte("caf\xe9"))
	}))
	defer remote.Close()

	page, err := newTestService(t).Fetch(context.Background(), remote.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(page.Body) != "café" {
		t.Errorf("Body = %q, want %q", page.Body, "café")
	}
}

func TestArticleService_Fetch_BinaryPassthrough(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0xff, 0x00, 0xfe}
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(raw)
	}))
	defer remote.Close()

	page, err := newTestService(t).Fetch(context.Background(), remote.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(page.Body) != string(raw) {
		t.Errorf("Body = %q, want raw bytes %q", page.Body, raw)
	}
}

func TestArticleService_Fetch_EmptyBody(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer remote.Close()

	page, err := newTestService(t).Fetch(context.Background(), remote.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(page.Body) != 0 {
		t.Errorf("Body = %q, want empty", page.Body)
	}
}

func TestArticleService_Fetch_NoCaching(t *testing.T) {
	var hits atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := hits.Add(1)
		_, _ = w.Write([]byte("version " + strconv.Itoa(int(n))))
	}))
	defer remote.Close()

	svc := newTestService(t)
	first, err := svc.Fetch(context.Background(), remote.URL)
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	second, err := svc.Fetch(context.Background(), remote.URL)
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("remote hits = %d, want 2", hits.Load())
	}
	if string(first.Body) == string(second.Body) {
		t.Errorf("expected fresh content on each fetch, got %q twice", first.Body)
	}
}

func TestArticleService_Fetch_TransportError(t *testing.T) {
	_, err := newTestService(t).Fetch(context.Background(), "http://127.0.0.1:1/")
	if err == nil {
		t.Fatal("Fetch() expected error for unreachable host, got nil")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Errorf("error = %q, want the target in the message", err)
	}
}

func TestIsTextual(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"text/html; charset=utf-8", true},
		{"text/plain", true},
		{"application/xhtml+xml", true},
		{"application/json", true},
		{"application/javascript", true},
		{"image/png", false},
		{"application/octet-stream", false},
		{"application/pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := isTextual(tt.contentType); got != tt.want {
				t.Errorf("isTextual(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestToUTF8_UndeclaredUTF8PastSniffWindow(t *testing.T) {
	raw := []byte(strings.Repeat("a", 2048) + "café")

	got, err := toUTF8(raw, "text/html")
	if err != nil {
		t.Fatalf("toUTF8() error = %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("toUTF8() altered a valid UTF-8 body")
	}
}

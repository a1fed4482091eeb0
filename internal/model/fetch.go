// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// FetchRequest describes one outbound GET issued on behalf of a client.
type FetchRequest struct {
	Ctx    context.Context
	URL    string
	Header http.Header
}

// FetchResponse is the raw remote response. The remote status is kept for
// logging and metrics only; it is never forwarded to the client.
type FetchResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

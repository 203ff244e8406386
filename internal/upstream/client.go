// Package upstream holds the HTTP clients for the post, comment and storage
// collaborators. Every failure is returned as an *apperr.Error naming the
// collaborator; raw transport errors never escape this package unwrapped.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emilythestrangee/main-feed/backend/internal/observability"
)

const (
	CollaboratorPosts    = "posts"
	CollaboratorComments = "comments"
	CollaboratorStorage  = "storage"

	// maxResponseBytes bounds how much of a collaborator response is read.
	maxResponseBytes = 32 << 20
)

// NewHTTPClient returns the client shared by all collaborators. timeout
// bounds every outbound call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// statusError is a non-2xx answer from a collaborator.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// caller performs requests against one collaborator's base URL.
type caller struct {
	name    string
	baseURL string
	http    *http.Client
	metrics *observability.Metrics
}

func newCaller(name, baseURL string, client *http.Client, metrics *observability.Metrics) caller {
	if client == nil {
		client = http.DefaultClient
	}
	return caller{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		metrics: metrics,
	}
}

func (c caller) url(path string) string {
	return c.baseURL + path
}

// do sends req and returns the response body of a 2xx answer. Non-2xx
// answers come back as *statusError.
func (c caller) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(c.name, "transport_error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.ObserveUpstream(c.name, "transport_error", time.Since(start))
		return nil, fmt.Errorf("read %s response: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveUpstream(c.name, "http_error", time.Since(start))
		return nil, &statusError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	c.metrics.ObserveUpstream(c.name, "ok", time.Since(start))
	slog.DebugContext(req.Context(), "collaborator call finished",
		"collaborator", c.name,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"elapsed", time.Since(start))
	return body, nil
}

func (c caller) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// upstreamStatus extracts the collaborator's status code, or 0 if it never
// answered.
func upstreamStatus(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

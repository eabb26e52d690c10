package githubapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/4bhiy23/open-cookie/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallMetadata reports execution metadata for a client call.
type CallMetadata struct {
	RateHeaders RateLimitHeaders
	Duration    time.Duration
}

// Client wraps GitHub HTTP requests with client-side pacing and rate-limit
// header capture. Requests are issued exactly once; a failed or limited
// request is the caller's signal to degrade, never to retry.
type Client struct {
	doer    HTTPDoer
	limiter *rate.Limiter
	// Now is injected for testability.
	Now func() time.Time
	// Observe, when set, is called after every completed request with the
	// endpoint class, the response status code, and the elapsed time.
	Observe func(endpoint string, statusCode int, elapsed time.Duration)
}

// NewClient creates a GitHub API client wrapper. requestsPerSecond <= 0
// disables client-side pacing.
func NewClient(doer HTTPDoer, requestsPerSecond float64) *Client {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Client{
		doer:    doer,
		limiter: limiter,
		Now:     time.Now,
	}
}

// Do executes one request and captures rate-limit metadata from the response.
func (c *Client) Do(req *http.Request) (*http.Response, CallMetadata, error) {
	if req == nil {
		return nil, CallMetadata{}, fmt.Errorf("request is nil")
	}

	ctx := req.Context()
	var span trace.Span
	if telemetry.ShouldTraceDependencies() {
		ctx, span = otel.Tracer("open-cookie/internal/githubapi").Start(
			ctx,
			"githubapi.client.do",
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.path", req.URL.EscapedPath()),
			),
		)
		defer span.End()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return nil, CallMetadata{}, fmt.Errorf("wait for request slot: %w", err)
		}
	}

	started := c.Now()
	resp, err := c.doer.Do(req.Clone(ctx))
	metadata := CallMetadata{Duration: c.Now().Sub(started)}
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, metadata, err
	}

	metadata.RateHeaders = ParseRateLimitHeaders(resp.Header, resp.StatusCode)
	if c.Observe != nil {
		c.Observe(EndpointName(req.URL.Path), resp.StatusCode, metadata.Duration)
	}
	if span != nil {
		span.SetAttributes(
			attribute.Int("http.status_code", resp.StatusCode),
			attribute.Int("github.rate_limit_remaining", metadata.RateHeaders.Remaining),
			attribute.Int64("github.rate_limit_reset_unix", metadata.RateHeaders.ResetUnix),
		)
		if resp.StatusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		} else {
			span.SetStatus(codes.Ok, "request completed")
		}
	}
	return resp, metadata, nil
}

// EndpointName maps a request path to a low-cardinality endpoint class
// suitable for metric labels.
func EndpointName(path string) string {
	switch {
	case strings.Contains(path, "/search/commits"):
		return "search_commits"
	case strings.Contains(path, "/search/issues"):
		return "search_issues"
	case strings.HasSuffix(path, "/comments"):
		return "issue_comments"
	case strings.HasSuffix(path, "/timeline"):
		return "issue_timeline"
	case strings.HasSuffix(path, "/issues"):
		return "list_issues"
	default:
		return "other"
	}
}

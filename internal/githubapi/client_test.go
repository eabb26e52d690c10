package githubapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type countingDoer struct {
	calls     int
	responses []*http.Response
	errs      []error
}

func (d *countingDoer) Do(_ *http.Request) (*http.Response, error) {
	index := d.calls
	d.calls++
	var resp *http.Response
	var err error
	if index < len(d.responses) {
		resp = d.responses[index]
	}
	if index < len(d.errs) {
		err = d.errs[index]
	}
	return resp, err
}

func newTestResponse(statusCode int, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: statusCode,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}
}

func TestClientDoCapturesRateHeaders(t *testing.T) {
	t.Parallel()

	header := http.Header{}
	header.Set("X-RateLimit-Remaining", "17")
	header.Set("X-RateLimit-Reset", "1700000000")
	doer := &countingDoer{responses: []*http.Response{newTestResponse(http.StatusOK, header)}}
	client := NewClient(doer, 0)

	req, err := http.NewRequest(http.MethodGet, "https://api.github.com/repos/o/r/issues", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	resp, metadata, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if metadata.RateHeaders.Remaining != 17 {
		t.Fatalf("Remaining = %d, want 17", metadata.RateHeaders.Remaining)
	}
	if metadata.RateHeaders.ResetUnix != 1700000000 {
		t.Fatalf("ResetUnix = %d, want 1700000000", metadata.RateHeaders.ResetUnix)
	}
}

func TestClientDoIssuesRequestExactlyOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doer *countingDoer
	}{
		{
			name: "transport error is not retried",
			doer: &countingDoer{errs: []error{errors.New("connection reset")}},
		},
		{
			name: "server error is not retried",
			doer: &countingDoer{responses: []*http.Response{newTestResponse(http.StatusBadGateway, nil)}},
		},
		{
			name: "secondary limit is not retried",
			doer: &countingDoer{responses: []*http.Response{newTestResponse(http.StatusTooManyRequests, nil)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := NewClient(tt.doer, 0)
			req, err := http.NewRequest(http.MethodGet, "https://api.github.com/rate_limit", nil)
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}

			resp, _, _ := client.Do(req)
			if resp != nil {
				_ = resp.Body.Close()
			}
			if tt.doer.calls != 1 {
				t.Fatalf("doer calls = %d, want 1", tt.doer.calls)
			}
		})
	}
}

func TestClientDoNilRequest(t *testing.T) {
	t.Parallel()

	client := NewClient(&countingDoer{}, 0)
	if _, _, err := client.Do(nil); err == nil {
		t.Fatal("Do(nil) error = nil, want error")
	}
}

func TestClientDoInvokesObserver(t *testing.T) {
	t.Parallel()

	doer := &countingDoer{responses: []*http.Response{newTestResponse(http.StatusOK, nil)}}
	client := NewClient(doer, 0)

	var gotEndpoint string
	var gotStatus int
	client.Observe = func(endpoint string, statusCode int, _ time.Duration) {
		gotEndpoint = endpoint
		gotStatus = statusCode
	}

	req, err := http.NewRequest(http.MethodGet, "https://api.github.com/search/commits?q=x", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, _, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if gotEndpoint != "search_commits" {
		t.Fatalf("endpoint = %q, want search_commits", gotEndpoint)
	}
	if gotStatus != http.StatusOK {
		t.Fatalf("status = %d, want %d", gotStatus, http.StatusOK)
	}
}

func TestEndpointName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/search/commits", "search_commits"},
		{"/api/v3/search/issues", "search_issues"},
		{"/repos/o/r/issues", "list_issues"},
		{"/repos/o/r/issues/7/comments", "issue_comments"},
		{"/repos/o/r/issues/7/timeline", "issue_timeline"},
		{"/rate_limit", "other"},
	}

	for _, tt := range tests {
		if got := EndpointName(tt.path); got != tt.want {
			t.Fatalf("EndpointName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

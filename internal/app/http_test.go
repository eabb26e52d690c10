package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/4bhiy23/open-cookie/internal/githubapi"
	"github.com/4bhiy23/open-cookie/internal/health"
	"github.com/4bhiy23/open-cookie/internal/metrics"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, rt *Runtime) http.Handler {
	t.Helper()
	return NewHTTPHandler(rt, metrics.New().Handler(), health.NewHandler(rt))
}

func decodeJSONBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRootEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, newTestRuntime(&fakeCrawler{}, &fakeBuilder{}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "Open-Cookie Activity Tracker Backend is running" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestIssuesPageEndpoint(t *testing.T) {
	t.Parallel()

	crawler := &fakeCrawler{issues: []githubapi.Issue{{Number: 1}}}
	handler := newTestServer(t, newTestRuntime(crawler, &fakeBuilder{}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/issues/octo/widgets?page=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
	body := decodeJSONBody(t, rec)
	if body["repo"] != "octo/widgets" {
		t.Fatalf("repo = %v", body["repo"])
	}
}

func TestIssuesPageEndpointUpstreamFailure(t *testing.T) {
	t.Parallel()

	crawler := &fakeCrawler{err: errors.New("rate limited")}
	handler := newTestServer(t, newTestRuntime(crawler, &fakeBuilder{}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/issues/octo/widgets", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if body := decodeJSONBody(t, rec); body["error"] != "Failed to fetch issues" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestIssuesAllEndpointUpstreamFailure(t *testing.T) {
	t.Parallel()

	crawler := &fakeCrawler{err: errors.New("rate limited")}
	handler := newTestServer(t, newTestRuntime(crawler, &fakeBuilder{}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/issues/octo/widgets/all", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if body := decodeJSONBody(t, rec); body["error"] != "Failed to fetch all issues" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestIssueActionEndpoints(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, newTestRuntime(&fakeCrawler{}, &fakeBuilder{}))

	for _, action := range []string{"nudge", "release"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/issues/octo/widgets/42/"+action, nil))

		if rec.Code != http.StatusAccepted {
			t.Fatalf("%s status = %d, want %d", action, rec.Code, http.StatusAccepted)
		}
		body := decodeJSONBody(t, rec)
		if body["action"] != action || body["status"] != "accepted" {
			t.Fatalf("%s body = %v", action, body)
		}
		if body["issue_number"] != float64(42) {
			t.Fatalf("issue_number = %v, want 42", body["issue_number"])
		}
	}
}

func TestIssueActionRejectsBadNumber(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, newTestRuntime(&fakeCrawler{}, &fakeBuilder{}))

	for _, path := range []string{
		"/api/issues/octo/widgets/abc/nudge",
		"/api/issues/octo/widgets/-1/release",
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want %d", path, rec.Code, http.StatusBadRequest)
		}
		if body := decodeJSONBody(t, rec); body["error"] != "Invalid issue number" {
			t.Fatalf("error = %v", body["error"])
		}
	}
}

func TestUserEndpointRequiresToken(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, newTestRuntime(&fakeCrawler{}, &fakeBuilder{}))

	for _, path := range []string{"/api/user", "/api/user/repos"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want %d", path, rec.Code, http.StatusUnauthorized)
		}
		if body := decodeJSONBody(t, rec); body["error"] != "Access token required" {
			t.Fatalf("error = %v", body["error"])
		}
	}
}

func TestUserEndpoint(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(&fakeCrawler{}, &fakeBuilder{})
	rt.userClientFn = func(string) (userAPI, error) {
		return &fakeUserAPI{user: githubapi.User{Login: "alice"}}, nil
	}
	handler := newTestServer(t, rt)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Bearer gho_secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rec)
	user, ok := body["user"].(map[string]any)
	if !ok || user["login"] != "alice" {
		t.Fatalf("body = %v", body)
	}
}

func TestUserReposEndpointFailure(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(&fakeCrawler{}, &fakeBuilder{})
	rt.userClientFn = func(string) (userAPI, error) {
		return &fakeUserAPI{err: errors.New("bad credentials")}, nil
	}
	handler := newTestServer(t, rt)

	req := httptest.NewRequest(http.MethodGet, "/api/user/repos", nil)
	req.Header.Set("Token", "gho_secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body := decodeJSONBody(t, rec); body["error"] != "Failed to fetch repositories" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestAuthLoginRedirects(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.GitHub.OAuth.ClientID = "client-id"
	cfg.GitHub.OAuth.ClientSecret = "client-secret"
	oauth, err := githubapi.NewOAuthExchanger("", "client-id", "client-secret", http.DefaultClient)
	if err != nil {
		t.Fatalf("NewOAuthExchanger() error = %v", err)
	}
	rt := NewRuntime(cfg, &fakeCrawler{}, &fakeBuilder{}, nil, nil, oauth, zap.NewNop())
	handler := newTestServer(t, rt)

	req := httptest.NewRequest(http.MethodGet, "http://tracker.example.com/auth/github", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	target, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	query := target.Query()
	if query.Get("client_id") != "client-id" {
		t.Fatalf("client_id = %q", query.Get("client_id"))
	}
	if got := query.Get("redirect_uri"); got != "http://tracker.example.com/auth/github/callback" {
		t.Fatalf("redirect_uri = %q", got)
	}
}

func TestAuthLoginWithoutOAuth(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, newTestRuntime(&fakeCrawler{}, &fakeBuilder{}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/github", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestAuthCallbackRequiresCode(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, newTestRuntime(&fakeCrawler{}, &fakeBuilder{}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/github/callback", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if body := decodeJSONBody(t, rec); body["error"] != "Authorization code not provided" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestAuthCallbackFailure(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, newTestRuntime(&fakeCrawler{}, &fakeBuilder{}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=abc", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body := decodeJSONBody(t, rec); body["error"] != "Authentication failed" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestHealthEndpointsAreMounted(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, newTestRuntime(&fakeCrawler{}, &fakeBuilder{}))

	for path, want := range map[string]int{
		"/livez":   http.StatusOK,
		"/readyz":  http.StatusOK,
		"/healthz": http.StatusOK,
		"/metrics": http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("%s status = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header http.Header
		want   string
	}{
		{"missing", http.Header{}, ""},
		{"token header", http.Header{"Token": {"abc"}}, "abc"},
		{"authorization token prefix", http.Header{"Authorization": {"token abc"}}, "abc"},
		{"authorization bearer prefix", http.Header{"Authorization": {"Bearer abc"}}, "abc"},
		{"bare authorization value", http.Header{"Authorization": {"abc"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			req.Header = tt.header
			if got := bearerToken(req); got != tt.want {
				t.Fatalf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCallbackURL(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "http://tracker.example.com/auth/github", nil)
	if got := callbackURL(req); got != "http://tracker.example.com/auth/github/callback" {
		t.Fatalf("callbackURL() = %q", got)
	}

	req.Header.Set("X-Forwarded-Proto", "https")
	if got := callbackURL(req); !strings.HasPrefix(got, "https://") {
		t.Fatalf("callbackURL() = %q, want https scheme", got)
	}
}

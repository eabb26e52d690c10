package app

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/4bhiy23/open-cookie/internal/health"
	"github.com/4bhiy23/open-cookie/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// NewHTTPHandler wires the API, auth, metrics, and health endpoints on a
// single router.
func NewHTTPHandler(rt *Runtime, metricsHandler http.Handler, healthHandler http.Handler) http.Handler {
	router := chi.NewRouter()
	traceMode := telemetry.TraceMode()

	router.Method(http.MethodGet, "/", wrapHTTPHandler(traceMode, "root", http.HandlerFunc(handleRoot)))

	router.Method(http.MethodGet, "/api/issues/{owner}/{repo}", wrapHTTPHandler(traceMode, "issues_page", rt.handleIssuesPage()))
	router.Method(http.MethodGet, "/api/issues/{owner}/{repo}/all", wrapHTTPHandler(traceMode, "issues_all", rt.handleIssuesAll()))
	router.Method(http.MethodPost, "/api/issues/{owner}/{repo}/{number}/nudge", wrapHTTPHandler(traceMode, "issue_nudge", rt.handleIssueAction("nudge")))
	router.Method(http.MethodPost, "/api/issues/{owner}/{repo}/{number}/release", wrapHTTPHandler(traceMode, "issue_release", rt.handleIssueAction("release")))

	router.Method(http.MethodGet, "/api/user", wrapHTTPHandler(traceMode, "user", rt.handleUser()))
	router.Method(http.MethodGet, "/api/user/repos", wrapHTTPHandler(traceMode, "user_repos", rt.handleUserRepos()))

	router.Method(http.MethodGet, "/auth/github", wrapHTTPHandler(traceMode, "auth_login", rt.handleAuthLogin()))
	router.Method(http.MethodGet, "/auth/github/callback", wrapHTTPHandler(traceMode, "auth_callback", rt.handleAuthCallback()))

	router.Handle("/metrics", wrapHTTPHandler(traceMode, "metrics", metricsHandler))
	router.Handle("/livez", wrapHTTPHandler(traceMode, "livez", healthHandler))
	router.Handle("/readyz", wrapHTTPHandler(traceMode, "readyz", healthHandler))
	router.Handle("/healthz", wrapHTTPHandler(traceMode, "healthz", healthHandler))
	return router
}

// Handler returns the combined HTTP handler.
func (r *Runtime) Handler() http.Handler {
	return NewHTTPHandler(r, r.metrics.Handler(), health.NewHandler(r))
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Open-Cookie Activity Tracker Backend is running")); err != nil {
		return
	}
}

func (rt *Runtime) handleIssuesPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")
		repo := chi.URLParam(r, "repo")
		page := queryInt(r, "page", 1)

		payload, err := rt.IssuesPage(r.Context(), owner, repo, page)
		if err != nil {
			rt.logger.Error("issues page request failed",
				zap.String("owner", owner),
				zap.String("repo", repo),
				zap.Int("page", page),
				zap.Error(err),
			)
			writeJSONError(w, http.StatusBadGateway, "Failed to fetch issues")
			return
		}
		writeJSONPayload(w, payload)
	}
}

func (rt *Runtime) handleIssuesAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")
		repo := chi.URLParam(r, "repo")
		perPage := queryInt(r, "per_page", rt.cfg.Crawl.FullScanPage)

		payload, err := rt.AllIssues(r.Context(), owner, repo, perPage)
		if err != nil {
			rt.logger.Error("full issue scan failed",
				zap.String("owner", owner),
				zap.String("repo", repo),
				zap.Error(err),
			)
			writeJSONError(w, http.StatusBadGateway, "Failed to fetch all issues")
			return
		}
		writeJSONPayload(w, payload)
	}
}

// handleIssueAction acknowledges a nudge or release request. The action is
// recorded for the caller only; no upstream write happens.
func (rt *Runtime) handleIssueAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, err := strconv.Atoi(chi.URLParam(r, "number"))
		if err != nil || number <= 0 {
			writeJSONError(w, http.StatusBadRequest, "Invalid issue number")
			return
		}

		rt.logger.Info("issue action acknowledged",
			zap.String("action", action),
			zap.String("owner", chi.URLParam(r, "owner")),
			zap.String("repo", chi.URLParam(r, "repo")),
			zap.Int("issue_number", number),
		)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"issue_number": number,
			"action":       action,
			"status":       "accepted",
		})
	}
}

func (rt *Runtime) handleUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "Access token required")
			return
		}

		user, err := rt.User(r.Context(), token)
		if err != nil {
			rt.logger.Warn("user lookup failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "Failed to fetch user information")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	}
}

func (rt *Runtime) handleUserRepos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "Access token required")
			return
		}

		repos, err := rt.UserRepos(r.Context(), token)
		if err != nil {
			rt.logger.Warn("user repos lookup failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "Failed to fetch repositories")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"repos": repos})
	}
}

func (rt *Runtime) handleAuthLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := rt.AuthorizeURL(callbackURL(r))
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Authentication is not configured")
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func (rt *Runtime) handleAuthCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			writeJSONError(w, http.StatusBadRequest, "Authorization code not provided")
			return
		}

		token, user, err := rt.CompleteLogin(r.Context(), code)
		if err != nil {
			rt.logger.Warn("oauth login failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "Authentication failed")
			return
		}

		userJSON, err := json.Marshal(user)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Authentication failed")
			return
		}

		query := url.Values{}
		query.Set("token", token)
		query.Set("user", string(userJSON))
		http.Redirect(w, r, rt.FrontendURL()+"dashboard?"+query.Encode(), http.StatusFound)
	}
}

func bearerToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("Token")); token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	for _, prefix := range []string{"token ", "Bearer "} {
		if strings.HasPrefix(auth, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
		}
	}
	return ""
}

func callbackURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host + "/auth/github/callback"
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func writeJSONPayload(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		return
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		return
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func wrapHTTPHandler(traceMode, route string, handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	if strings.EqualFold(strings.TrimSpace(traceMode), "off") {
		return handler
	}

	operation := strings.TrimSpace(route)
	if operation == "" {
		operation = "handler"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer("open-cookie/internal/app").Start(
			r.Context(),
			"http.server."+operation,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		recorder := &statusCapturingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}
		handler.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
			return
		}
		span.SetStatus(codes.Ok, "request completed")
	})
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

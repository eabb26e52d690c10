package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/4bhiy23/open-cookie/internal/config"
	"github.com/4bhiy23/open-cookie/internal/crawl"
	"github.com/4bhiy23/open-cookie/internal/githubapi"
	"github.com/4bhiy23/open-cookie/internal/health"
	"github.com/4bhiy23/open-cookie/internal/metrics"
	"github.com/4bhiy23/open-cookie/internal/report"
	"github.com/4bhiy23/open-cookie/internal/store"
	"go.uber.org/zap"
)

const (
	githubUnhealthyThreshold = 3
	githubRecoverThreshold   = 1
)

type issueCrawler interface {
	CrawlPage(ctx context.Context, owner, repo string, page int) ([]githubapi.Issue, crawl.PageSummary, error)
	CrawlAll(ctx context.Context, owner, repo string, perPage int) ([]githubapi.Issue, int, error)
}

type reportBuilder interface {
	Build(ctx context.Context, owner, repo string, issues []githubapi.Issue) report.Report
}

type userAPI interface {
	GetAuthenticatedUser(ctx context.Context) (githubapi.User, error)
	ListUserRepos(ctx context.Context) ([]githubapi.UserRepo, error)
}

// PageReport is the response payload for one categorized listing page.
type PageReport struct {
	Repo       string            `json:"repo"`
	Pagination crawl.PageSummary `json:"pagination"`
	report.Report
}

// FullScanSummary describes pagination of a completed full crawl.
type FullScanSummary struct {
	TotalPages  int `json:"total_pages"`
	PerPage     int `json:"per_page"`
	TotalIssues int `json:"total_issues"`
}

// FullReport is the response payload for a full repository crawl.
type FullReport struct {
	Repo       string          `json:"repo"`
	Pagination FullScanSummary `json:"pagination"`
	report.Report
}

// Runtime is the application orchestrator. It owns the crawler, the report
// builder, the cache, and dependency health state.
type Runtime struct {
	cfg       *config.Config
	crawler   issueCrawler
	builder   reportBuilder
	cache     store.Cache
	metrics   *metrics.Metrics
	oauth     *githubapi.OAuthExchanger
	evaluator *health.StatusEvaluator
	logger    *zap.Logger

	// userClientFn builds a per-token client for the user endpoints.
	userClientFn func(token string) (userAPI, error)

	mu                  sync.RWMutex
	githubClientUsable  bool
	cacheHealthy        bool
	engineHealthy       bool
	githubHealthy       bool
	githubFailureStreak int
	githubRecoverStreak int

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewRuntime creates a runtime instance. The oauth exchanger may be nil
// when web login is not configured.
func NewRuntime(
	cfg *config.Config,
	crawler issueCrawler,
	builder reportBuilder,
	cache store.Cache,
	m *metrics.Metrics,
	oauth *githubapi.OAuthExchanger,
	logger *zap.Logger,
) *Runtime {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if cache == nil {
		cache = store.NewMemoryCache(cfg.Store.TTL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiBaseURL := cfg.GitHub.APIBaseURL
	return &Runtime{
		cfg:       cfg,
		crawler:   crawler,
		builder:   builder,
		cache:     cache,
		metrics:   m,
		oauth:     oauth,
		evaluator: health.NewStatusEvaluator(),
		logger:    logger,
		userClientFn: func(token string) (userAPI, error) {
			return githubapi.NewUserClient(token, apiBaseURL)
		},
		githubClientUsable: crawler != nil,
		cacheHealthy:       true,
		engineHealthy:      builder != nil,
		githubHealthy:      true,
		Now:                time.Now,
	}
}

// CurrentStatus returns current health status.
func (r *Runtime) CurrentStatus(_ context.Context) health.Status {
	r.mu.RLock()
	input := health.Input{
		GitHubClientUsable: r.githubClientUsable,
		CacheHealthy:       r.cacheHealthy,
		EngineHealthy:      r.engineHealthy,
		GitHubHealthy:      r.githubHealthy,
	}
	r.mu.RUnlock()
	return r.evaluator.Evaluate(input)
}

// IssuesPage serves the categorized report for one listing page, crawling
// on cache miss. The returned payload is ready-to-write JSON.
func (r *Runtime) IssuesPage(ctx context.Context, owner, repo string, page int) ([]byte, error) {
	if page <= 0 {
		page = 1
	}
	key := store.PageKey(owner, repo, page, r.cfg.Crawl.PerPage)
	if payload, ok := r.cachedPayload(ctx, key); ok {
		return payload, nil
	}

	buildStart := time.Now()
	issues, summary, err := r.crawler.CrawlPage(ctx, owner, repo, page)
	if err != nil {
		r.markGitHubOutcome(false)
		return nil, fmt.Errorf("crawl %s/%s page %d: %w", owner, repo, page, err)
	}
	r.markGitHubOutcome(true)
	r.metrics.ObserveCrawlPages(1)

	rep := r.builder.Build(ctx, owner, repo, issues)
	r.observeReport(rep, buildStart)

	payload, err := json.Marshal(PageReport{
		Repo:       owner + "/" + repo,
		Pagination: summary,
		Report:     rep,
	})
	if err != nil {
		return nil, fmt.Errorf("encode page report: %w", err)
	}

	r.storePayload(ctx, key, payload)
	return payload, nil
}

// AllIssues serves the categorized report for every open issue in the
// repository, crawling all pages on cache miss.
func (r *Runtime) AllIssues(ctx context.Context, owner, repo string, perPage int) ([]byte, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = r.cfg.Crawl.FullScanPage
	}
	key := store.FullScanKey(owner, repo, perPage)
	if payload, ok := r.cachedPayload(ctx, key); ok {
		return payload, nil
	}

	buildStart := time.Now()
	issues, pagesFetched, err := r.crawler.CrawlAll(ctx, owner, repo, perPage)
	if err != nil {
		r.markGitHubOutcome(false)
		return nil, fmt.Errorf("crawl %s/%s all pages: %w", owner, repo, err)
	}
	r.markGitHubOutcome(true)
	r.metrics.ObserveCrawlPages(pagesFetched)

	rep := r.builder.Build(ctx, owner, repo, issues)
	r.observeReport(rep, buildStart)

	payload, err := json.Marshal(FullReport{
		Repo: owner + "/" + repo,
		Pagination: FullScanSummary{
			TotalPages:  pagesFetched,
			PerPage:     perPage,
			TotalIssues: len(issues),
		},
		Report: rep,
	})
	if err != nil {
		return nil, fmt.Errorf("encode full report: %w", err)
	}

	r.storePayload(ctx, key, payload)
	return payload, nil
}

// User fetches the profile of the token's owner.
func (r *Runtime) User(ctx context.Context, token string) (githubapi.User, error) {
	client, err := r.userClientFn(token)
	if err != nil {
		return githubapi.User{}, err
	}
	return client.GetAuthenticatedUser(ctx)
}

// UserRepos fetches the repositories of the token's owner.
func (r *Runtime) UserRepos(ctx context.Context, token string) ([]githubapi.UserRepo, error) {
	client, err := r.userClientFn(token)
	if err != nil {
		return nil, err
	}
	return client.ListUserRepos(ctx)
}

// AuthorizeURL builds the OAuth authorize redirect target.
func (r *Runtime) AuthorizeURL(redirectURI string) (string, error) {
	if r.oauth == nil {
		return "", fmt.Errorf("oauth login is not configured")
	}
	return r.oauth.AuthorizeURL(redirectURI), nil
}

// CompleteLogin exchanges the OAuth code and fetches the logged-in user.
func (r *Runtime) CompleteLogin(ctx context.Context, code string) (string, githubapi.User, error) {
	if r.oauth == nil {
		return "", githubapi.User{}, fmt.Errorf("oauth login is not configured")
	}
	token, err := r.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return "", githubapi.User{}, err
	}
	user, err := r.User(ctx, token)
	if err != nil {
		return "", githubapi.User{}, err
	}
	return token, user, nil
}

// FrontendURL returns the configured post-login redirect base.
func (r *Runtime) FrontendURL() string {
	frontend := r.cfg.GitHub.OAuth.FrontendURL
	if frontend == "" {
		frontend = "http://localhost:8080/"
	}
	return frontend
}

// GC deletes expired cache entries.
func (r *Runtime) GC() {
	r.cache.GC(r.Now())
}

// Close releases the cache backend.
func (r *Runtime) Close() error {
	return r.cache.Close()
}

func (r *Runtime) cachedPayload(ctx context.Context, key string) ([]byte, bool) {
	payload, hit, err := r.cache.Get(ctx, key, r.Now())
	if err != nil {
		r.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		r.setCacheHealthy(false)
		return nil, false
	}
	r.setCacheHealthy(true)
	r.metrics.ObserveCacheLookup(hit)
	return payload, hit
}

func (r *Runtime) storePayload(ctx context.Context, key string, payload []byte) {
	if err := r.cache.Set(ctx, key, payload, r.Now()); err != nil {
		r.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
		r.setCacheHealthy(false)
		return
	}
	r.setCacheHealthy(true)
}

func (r *Runtime) observeReport(rep report.Report, buildStart time.Time) {
	r.metrics.ObserveReportBuild(time.Since(buildStart))
	for _, record := range rep.Issues {
		if record.AssigneeActivity == nil {
			continue
		}
		r.metrics.ObserveClassification(string(record.AssigneeActivity.Status))
	}
}

func (r *Runtime) setCacheHealthy(healthy bool) {
	r.mu.Lock()
	r.cacheHealthy = healthy
	r.mu.Unlock()
}

func (r *Runtime) markGitHubOutcome(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if success {
		r.githubFailureStreak = 0
		if r.githubHealthy {
			r.githubRecoverStreak = 0
			return
		}
		r.githubRecoverStreak++
		if r.githubRecoverStreak >= githubRecoverThreshold {
			r.githubHealthy = true
			r.githubRecoverStreak = 0
		}
		return
	}

	r.githubRecoverStreak = 0
	r.githubFailureStreak++
	if r.githubFailureStreak >= githubUnhealthyThreshold {
		r.githubHealthy = false
	}
}

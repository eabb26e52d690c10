package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/4bhiy23/open-cookie/internal/githubapi"
	"go.uber.org/zap"
)

// IssueLister is the listing endpoint the crawler drives.
type IssueLister interface {
	ListRepoIssues(ctx context.Context, owner, repo string, page, perPage int) (githubapi.IssuePageResult, error)
}

// PageSummary describes one crawled page and the derived listing totals.
// Estimated marks totals inferred from cursor navigation; callers must not
// present those as exact counts.
type PageSummary struct {
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	TotalPages  int  `json:"total_pages"`
	TotalIssues int  `json:"total_issues"`
	Estimated   bool `json:"estimated"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
}

// Config configures crawler page sizes and the safety cap.
type Config struct {
	PerPage  int
	MaxPages int
}

// Crawler walks the paginated issue listing. Page requests are strictly
// sequential: each page's next decision depends on the previous response.
type Crawler struct {
	lister IssueLister
	pacing githubapi.PacingPolicy
	cfg    Config
	logger *zap.Logger
	// Sleep is injected for testability.
	Sleep func(time.Duration)
}

// NewCrawler creates an issue listing crawler.
func NewCrawler(lister IssueLister, pacing githubapi.PacingPolicy, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 30
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		lister: lister,
		pacing: pacing,
		cfg:    cfg,
		logger: logger,
		Sleep:  time.Sleep,
	}
}

// CrawlPage fetches one listing page and derives listing totals from its
// link-relation metadata. Under numeric pagination it fetches the last page
// once to count exactly; under cursor pagination totals are estimates.
func (c *Crawler) CrawlPage(ctx context.Context, owner, repo string, page int) ([]githubapi.Issue, PageSummary, error) {
	if page <= 0 {
		page = 1
	}

	result, err := c.lister.ListRepoIssues(ctx, owner, repo, page, c.cfg.PerPage)
	if err != nil {
		return nil, PageSummary{}, fmt.Errorf("list issues page %d: %w", page, err)
	}
	if result.Status != githubapi.EndpointStatusOK {
		return nil, PageSummary{}, fmt.Errorf("list issues page %d returned status %q", page, result.Status)
	}

	summary := PageSummary{
		CurrentPage: page,
		PerPage:     c.cfg.PerPage,
		HasNextPage: result.Page.HasNext,
		HasPrevPage: result.Page.HasPrev,
	}

	switch {
	case result.Page.Strategy == githubapi.PageStrategyCursor:
		summary.Estimated = true
		if result.Page.HasNext {
			summary.TotalPages = page + 1
			summary.TotalIssues = summary.TotalPages * c.cfg.PerPage
		} else {
			summary.TotalPages = page
			summary.TotalIssues = (page-1)*c.cfg.PerPage + len(result.Issues)
		}
	case result.Page.LastPage > 0 && result.Page.LastPage != page:
		c.pausePerHeaders(result.Metadata.RateHeaders)
		lastResult, err := c.lister.ListRepoIssues(ctx, owner, repo, result.Page.LastPage, c.cfg.PerPage)
		if err != nil {
			return nil, PageSummary{}, fmt.Errorf("count issues on last page %d: %w", result.Page.LastPage, err)
		}
		if lastResult.Status != githubapi.EndpointStatusOK {
			return nil, PageSummary{}, fmt.Errorf("count issues on last page %d returned status %q", result.Page.LastPage, lastResult.Status)
		}
		summary.TotalPages = result.Page.LastPage
		summary.TotalIssues = (result.Page.LastPage-1)*c.cfg.PerPage + len(lastResult.Issues)
	case result.Page.LastPage == page:
		summary.TotalPages = page
		summary.TotalIssues = (page-1)*c.cfg.PerPage + len(result.Issues)
	default:
		// No last relation: the listing fits on this page.
		summary.TotalPages = 1
		summary.TotalIssues = len(result.Issues)
	}

	return result.Issues, summary, nil
}

// CrawlAll fetches every listing page until no next relation remains or the
// safety cap is reached, whichever comes first. It returns the accumulated
// issues and the number of pages actually fetched.
func (c *Crawler) CrawlAll(ctx context.Context, owner, repo string, perPage int) ([]githubapi.Issue, int, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = c.cfg.PerPage
	}

	var issues []githubapi.Issue
	pagesFetched := 0
	for page := 1; ; page++ {
		result, err := c.lister.ListRepoIssues(ctx, owner, repo, page, perPage)
		if err != nil {
			return nil, pagesFetched, fmt.Errorf("list issues page %d: %w", page, err)
		}
		if result.Status != githubapi.EndpointStatusOK {
			return nil, pagesFetched, fmt.Errorf("list issues page %d returned status %q", page, result.Status)
		}

		pagesFetched++
		issues = append(issues, result.Issues...)

		if !result.Page.HasNext {
			break
		}
		// The cap bounds worst-case latency and cost and wins over whatever
		// the API claims about remaining pages.
		if pagesFetched >= c.cfg.MaxPages {
			c.logger.Warn("crawl reached page safety cap",
				zap.String("owner", owner),
				zap.String("repo", repo),
				zap.Int("max_pages", c.cfg.MaxPages),
			)
			break
		}
		c.pausePerHeaders(result.Metadata.RateHeaders)
	}

	return issues, pagesFetched, nil
}

func (c *Crawler) pausePerHeaders(headers githubapi.RateLimitHeaders) {
	pacing := c.pacing.Evaluate(headers)
	if !pacing.Pause || pacing.Wait <= 0 {
		return
	}
	c.logger.Debug("pausing before next page",
		zap.Duration("wait", pacing.Wait),
		zap.String("reason", pacing.Reason),
	)
	c.Sleep(pacing.Wait)
}

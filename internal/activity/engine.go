package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/4bhiy23/open-cookie/internal/githubapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DataSource is the subset of the GitHub data client the engine consumes.
type DataSource interface {
	SearchCommits(ctx context.Context, author, owner, repo string, since time.Time) (githubapi.CommitSearchResult, error)
	SearchIssues(ctx context.Context, q githubapi.IssueSearchQuery) (githubapi.IssueSearchResult, error)
	ListIssueComments(ctx context.Context, owner, repo string, number int) (githubapi.IssueCommentsResult, error)
	ListIssueTimeline(ctx context.Context, owner, repo string, number int) (githubapi.IssueTimelineResult, error)
}

// ActivityWindows holds the windowed counts for both trailing windows.
type ActivityWindows struct {
	Last7Days  WindowedCounts `json:"last_7_days"`
	Last30Days WindowedCounts `json:"last_30_days"`
}

// AssigneeActivity is one classification result. It is created fresh per
// evaluation and never mutated afterward.
type AssigneeActivity struct {
	Login               string           `json:"login"`
	Status              Status           `json:"status"`
	ActivityLevel       string           `json:"activityLevel"`
	DaysSinceAssignment int              `json:"daysSinceAssignment"`
	Activity            *ActivityWindows `json:"activity"`
	Error               string           `json:"error,omitempty"`
}

// EngineConfig configures classification windows and per-fetch timeouts.
type EngineConfig struct {
	RecentWindow   time.Duration
	TotalWindow    time.Duration
	GracePeriod    time.Duration
	RequestTimeout time.Duration
}

// Engine aggregates an assignee's work signals from five independent
// sources and classifies them. Classify never returns an error: every
// failure path degrades into either an empty source or an error-status
// record.
type Engine struct {
	source     DataSource
	classifier Classifier
	cfg        EngineConfig
	logger     *zap.Logger
	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewEngine creates a classification engine.
func NewEngine(source DataSource, cfg EngineConfig, logger *zap.Logger) *Engine {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 7 * 24 * time.Hour
	}
	if cfg.TotalWindow <= 0 {
		cfg.TotalWindow = 30 * 24 * time.Hour
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 3 * 24 * time.Hour
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		source:     source,
		classifier: Classifier{GracePeriodDays: int(cfg.GracePeriod.Hours() / 24)},
		cfg:        cfg,
		logger:     logger,
		Now:        time.Now,
	}
}

// Classify evaluates one assignee on one issue.
func (e *Engine) Classify(ctx context.Context, issue githubapi.Issue, assignee, owner, repo string) (result AssigneeActivity) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("classification panicked",
				zap.String("assignee", assignee),
				zap.Int("issue", issue.Number),
				zap.Any("panic", recovered),
			)
			result = AssigneeActivity{
				Login:         assignee,
				Status:        StatusError,
				ActivityLevel: "Error analyzing activity",
				Error:         fmt.Sprintf("classification panicked: %v", recovered),
			}
		}
	}()

	now := e.Now()
	totalCutoff := now.Add(-e.cfg.TotalWindow)
	recentCutoff := now.Add(-e.cfg.RecentWindow)

	set := e.fetchSources(ctx, issue, assignee, owner, repo, totalCutoff)

	// Scores count only the assignee's own samples, but the no-data check
	// runs on the raw set: anyone's comment or timeline event proves the
	// sources were reachable, so a silent assignee reads as inactive rather
	// than as an API outage.
	attributed := set.AttributedTo(assignee)
	countsTotal := CountWindow(attributed, totalCutoff)
	countsRecent := CountWindow(attributed, recentCutoff)

	daysSinceAssignment := 0
	if !issue.UpdatedAt.IsZero() {
		daysSinceAssignment = int(now.Sub(issue.UpdatedAt).Hours() / 24)
	}

	verdict := e.classifier.Classify(ClassifierInput{
		HasAnyData:          set.HasAnyData(),
		TotalScore:          countsTotal.Score,
		RecentScore:         countsRecent.Score,
		DaysSinceAssignment: daysSinceAssignment,
	})

	return AssigneeActivity{
		Login:               assignee,
		Status:              verdict.Status,
		ActivityLevel:       verdict.Reason,
		DaysSinceAssignment: daysSinceAssignment,
		Activity: &ActivityWindows{
			Last7Days:  countsRecent,
			Last30Days: countsTotal,
		},
	}
}

// fetchSources runs the five source fetches concurrently. Each degrades to
// empty on its own failure; none can cancel a sibling.
func (e *Engine) fetchSources(ctx context.Context, issue githubapi.Issue, assignee, owner, repo string, since time.Time) SourceSet {
	var set SourceSet

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(groupCtx, e.cfg.RequestTimeout)
		defer cancel()

		commits, err := e.source.SearchCommits(fetchCtx, assignee, owner, repo, since)
		if !e.sourceUsable(SourceCommits, assignee, commits.Status, err) {
			return nil
		}
		for _, commit := range commits.Commits {
			set.Commits = append(set.Commits, Sample{
				Kind:       SourceCommits,
				Actor:      commit.Author,
				OccurredAt: commit.AuthoredAt,
			})
		}
		return nil
	})

	group.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(groupCtx, e.cfg.RequestTimeout)
		defer cancel()

		pulls, err := e.source.SearchIssues(fetchCtx, githubapi.IssueSearchQuery{
			Owner:        owner,
			Repo:         repo,
			Author:       assignee,
			PullsOnly:    true,
			UpdatedAfter: since,
		})
		if !e.sourceUsable(SourcePulls, assignee, pulls.Status, err) {
			return nil
		}
		for _, pull := range pulls.Items {
			set.Pulls = append(set.Pulls, Sample{
				Kind:       SourcePulls,
				Actor:      pull.Author,
				OccurredAt: pull.UpdatedAt,
			})
		}
		return nil
	})

	group.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(groupCtx, e.cfg.RequestTimeout)
		defer cancel()

		issues, err := e.source.SearchIssues(fetchCtx, githubapi.IssueSearchQuery{
			Owner:        owner,
			Repo:         repo,
			Assignee:     assignee,
			UpdatedAfter: since,
		})
		if !e.sourceUsable(SourceIssues, assignee, issues.Status, err) {
			return nil
		}
		for _, item := range issues.Items {
			set.Issues = append(set.Issues, Sample{
				Kind:       SourceIssues,
				Actor:      assignee,
				OccurredAt: item.UpdatedAt,
			})
		}
		return nil
	})

	group.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(groupCtx, e.cfg.RequestTimeout)
		defer cancel()

		comments, err := e.source.ListIssueComments(fetchCtx, owner, repo, issue.Number)
		if !e.sourceUsable(SourceComments, assignee, comments.Status, err) {
			return nil
		}
		for _, comment := range comments.Comments {
			set.Comments = append(set.Comments, Sample{
				Kind:       SourceComments,
				Actor:      comment.User,
				OccurredAt: comment.UpdatedAt,
			})
		}
		return nil
	})

	group.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(groupCtx, e.cfg.RequestTimeout)
		defer cancel()

		events, err := e.source.ListIssueTimeline(fetchCtx, owner, repo, issue.Number)
		if !e.sourceUsable(SourceEvents, assignee, events.Status, err) {
			return nil
		}
		for _, event := range events.Events {
			set.Events = append(set.Events, Sample{
				Kind:       SourceEvents,
				Actor:      event.Actor,
				OccurredAt: event.CreatedAt,
			})
		}
		return nil
	})

	// Goroutines only ever return nil, so Wait cannot fail and no source
	// can cancel its siblings through the group context.
	_ = group.Wait()
	return set
}

// sourceUsable decides whether one source's response contributes samples.
// Rate limiting is expected steady-state behavior and stays at debug.
func (e *Engine) sourceUsable(kind SourceKind, assignee string, status githubapi.EndpointStatus, err error) bool {
	if err != nil {
		e.logger.Warn("activity source degraded to empty",
			zap.String("source", string(kind)),
			zap.String("assignee", assignee),
			zap.Error(err),
		)
		return false
	}
	if status == githubapi.EndpointStatusForbidden {
		e.logger.Debug("activity source rate limited",
			zap.String("source", string(kind)),
			zap.String("assignee", assignee),
		)
		return false
	}
	if status != githubapi.EndpointStatusOK {
		e.logger.Warn("activity source returned non-ok status",
			zap.String("source", string(kind)),
			zap.String("assignee", assignee),
			zap.String("status", string(status)),
		)
		return false
	}
	return true
}

package report

import (
	"context"
	"sync"
	"time"

	"github.com/4bhiy23/open-cookie/internal/activity"
	"github.com/4bhiy23/open-cookie/internal/githubapi"
	"go.uber.org/zap"
)

// Classifier evaluates one assignee's recent activity on an issue.
type Classifier interface {
	Classify(ctx context.Context, issue githubapi.Issue, assignee, owner, repo string) activity.AssigneeActivity
}

// IssueRecord is one categorized issue as served to clients. Unassigned
// issues carry null claim fields and a null activity block.
type IssueRecord struct {
	IssueNumber      int                        `json:"issue_number"`
	Title            string                     `json:"title"`
	ClaimedBy        *string                    `json:"claimed_by"`
	AssignedAt       *time.Time                 `json:"assigned_at"`
	LastActivity     time.Time                  `json:"last_activity"`
	HasPullRequest   bool                       `json:"has_pull_request"`
	Category         activity.Category          `json:"category"`
	URL              string                     `json:"url"`
	State            string                     `json:"state"`
	AssigneeActivity *activity.AssigneeActivity `json:"assignee_activity"`
}

// CategoryCounts holds per-category issue counts.
type CategoryCounts struct {
	Active     int `json:"active"`
	AtRisk     int `json:"at-risk"`
	Dormant    int `json:"dormant"`
	Inactive   int `json:"inactive"`
	Unassigned int `json:"unassigned"`
	Error      int `json:"error"`
}

// AssigneeSummary counts assignees by classified status. Unassigned issues
// contribute nothing here.
type AssigneeSummary struct {
	Active   int `json:"active"`
	AtRisk   int `json:"at-risk"`
	Dormant  int `json:"dormant"`
	Inactive int `json:"inactive"`
	Error    int `json:"error"`
}

// Grouped partitions issue records by category.
type Grouped struct {
	Active     []IssueRecord `json:"active"`
	AtRisk     []IssueRecord `json:"at-risk"`
	Dormant    []IssueRecord `json:"dormant"`
	Inactive   []IssueRecord `json:"inactive"`
	Unassigned []IssueRecord `json:"unassigned"`
	Error      []IssueRecord `json:"error"`
}

// Report is the categorized view of a set of issues.
type Report struct {
	Total           int             `json:"total"`
	Categories      CategoryCounts  `json:"categories"`
	AssigneeSummary AssigneeSummary `json:"assignee_summary"`
	Issues          []IssueRecord   `json:"issues"`
	Categorized     Grouped         `json:"categorized"`
}

// Builder turns crawled issues into categorized reports using a bounded
// worker pool over the activity classifier.
type Builder struct {
	classifier  Classifier
	concurrency int
	logger      *zap.Logger
}

// NewBuilder creates a report builder. Concurrency bounds how many issues
// are classified at once.
func NewBuilder(classifier Classifier, concurrency int, logger *zap.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		classifier:  classifier,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Build classifies every issue and assembles the grouped report. Records
// keep the listing order of the input. Classification failures never abort
// the build; they surface as error-category records.
func (b *Builder) Build(ctx context.Context, owner, repo string, issues []githubapi.Issue) Report {
	records := make([]IssueRecord, len(issues))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := b.concurrency
	if workers > len(issues) {
		workers = len(issues)
	}
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = b.buildRecord(ctx, owner, repo, issues[i])
			}
		}()
	}
	for i := range issues {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return assemble(records)
}

func (b *Builder) buildRecord(ctx context.Context, owner, repo string, issue githubapi.Issue) IssueRecord {
	record := IssueRecord{
		IssueNumber:    issue.Number,
		Title:          issue.Title,
		LastActivity:   issue.UpdatedAt,
		HasPullRequest: issue.HasPullRequest,
		URL:            issue.URL,
		State:          issue.State,
	}

	if issue.Assignee == "" {
		record.Category = activity.Categorize(issue, nil)
		return record
	}

	login := issue.Assignee
	assignedAt := issue.UpdatedAt
	record.ClaimedBy = &login
	record.AssignedAt = &assignedAt

	result := b.classifier.Classify(ctx, issue, issue.Assignee, owner, repo)
	record.AssigneeActivity = &result
	record.Category = activity.Categorize(issue, &result)
	return record
}

func assemble(records []IssueRecord) Report {
	rep := Report{
		Total:  len(records),
		Issues: records,
		Categorized: Grouped{
			Active:     []IssueRecord{},
			AtRisk:     []IssueRecord{},
			Dormant:    []IssueRecord{},
			Inactive:   []IssueRecord{},
			Unassigned: []IssueRecord{},
			Error:      []IssueRecord{},
		},
	}
	if rep.Issues == nil {
		rep.Issues = []IssueRecord{}
	}

	for _, record := range records {
		switch record.Category {
		case activity.CategoryActive:
			rep.Categorized.Active = append(rep.Categorized.Active, record)
			rep.Categories.Active++
		case activity.CategoryAtRisk:
			rep.Categorized.AtRisk = append(rep.Categorized.AtRisk, record)
			rep.Categories.AtRisk++
		case activity.CategoryDormant:
			rep.Categorized.Dormant = append(rep.Categorized.Dormant, record)
			rep.Categories.Dormant++
		case activity.CategoryInactive:
			rep.Categorized.Inactive = append(rep.Categorized.Inactive, record)
			rep.Categories.Inactive++
		case activity.CategoryUnassigned:
			rep.Categorized.Unassigned = append(rep.Categorized.Unassigned, record)
			rep.Categories.Unassigned++
		default:
			rep.Categorized.Error = append(rep.Categorized.Error, record)
			rep.Categories.Error++
		}

		if record.AssigneeActivity == nil {
			continue
		}
		switch record.AssigneeActivity.Status {
		case activity.StatusActive:
			rep.AssigneeSummary.Active++
		case activity.StatusAtRisk:
			rep.AssigneeSummary.AtRisk++
		case activity.StatusDormant:
			rep.AssigneeSummary.Dormant++
		case activity.StatusInactive:
			rep.AssigneeSummary.Inactive++
		default:
			rep.AssigneeSummary.Error++
		}
	}

	return rep
}

package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/4bhiy23/open-cookie/internal/activity"
	"github.com/4bhiy23/open-cookie/internal/githubapi"
	"go.uber.org/zap"
)

// statusClassifier returns a fixed status per assignee login.
type statusClassifier struct {
	mu       sync.Mutex
	statuses map[string]activity.Status
	calls    []string
}

func (c *statusClassifier) Classify(_ context.Context, _ githubapi.Issue, assignee, _, _ string) activity.AssigneeActivity {
	c.mu.Lock()
	c.calls = append(c.calls, assignee)
	c.mu.Unlock()

	status, ok := c.statuses[assignee]
	if !ok {
		status = activity.StatusActive
	}
	return activity.AssigneeActivity{Login: assignee, Status: status}
}

func TestBuildRecordShape(t *testing.T) {
	t.Parallel()

	updated := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	issues := []githubapi.Issue{
		{
			Number:         42,
			Title:          "Fix the widget",
			State:          "open",
			URL:            "https://github.com/octo/widgets/issues/42",
			Assignee:       "alice",
			UpdatedAt:      updated,
			HasPullRequest: true,
		},
		{
			Number:    43,
			Title:     "Nobody claimed this",
			State:     "open",
			URL:       "https://github.com/octo/widgets/issues/43",
			UpdatedAt: updated,
		},
	}

	classifier := &statusClassifier{statuses: map[string]activity.Status{"alice": activity.StatusActive}}
	builder := NewBuilder(classifier, 4, zap.NewNop())

	rep := builder.Build(context.Background(), "octo", "widgets", issues)

	if rep.Total != 2 {
		t.Fatalf("Total = %d, want 2", rep.Total)
	}

	claimed := rep.Issues[0]
	if claimed.IssueNumber != 42 || claimed.Title != "Fix the widget" {
		t.Fatalf("record = %+v", claimed)
	}
	if claimed.ClaimedBy == nil || *claimed.ClaimedBy != "alice" {
		t.Fatalf("ClaimedBy = %v, want alice", claimed.ClaimedBy)
	}
	if claimed.AssignedAt == nil || !claimed.AssignedAt.Equal(updated) {
		t.Fatalf("AssignedAt = %v, want %v", claimed.AssignedAt, updated)
	}
	if !claimed.HasPullRequest {
		t.Fatal("HasPullRequest = false, want true")
	}
	if claimed.Category != activity.CategoryActive {
		t.Fatalf("Category = %q, want active", claimed.Category)
	}
	if claimed.AssigneeActivity == nil || claimed.AssigneeActivity.Login != "alice" {
		t.Fatalf("AssigneeActivity = %+v", claimed.AssigneeActivity)
	}

	unclaimed := rep.Issues[1]
	if unclaimed.ClaimedBy != nil || unclaimed.AssignedAt != nil {
		t.Fatalf("unassigned record carries claim fields: %+v", unclaimed)
	}
	if unclaimed.AssigneeActivity != nil {
		t.Fatal("unassigned record carries activity, want nil")
	}
	if unclaimed.Category != activity.CategoryUnassigned {
		t.Fatalf("Category = %q, want unassigned", unclaimed.Category)
	}
}

func TestBuildGroupsAndCounts(t *testing.T) {
	t.Parallel()

	issues := []githubapi.Issue{
		{Number: 1, Assignee: "active-dev"},
		{Number: 2, Assignee: "risky-dev"},
		{Number: 3, Assignee: "dormant-dev"},
		{Number: 4, Assignee: "inactive-dev"},
		{Number: 5},
		{Number: 6, Assignee: "broken-dev"},
		{Number: 7, Assignee: "active-dev"},
	}

	classifier := &statusClassifier{statuses: map[string]activity.Status{
		"active-dev":   activity.StatusActive,
		"risky-dev":    activity.StatusAtRisk,
		"dormant-dev":  activity.StatusDormant,
		"inactive-dev": activity.StatusInactive,
		"broken-dev":   activity.StatusError,
	}}
	builder := NewBuilder(classifier, 3, zap.NewNop())

	rep := builder.Build(context.Background(), "octo", "widgets", issues)

	wantCategories := CategoryCounts{Active: 2, AtRisk: 1, Dormant: 1, Inactive: 1, Unassigned: 1, Error: 1}
	if rep.Categories != wantCategories {
		t.Fatalf("Categories = %+v, want %+v", rep.Categories, wantCategories)
	}

	// The unassigned issue contributes nothing to the assignee summary.
	wantSummary := AssigneeSummary{Active: 2, AtRisk: 1, Dormant: 1, Inactive: 1, Error: 1}
	if rep.AssigneeSummary != wantSummary {
		t.Fatalf("AssigneeSummary = %+v, want %+v", rep.AssigneeSummary, wantSummary)
	}

	if len(rep.Categorized.Active) != 2 || len(rep.Categorized.Error) != 1 {
		t.Fatalf("Categorized = %+v", rep.Categorized)
	}
	if rep.Categorized.Unassigned[0].IssueNumber != 5 {
		t.Fatalf("Unassigned[0] = %+v, want issue 5", rep.Categorized.Unassigned[0])
	}
}

func TestBuildPreservesListingOrder(t *testing.T) {
	t.Parallel()

	var issues []githubapi.Issue
	for i := 1; i <= 40; i++ {
		issues = append(issues, githubapi.Issue{Number: i, Assignee: "dev"})
	}

	builder := NewBuilder(&statusClassifier{}, 8, zap.NewNop())
	rep := builder.Build(context.Background(), "octo", "widgets", issues)

	if len(rep.Issues) != 40 {
		t.Fatalf("len(Issues) = %d, want 40", len(rep.Issues))
	}
	for i, record := range rep.Issues {
		if record.IssueNumber != i+1 {
			t.Fatalf("Issues[%d].IssueNumber = %d, want %d", i, record.IssueNumber, i+1)
		}
	}
}

func TestBuildEmptyListing(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(&statusClassifier{}, 8, zap.NewNop())
	rep := builder.Build(context.Background(), "octo", "widgets", nil)

	if rep.Total != 0 {
		t.Fatalf("Total = %d, want 0", rep.Total)
	}
	if rep.Issues == nil {
		t.Fatal("Issues = nil, want empty slice")
	}
	if rep.Categorized.Active == nil || rep.Categorized.Error == nil {
		t.Fatal("Categorized groups must be empty slices, not nil")
	}
}

func TestBuildSkipsClassifierForUnassigned(t *testing.T) {
	t.Parallel()

	issues := []githubapi.Issue{
		{Number: 1},
		{Number: 2, Assignee: "dev"},
		{Number: 3},
	}

	classifier := &statusClassifier{}
	builder := NewBuilder(classifier, 2, zap.NewNop())
	builder.Build(context.Background(), "octo", "widgets", issues)

	if len(classifier.calls) != 1 || classifier.calls[0] != "dev" {
		t.Fatalf("classifier calls = %v, want [dev]", classifier.calls)
	}
}

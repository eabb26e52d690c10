package activity

import "github.com/4bhiy23/open-cookie/internal/githubapi"

// Category is the final grouping attached to an issue. It extends the
// classifier statuses with unassigned, which the classifier itself never
// produces.
type Category string

const (
	// CategoryActive groups issues with actively working assignees.
	CategoryActive Category = "active"
	// CategoryAtRisk groups issues whose assignees are slowing down.
	CategoryAtRisk Category = "at-risk"
	// CategoryDormant groups issues with barely any assignee signal.
	CategoryDormant Category = "dormant"
	// CategoryInactive groups issues whose assignees have gone quiet.
	CategoryInactive Category = "inactive"
	// CategoryUnassigned groups issues nobody has claimed.
	CategoryUnassigned Category = "unassigned"
	// CategoryError groups issues whose evaluation failed.
	CategoryError Category = "error"
)

// Categories lists every category in presentation order.
var Categories = []Category{
	CategoryActive,
	CategoryAtRisk,
	CategoryDormant,
	CategoryInactive,
	CategoryUnassigned,
	CategoryError,
}

// Categorize composes assignee presence with the classifier outcome.
func Categorize(issue githubapi.Issue, assigneeActivity *AssigneeActivity) Category {
	if issue.Assignee == "" {
		return CategoryUnassigned
	}
	if assigneeActivity == nil || assigneeActivity.Status == StatusError {
		return CategoryError
	}
	return Category(assigneeActivity.Status)
}

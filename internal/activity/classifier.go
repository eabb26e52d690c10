package activity

// Status is the lifecycle state assigned to an assignee's recent activity.
type Status string

const (
	// StatusActive indicates frequent and consistent recent activity.
	StatusActive Status = "active"
	// StatusAtRisk indicates some activity, but not enough or not recent.
	StatusAtRisk Status = "at-risk"
	// StatusDormant indicates very little activity, or no signal at all.
	StatusDormant Status = "dormant"
	// StatusInactive indicates older activity exists but none in the window.
	StatusInactive Status = "inactive"
	// StatusError indicates the evaluation itself failed.
	StatusError Status = "error"
)

// Verdict is the classifier outcome: a status plus the human-readable
// explanation shown alongside it.
type Verdict struct {
	Status Status
	Reason string
}

// ClassifierInput is the reduced signal tuple the decision table runs on.
type ClassifierInput struct {
	// HasAnyData is true when any source returned at least one raw sample
	// for the full lookback. When false we cannot tell "truly idle" from
	// "the tracker could not be checked", so the policy assumes dormant.
	HasAnyData          bool
	TotalScore          int
	RecentScore         int
	DaysSinceAssignment int
}

type rule struct {
	matches func(in ClassifierInput) bool
	verdict Verdict
}

// Rules are evaluated top-down; they are not mutually exclusive, so order
// encodes precedence and must not be rearranged.
var rules = []rule{
	{
		matches: func(in ClassifierInput) bool { return !in.HasAnyData },
		verdict: Verdict{StatusDormant, "Activity monitoring unavailable - assumed dormant"},
	},
	{
		matches: func(in ClassifierInput) bool { return in.TotalScore == 0 },
		verdict: Verdict{StatusInactive, "No activity in last 30 days"},
	},
	{
		matches: func(in ClassifierInput) bool { return in.TotalScore <= 2 },
		verdict: Verdict{StatusDormant, "Very minimal activity"},
	},
	{
		matches: func(in ClassifierInput) bool { return in.TotalScore <= 5 },
		verdict: Verdict{StatusAtRisk, "Low activity - at risk of becoming inactive"},
	},
	{
		matches: func(in ClassifierInput) bool { return in.RecentScore >= 3 },
		verdict: Verdict{StatusActive, "Frequent and consistent activity"},
	},
	{
		matches: func(in ClassifierInput) bool { return in.TotalScore >= 6 },
		verdict: Verdict{StatusAtRisk, "Some activity but not recent"},
	},
	{
		matches: func(in ClassifierInput) bool { return true },
		verdict: Verdict{StatusDormant, "Minimal activity detected"},
	},
}

// Classifier maps reduced activity signals onto a status.
type Classifier struct {
	// GracePeriodDays is the assignment age below which an inactive verdict
	// is softened to dormant.
	GracePeriodDays int
}

// NewClassifier creates a classifier with the default 3-day grace period.
func NewClassifier() Classifier {
	return Classifier{GracePeriodDays: 3}
}

// Classify runs the ordered decision table and applies the grace-period
// adjustment. It is total: every input resolves to exactly one verdict.
func (c Classifier) Classify(in ClassifierInput) Verdict {
	var verdict Verdict
	for _, r := range rules {
		if r.matches(in) {
			verdict = r.verdict
			break
		}
	}

	// A brand-new assignment cannot yet be judged inactive.
	graceDays := c.GracePeriodDays
	if graceDays <= 0 {
		graceDays = 3
	}
	if in.DaysSinceAssignment < graceDays && verdict.Status == StatusInactive {
		return Verdict{StatusDormant, "Recently assigned - monitoring activity"}
	}
	return verdict
}

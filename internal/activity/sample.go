package activity

import "time"

// SourceKind identifies which work-signal source produced a sample.
type SourceKind string

const (
	// SourceCommits are commits authored by the assignee.
	SourceCommits SourceKind = "commits"
	// SourcePulls are pull requests authored by the assignee.
	SourcePulls SourceKind = "prs"
	// SourceIssues are recently-updated issues assigned to the assignee.
	SourceIssues SourceKind = "issues"
	// SourceComments are comments on the evaluated issue, from any participant.
	SourceComments SourceKind = "comments"
	// SourceEvents are timeline events on the evaluated issue, from any actor.
	SourceEvents SourceKind = "events"
)

// Sample is one raw work event. OccurredAt is read from the source-correct
// timestamp field: author date for commits, update time for pull requests,
// issues, and comments, creation time for timeline events.
type Sample struct {
	Kind       SourceKind
	Actor      string
	OccurredAt time.Time
}

// SourceSet holds the raw samples from all five sources for one evaluation.
// Comment and timeline samples cover every participant on the issue, not
// just the assignee. A source that failed or was rate-limited is simply
// empty here; the scorer never learns which sources degraded.
type SourceSet struct {
	Commits  []Sample
	Pulls    []Sample
	Issues   []Sample
	Comments []Sample
	Events   []Sample
}

// HasAnyData reports whether any source returned at least one raw sample,
// regardless of who produced it. An issue where only other people commented
// still counts as having data.
func (s SourceSet) HasAnyData() bool {
	return len(s.Commits) > 0 ||
		len(s.Pulls) > 0 ||
		len(s.Issues) > 0 ||
		len(s.Comments) > 0 ||
		len(s.Events) > 0
}

// AttributedTo returns the samples that count toward login's score. Commit,
// pull, and issue samples are already scoped to the assignee by their search
// queries; comments and timeline events arrive for every participant and are
// narrowed here.
func (s SourceSet) AttributedTo(login string) SourceSet {
	return SourceSet{
		Commits:  s.Commits,
		Pulls:    s.Pulls,
		Issues:   s.Issues,
		Comments: filterActor(s.Comments, login),
		Events:   filterActor(s.Events, login),
	}
}

func filterActor(samples []Sample, login string) []Sample {
	var kept []Sample
	for _, sample := range samples {
		if sample.Actor == login {
			kept = append(kept, sample)
		}
	}
	return kept
}

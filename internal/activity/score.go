package activity

// Signal weights. A commit is the strongest evidence that the assignee is
// actually working; a bare timeline event is the weakest.
const (
	weightCommit  = 3
	weightPull    = 2
	weightIssue   = 1
	weightComment = 2
	weightEvent   = 1
)

// Score computes the weighted activity score for one window.
func Score(counts WindowedCounts) int {
	return counts.Commits*weightCommit +
		counts.Pulls*weightPull +
		counts.Issues*weightIssue +
		counts.Comments*weightComment +
		counts.Events*weightEvent
}

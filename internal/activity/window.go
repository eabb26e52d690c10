package activity

import "time"

// WindowedCounts are per-source sample counts inside one trailing window,
// plus the weighted score computed from them.
type WindowedCounts struct {
	Commits  int `json:"commits"`
	Pulls    int `json:"prs"`
	Issues   int `json:"issues"`
	Comments int `json:"comments"`
	Events   int `json:"events"`
	Score    int `json:"score"`
}

// FilterAfter returns the samples with a timestamp strictly after cutoff.
func FilterAfter(samples []Sample, cutoff time.Time) []Sample {
	var filtered []Sample
	for _, sample := range samples {
		if sample.OccurredAt.After(cutoff) {
			filtered = append(filtered, sample)
		}
	}
	return filtered
}

// CountWindow filters every source to the cutoff and scores the result.
func CountWindow(set SourceSet, cutoff time.Time) WindowedCounts {
	counts := WindowedCounts{
		Commits:  len(FilterAfter(set.Commits, cutoff)),
		Pulls:    len(FilterAfter(set.Pulls, cutoff)),
		Issues:   len(FilterAfter(set.Issues, cutoff)),
		Comments: len(FilterAfter(set.Comments, cutoff)),
		Events:   len(FilterAfter(set.Events, cutoff)),
	}
	counts.Score = Score(counts)
	return counts
}

package activity

import (
	"testing"
	"time"
)

func TestFilterAfter(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Kind: SourceCommits, OccurredAt: cutoff.Add(-time.Hour)},
		{Kind: SourceCommits, OccurredAt: cutoff},
		{Kind: SourceCommits, OccurredAt: cutoff.Add(time.Second)},
		{Kind: SourceCommits, OccurredAt: cutoff.Add(48 * time.Hour)},
	}

	got := FilterAfter(samples, cutoff)
	if len(got) != 2 {
		t.Fatalf("len(FilterAfter()) = %d, want 2", len(got))
	}
	for _, sample := range got {
		if !sample.OccurredAt.After(cutoff) {
			t.Fatalf("FilterAfter() kept sample at %v, cutoff %v", sample.OccurredAt, cutoff)
		}
	}

	if got := FilterAfter(nil, cutoff); got != nil {
		t.Fatalf("FilterAfter(nil) = %v, want nil", got)
	}
}

func TestCountWindow(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	in := cutoff.Add(time.Hour)
	out := cutoff.Add(-time.Hour)

	set := SourceSet{
		Commits:  []Sample{{OccurredAt: in}, {OccurredAt: in}, {OccurredAt: out}},
		Pulls:    []Sample{{OccurredAt: in}},
		Issues:   []Sample{{OccurredAt: out}},
		Comments: []Sample{{OccurredAt: in}, {OccurredAt: in}},
		Events:   []Sample{{OccurredAt: in}, {OccurredAt: out}},
	}

	got := CountWindow(set, cutoff)
	want := WindowedCounts{Commits: 2, Pulls: 1, Issues: 0, Comments: 2, Events: 1}
	want.Score = 2*3 + 1*2 + 0*1 + 2*2 + 1*1
	if got != want {
		t.Fatalf("CountWindow() = %+v, want %+v", got, want)
	}
}

func TestScoreWeights(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		counts WindowedCounts
		want   int
	}{
		{"empty", WindowedCounts{}, 0},
		{"one commit", WindowedCounts{Commits: 1}, 3},
		{"one pull", WindowedCounts{Pulls: 1}, 2},
		{"one issue", WindowedCounts{Issues: 1}, 1},
		{"one comment", WindowedCounts{Comments: 1}, 2},
		{"one event", WindowedCounts{Events: 1}, 1},
		{"mixed", WindowedCounts{Commits: 2, Pulls: 1, Issues: 3, Comments: 2, Events: 4}, 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Score(tt.counts); got != tt.want {
				t.Fatalf("Score(%+v) = %d, want %d", tt.counts, got, tt.want)
			}
		})
	}
}

func TestSourceSetAttributedTo(t *testing.T) {
	t.Parallel()

	when := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	set := SourceSet{
		Commits: []Sample{{Actor: "alice", OccurredAt: when}},
		Pulls:   []Sample{{Actor: "alice", OccurredAt: when}},
		Issues:  []Sample{{Actor: "alice", OccurredAt: when}},
		Comments: []Sample{
			{Actor: "alice", OccurredAt: when},
			{Actor: "someone-else", OccurredAt: when},
		},
		Events: []Sample{
			{Actor: "someone-else", OccurredAt: when},
			{Actor: "someone-else", OccurredAt: when},
		},
	}

	got := set.AttributedTo("alice")
	if len(got.Comments) != 1 || got.Comments[0].Actor != "alice" {
		t.Fatalf("AttributedTo().Comments = %+v, want alice's only", got.Comments)
	}
	if len(got.Events) != 0 {
		t.Fatalf("AttributedTo().Events = %+v, want empty", got.Events)
	}
	// Query-scoped sources pass through untouched.
	if len(got.Commits) != 1 || len(got.Pulls) != 1 || len(got.Issues) != 1 {
		t.Fatalf("AttributedTo() dropped query-scoped samples: %+v", got)
	}

	// Narrowing never erases the raw-data signal on the original set.
	if !set.HasAnyData() {
		t.Fatal("HasAnyData() = false on raw set, want true")
	}
}

func TestSourceSetHasAnyData(t *testing.T) {
	t.Parallel()

	if (SourceSet{}).HasAnyData() {
		t.Fatal("HasAnyData() = true for empty set, want false")
	}
	set := SourceSet{Events: []Sample{{OccurredAt: time.Now()}}}
	if !set.HasAnyData() {
		t.Fatal("HasAnyData() = false with one event, want true")
	}
}

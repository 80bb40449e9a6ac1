package rank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/howell-aikit/ideaflow/internal/inspect"
	"github.com/howell-aikit/ideaflow/internal/llm"
	"github.com/howell-aikit/ideaflow/internal/llm/llmtest"
	"github.com/howell-aikit/ideaflow/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requirements = state.ProjectSummary{
	Purpose:   "Track habits",
	Platform:  "web",
	TechStack: "Go",
}

func candidate(n string) state.Candidate {
	return state.Candidate{Title: "repo-" + n, URL: "https://github.com/acme/" + n, Description: "desc " + n}
}

func scored(n string, score int) state.Evaluation {
	return state.Evaluation{Candidate: candidate(n), SuitabilityScore: score}
}

func TestEvaluateParsesReply(t *testing.T) {
	c := llmtest.NewScripted(llmtest.Text(`{
		"pros": ["Go backend", "MIT license"],
		"cons": "No mobile client",
		"suitability_score": "8/10",
		"summary": "Good fit.",
		"tech_match": ["Go"],
		"feature_match": [],
		"modification_effort": "Medium"
	}`))
	repo := inspect.RepoContent{Stars: 10, Forks: 2, Languages: []string{"Go"}, Readme: "readme"}

	got := NewRanker(c, nil).Evaluate(context.Background(), repo, candidate("a"), requirements)

	want := state.Evaluation{
		Candidate:          candidate("a"),
		Pros:               []string{"Go backend", "MIT license"},
		Cons:               []string{"No mobile client"},
		SuitabilityScore:   8,
		Summary:            "Good fit.",
		TechMatch:          []string{"Go"},
		FeatureMatch:       []string{},
		ModificationEffort: "Medium",
		Metadata:           &state.Metadata{Stars: 10, Forks: 2, Languages: []string{"Go"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 1, c.Calls())
	assert.Contains(t, c.Requests[0].System, "Purpose: Track habits")
	assert.Contains(t, c.Requests[0].User, "Repository: repo-a")
	assert.Contains(t, c.Requests[0].System, llm.JSONInstruction)
}

func TestEvaluateClampsAndDefaults(t *testing.T) {
	c := llmtest.NewScripted(llmtest.Text(`{"suitability_score": 15}`))
	got := NewRanker(c, nil).Evaluate(context.Background(), inspect.RepoContent{}, candidate("a"), requirements)

	assert.Equal(t, MaxScore, got.SuitabilityScore)
	assert.Equal(t, "Unknown", got.ModificationEffort)
	assert.Equal(t, []string{}, got.Pros)
}

func TestEvaluateFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		completer   llm.Completer
		wantScore   int
		wantSummary string
	}{
		{
			name:        "unavailable",
			completer:   llmtest.Unavailable,
			wantScore:   UnavailableScore,
			wantSummary: "This project was found in the search results but detailed evaluation failed.",
		},
		{
			name:        "transport error",
			completer:   llmtest.NewScripted(llmtest.Fail(errors.New("timeout"))),
			wantScore:   ErrorScore,
			wantSummary: "Evaluation failed with error: timeout",
		},
		{
			name:      "malformed",
			completer: llmtest.NewScripted(llmtest.Text("not json")),
			wantScore: ErrorScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRanker(tt.completer, nil).Evaluate(context.Background(), inspect.RepoContent{Stars: 5}, candidate("a"), requirements)
			assert.Equal(t, tt.wantScore, got.SuitabilityScore)
			assert.Nil(t, got.Metadata)
			assert.NotEmpty(t, got.Pros)
			assert.NotEmpty(t, got.Cons)
			assert.Equal(t, candidate("a"), got.Candidate)
			if tt.wantSummary != "" {
				assert.Equal(t, tt.wantSummary, got.Summary)
			}
		})
	}
}

func TestBuildContextTruncates(t *testing.T) {
	repo := inspect.RepoContent{
		Readme:     strings.Repeat("r", 5000),
		RawContent: strings.Repeat("w", 5000),
		Files:      []string{strings.Repeat("f", 400)},
	}
	got := BuildContext(repo, candidate("a"))

	assert.Contains(t, got, "Languages: Unknown")
	assert.Contains(t, got, strings.Repeat("r", 3000)+"\n")
	assert.NotContains(t, got, strings.Repeat("r", 3001))
	assert.NotContains(t, got, strings.Repeat("w", 2001))
	assert.NotContains(t, got, strings.Repeat("f", 301))
	assert.True(t, strings.HasSuffix(got, "matches our project requirements."))
}

func TestSelectBestEmpty(t *testing.T) {
	c := llmtest.NewScripted()
	got := NewRanker(c, nil).SelectBest(context.Background(), nil, requirements)

	assert.Equal(t, "No valid project found", got.Title)
	assert.Empty(t, got.URL)
	assert.Equal(t, -1, got.Index)
	assert.False(t, got.Found())
	assert.Zero(t, c.Calls())
}

func TestSelectBestSingleSkipsService(t *testing.T) {
	c := llmtest.NewScripted()
	evals := []state.Evaluation{scored("a", 2)}

	got := NewRanker(c, nil).SelectBest(context.Background(), evals, requirements)

	assert.Equal(t, candidate("a"), got.Candidate)
	assert.Equal(t, OnlyProjectReason, got.Reason)
	assert.Equal(t, 0, got.Index)
	assert.Zero(t, c.Calls())
}

func TestSelectBestUsesServiceChoice(t *testing.T) {
	c := llmtest.NewScripted(llmtest.Text(`{"best_project_index": 2, "reason": "Closest stack."}`))
	evals := []state.Evaluation{scored("a", 9), scored("b", 6), scored("c", 7)}

	got := NewRanker(c, nil).SelectBest(context.Background(), evals, requirements)

	assert.Equal(t, candidate("b"), got.Candidate)
	assert.Equal(t, "Closest stack.", got.Reason)
	assert.Equal(t, 1, got.Index)
	assert.Equal(t, defaultSelectTimeout, c.Requests[0].Timeout)
	assert.Contains(t, c.Requests[0].User, "Project 3: repo-c")
}

func TestSelectBestDefaultReason(t *testing.T) {
	c := llmtest.NewScripted(llmtest.Text(`{"best_project_index": 1}`))
	got := NewRanker(c, nil).SelectBest(context.Background(), []state.Evaluation{scored("a", 1), scored("b", 9)}, requirements)

	assert.Equal(t, 0, got.Index)
	assert.Equal(t, DefaultChoiceReason, got.Reason)
}

func TestSelectBestFallsBackToMaxScore(t *testing.T) {
	evals := []state.Evaluation{scored("a", 4), scored("b", 8), scored("c", 8), scored("d", 1)}

	tests := []struct {
		name      string
		completer llm.Completer
	}{
		{"unavailable", llmtest.Unavailable},
		{"error", llmtest.NewScripted(llmtest.Fail(errors.New("boom")))},
		{"index zero", llmtest.NewScripted(llmtest.Text(`{"best_project_index": 0}`))},
		{"index too high", llmtest.NewScripted(llmtest.Text(`{"best_project_index": 5}`))},
		{"index not a number", llmtest.NewScripted(llmtest.Text(`{"best_project_index": "second"}`))},
		{"malformed", llmtest.NewScripted(llmtest.Text("I pick the second one"))},
		{"panic", llmtest.Func(func(context.Context, llm.Request) (string, error) { panic("boom") })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				got := NewRanker(tt.completer, nil).SelectBest(context.Background(), evals, requirements)
				assert.Equal(t, 1, got.Index)
				assert.Equal(t, candidate("b"), got.Candidate)
				assert.Equal(t, FallbackReason, got.Reason)
			}
		})
	}
}

func TestMaxScoreIndex(t *testing.T) {
	assert.Equal(t, 0, MaxScoreIndex([]state.Evaluation{scored("a", 5), scored("b", 5)}))
	assert.Equal(t, 2, MaxScoreIndex([]state.Evaluation{scored("a", 1), scored("b", 5), scored("c", 6)}))
}

func TestRank(t *testing.T) {
	evals := []state.Evaluation{scored("a", 5), scored("b", 8), scored("c", 5), scored("d", 8)}
	selected := state.SelectedProject{Candidate: candidate("c"), Reason: "why", Index: 2}

	got := Rank(evals, selected)

	var order []string
	for _, e := range got {
		order = append(order, e.Candidate.Title)
	}
	assert.Equal(t, []string{"repo-b", "repo-d", "repo-a", "repo-c"}, order)

	var best []state.Evaluation
	for _, e := range got {
		if e.IsBestMatch {
			best = append(best, e)
		}
	}
	require.Len(t, best, 1)
	assert.Equal(t, "repo-c", best[0].Candidate.Title)
	assert.Equal(t, "why", best[0].BestMatchReason)

	// the input is left untouched
	assert.False(t, evals[2].IsBestMatch)
}

func TestRankInvalidSelectionFlagsTop(t *testing.T) {
	evals := []state.Evaluation{scored("a", 3), scored("b", 9)}
	evals[0].IsBestMatch = true

	got := Rank(evals, NoProject("none"))

	want := []state.Evaluation{
		{Candidate: candidate("b"), SuitabilityScore: 9, IsBestMatch: true},
		{Candidate: candidate("a"), SuitabilityScore: 3},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, NoProject("none")))
}

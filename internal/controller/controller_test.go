package controller

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/howell-aikit/ideaflow/internal/fallback"
	"github.com/howell-aikit/ideaflow/internal/inspect"
	"github.com/howell-aikit/ideaflow/internal/rank"
	"github.com/howell-aikit/ideaflow/internal/search"
	"github.com/howell-aikit/ideaflow/internal/sink"
	"github.com/howell-aikit/ideaflow/internal/state"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeIdeas struct {
	ratings []int
	rated   []string
}

func (f *fakeIdeas) Rate(_ context.Context, text string) (int, string) {
	f.rated = append(f.rated, text)
	rating := 5
	if len(f.ratings) > 0 {
		rating, f.ratings = f.ratings[0], f.ratings[1:]
	}
	return rating, "What platform should it run on?"
}

func (f *fakeIdeas) Summarize(_ context.Context, text string) state.ProjectSummary {
	return state.ProjectSummary{Purpose: "Build: " + text, Platform: "web"}
}

type fakeSearch struct {
	results [][]state.Candidate
	errs    []error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]state.Candidate, error) {
	i := len(f.queries)
	f.queries = append(f.queries, query)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return f.results[len(f.results)-1], nil
}

type fakeInspector struct {
	fetched []string
}

func (f *fakeInspector) Fetch(_ context.Context, url string) inspect.RepoContent {
	f.fetched = append(f.fetched, url)
	return inspect.RepoContent{URL: url, Stars: 42, Languages: []string{"Go"}}
}

type fakeRanker struct {
	scores map[string]int
	panics bool
	pick   func(evals []state.Evaluation) state.SelectedProject
}

func (f *fakeRanker) Evaluate(_ context.Context, repo inspect.RepoContent, cand state.Candidate, _ state.ProjectSummary) state.Evaluation {
	if f.panics {
		panic("ranker exploded")
	}
	return state.Evaluation{
		Candidate:        cand,
		SuitabilityScore: f.scores[cand.URL],
		Pros:             []string{"active"},
		Metadata:         &state.Metadata{Stars: repo.Stars, Languages: repo.Languages},
	}
}

func (f *fakeRanker) SelectBest(_ context.Context, evals []state.Evaluation, _ state.ProjectSummary) state.SelectedProject {
	if f.pick != nil {
		return f.pick(evals)
	}
	i := rank.MaxScoreIndex(evals)
	return state.SelectedProject{Candidate: evals[i].Candidate, Reason: "highest score", Index: i}
}

type fakePlanner struct {
	project state.SelectedProject
}

const planDocument = "# Implementation Plan\n\n## Step 1: Setup\nInstall things.\n\n## Step 2: Build Core\nWrite the code.\n"

func (f *fakePlanner) CreatePlan(_ context.Context, project state.SelectedProject, _ state.ProjectSummary) (state.EnhancementPlan, fallback.Source) {
	f.project = project
	return state.EnhancementPlan{
		Description: "Fork and extend.",
		Steps: []state.PlanStep{
			{Title: "Setup", Description: "Install things."},
			{Title: "Build Core", Description: "Write the code."},
		},
	}, fallback.SourcePrimary
}

func (f *fakePlanner) RenderDocument(_ context.Context, _ state.ProjectSummary, _ state.SelectedProject, _ state.EnhancementPlan) (string, bool) {
	return planDocument, true
}

type failingSink struct {
	deleted int
}

func (f *failingSink) Write(string, string) error { return errors.New("disk full") }

func (f *failingSink) DeleteAll() error {
	f.deleted++
	return errors.New("permission denied")
}

var candidates = []state.Candidate{
	{Title: "repo-a", URL: "https://github.com/acme/a", Description: "first"},
	{Title: "repo-b", URL: "https://github.com/acme/b", Description: "second"},
}

type fixture struct {
	ideas     *fakeIdeas
	search    *fakeSearch
	inspector *fakeInspector
	ranker    *fakeRanker
	planner   *fakePlanner
	fs        afero.Fs
	sink      *sink.FileSink
	ctrl      *Controller
}

func newFixture(t *testing.T, ratings ...int) *fixture {
	t.Helper()
	f := &fixture{
		ideas:     &fakeIdeas{ratings: ratings},
		search:    &fakeSearch{results: [][]state.Candidate{candidates}},
		inspector: &fakeInspector{},
		ranker:    &fakeRanker{scores: map[string]int{candidates[0].URL: 4, candidates[1].URL: 8}},
		planner:   &fakePlanner{},
		fs:        afero.NewMemMapFs(),
	}
	layout := DefaultLayout()
	f.sink = sink.NewFileSink(f.fs, "/out", []string{layout.PlanFile, layout.StepsDir, layout.PlanExport})
	f.ctrl = New(f.services(), WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	return f
}

func (f *fixture) services() Services {
	return Services{
		Ideas:     f.ideas,
		Search:    f.search,
		Inspector: f.inspector,
		Ranker:    f.ranker,
		Planner:   f.planner,
		Sink:      f.sink,
	}
}

// drain ticks while the session wants to advance on its own
func drain(t *testing.T, c *Controller) state.Session {
	t.Helper()
	s := c.Session()
	for i := 0; s.AutoAdvance(); i++ {
		require.Less(t, i, 10, "pipeline did not settle")
		s = c.Tick(context.Background())
	}
	return s
}

func lastMessage(t *testing.T, s state.Session) state.Message {
	t.Helper()
	msg, ok := s.LastMessage()
	require.True(t, ok)
	return msg
}

func TestClearIdeaRunsToCompletion(t *testing.T) {
	f := newFixture(t, 9)
	ctx := context.Background()

	s := f.ctrl.SubmitText(ctx, "  A habit tracker web app in React  ")
	assert.Equal(t, state.StageSearchReady, s.Stage)
	assert.Equal(t, "A habit tracker web app in React", s.OriginalIdea)
	assert.False(t, s.AwaitingClarification)
	assert.Equal(t, 9, s.IdeaRating)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, state.RoleUser, s.Messages[0].Role)
	assert.Contains(t, s.Messages[1].Text, "clarity rating: 9/10")
	assert.True(t, s.AutoAdvance())

	s = f.ctrl.Tick(ctx)
	assert.Equal(t, state.StageSearched, s.Stage)
	require.True(t, s.SearchResults.OK())
	assert.Contains(t, lastMessage(t, s).Text, "I found 2 relevant GitHub projects")
	assert.Contains(t, lastMessage(t, s).Text, "1. **repo-a**\n   URL: https://github.com/acme/a\n   Description: first")

	s = f.ctrl.Tick(ctx)
	assert.Equal(t, state.StageEvaluating, s.Stage)

	s = f.ctrl.Tick(ctx)
	assert.Equal(t, state.StagePlanning, s.Stage)
	assert.Equal(t, []string{candidates[0].URL, candidates[1].URL}, f.inspector.fetched)
	require.Len(t, s.Evaluations, 2)
	assert.Equal(t, "repo-b", s.Evaluations[0].Candidate.Title)
	assert.True(t, s.Evaluations[0].IsBestMatch)
	assert.False(t, s.Evaluations[1].IsBestMatch)
	require.True(t, s.SelectedProject.Found())
	assert.Equal(t, candidates[1].URL, s.SelectedProject.URL)

	report := lastMessage(t, s).Text
	assert.Contains(t, report, "### 🏆 **BEST MATCH** 🏆 Project 1: repo-b")
	assert.Contains(t, report, "### Project 2: repo-a")
	assert.Contains(t, report, "**Match Score**: 🟢🟢🟢🟢⚪ (8/10)")
	assert.Contains(t, report, "**Repository Stats**: ⭐ 42 stars | 🍴 0 forks | 💻 Languages: Go")
	assert.Contains(t, report, "**Why this is the best match**: highest score")

	s = f.ctrl.Tick(ctx)
	assert.Equal(t, state.StageCompleted, s.Stage)
	require.NotNil(t, s.EnhancementPlan)
	assert.Equal(t, "repo-b", f.planner.project.Title)
	assert.Equal(t, []string{
		"implementation_plan.txt",
		"implementation_steps/step_01_setup.txt",
		"implementation_steps/step_02_build_core.txt",
		"enhancement_plan.yaml",
	}, s.Documents)
	assert.False(t, s.AutoAdvance())

	n := len(s.Messages)
	assert.Contains(t, s.Messages[n-2].Text, "Based on the **repo-b** project")
	assert.Contains(t, s.Messages[n-2].Text, "1. **Setup** - Install things.\n")
	assert.Contains(t, s.Messages[n-2].Text, "2. **implementation_steps/step_01_setup.txt** - Setup")
	assert.Equal(t, newProjectMsg, s.Messages[n-1].Text)

	doc, err := afero.ReadFile(f.fs, "/out/implementation_plan.txt")
	require.NoError(t, err)
	assert.Equal(t, planDocument, string(doc))

	step, err := afero.ReadFile(f.fs, "/out/implementation_steps/step_02_build_core.txt")
	require.NoError(t, err)
	assert.Equal(t, "## Step 2: Build Core\nWrite the code.", string(step))
}

func TestClarityThreshold(t *testing.T) {
	tests := []struct {
		name      string
		rating    int
		wantStage state.Stage
		awaiting  bool
	}{
		{"seven needs clarification", 7, state.StageAwaitingClarification, true},
		{"eight is clear", 8, state.StageSearchReady, false},
		{"one needs clarification", 1, state.StageAwaitingClarification, true},
		{"ten is clear", 10, state.StageSearchReady, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.rating)
			s := f.ctrl.SubmitText(context.Background(), "an app")
			assert.Equal(t, tt.wantStage, s.Stage)
			assert.Equal(t, tt.awaiting, s.AwaitingClarification)
			require.NotNil(t, s.ProjectSummary)
			assert.Equal(t, "Build: an app", s.ProjectSummary.Purpose)
		})
	}
}

func TestUnclearIdeaWaitsForUser(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	s := f.ctrl.SubmitText(ctx, "an app")
	assert.Equal(t, state.StageAwaitingClarification, s.Stage)
	assert.False(t, s.AutoAdvance())

	msg := lastMessage(t, s).Text
	assert.Contains(t, msg, "clarity rating: 4/10")
	assert.Contains(t, msg, "Here's what I understand so far:\nBuild: an app")
	assert.Contains(t, msg, "What platform should it run on?")

	s = f.ctrl.Tick(ctx)
	assert.Equal(t, state.StageAwaitingClarification, s.Stage)
	assert.Empty(t, f.search.queries)
}

func TestClarificationConcatenatesIdea(t *testing.T) {
	f := newFixture(t, 5, 6, 9)
	ctx := context.Background()

	f.ctrl.SubmitText(ctx, "a todo app")
	s := f.ctrl.SubmitText(ctx, "for iOS")
	assert.Equal(t, state.StageAwaitingClarification, s.Stage)
	assert.Contains(t, lastMessage(t, s).Text, "but I still need more details")

	s = f.ctrl.SubmitText(ctx, "using SwiftUI")
	assert.Equal(t, state.StageSearchReady, s.Stage)
	assert.Equal(t, "a todo app for iOS using SwiftUI", s.OriginalIdea)
	assert.Equal(t, []string{"a todo app", "a todo app for iOS", "a todo app for iOS using SwiftUI"}, f.ideas.rated)
	assert.Equal(t, "Build: a todo app for iOS using SwiftUI", s.Summary().Purpose)
	assert.Contains(t, lastMessage(t, s).Text, "which is sufficient")
}

func TestClarificationAfterSearchStartsOver(t *testing.T) {
	f := newFixture(t, 9, 9)
	ctx := context.Background()

	f.ctrl.SubmitText(ctx, "a chat server")
	s := f.ctrl.Tick(ctx)
	require.Equal(t, state.StageSearched, s.Stage)

	s = f.ctrl.SubmitText(ctx, "in Go")
	assert.Equal(t, state.StageSearchReady, s.Stage)
	assert.Nil(t, s.SearchResults)
	assert.True(t, s.AutoAdvance())
}

func TestSkipClarificationSearchesImmediately(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	f.ctrl.SubmitText(ctx, "something vague")
	s := f.ctrl.SkipClarification(ctx)

	assert.Equal(t, state.StageSearched, s.Stage)
	assert.False(t, s.AwaitingClarification)
	assert.Equal(t, 3, s.IdeaRating)
	require.True(t, s.SearchResults.OK())
	assert.Len(t, f.search.queries, 1)
	assert.True(t, s.AutoAdvance())

	s = drain(t, f.ctrl)
	assert.Equal(t, state.StageCompleted, s.Stage)
}

func TestSkipRejected(t *testing.T) {
	t.Run("before any idea", func(t *testing.T) {
		f := newFixture(t)
		s := f.ctrl.SkipClarification(context.Background())

		assert.Equal(t, state.StageNotStarted, s.Stage)
		msg := lastMessage(t, s)
		assert.True(t, msg.IsError)
		assert.Equal(t, skipWithoutIdeaMsg, msg.Text)
		assert.Empty(t, f.search.queries)
	})

	t.Run("after completion", func(t *testing.T) {
		f := newFixture(t, 9)
		ctx := context.Background()
		f.ctrl.SubmitText(ctx, "a clear idea")
		require.Equal(t, state.StageCompleted, drain(t, f.ctrl).Stage)

		s := f.ctrl.SkipClarification(ctx)
		assert.Equal(t, state.StageCompleted, s.Stage)
		msg := lastMessage(t, s)
		assert.True(t, msg.IsError)
		assert.Equal(t, skipCompletedMsg, msg.Text)
		assert.Len(t, f.search.queries, 1)
	})
}

func TestSearchFailureKeepsStage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		results  []state.Candidate
		wantKind string
		wantText string
	}{
		{
			name:     "service unavailable",
			err:      &search.Error{Kind: search.KindUnavailable, Message: "Search service unavailable."},
			wantKind: "unavailable",
			wantText: "**Search Error**: Search service unavailable.",
		},
		{
			name:     "plain transport error",
			err:      errors.New("connection reset"),
			wantKind: "transport",
			wantText: "**Search Error**: connection reset",
		},
		{
			name:     "no results",
			results:  []state.Candidate{},
			wantKind: "no_results",
			wantText: "**Search Error**: " + noResultsMsg,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 9)
			f.search.errs = []error{tt.err}
			f.search.results = [][]state.Candidate{tt.results, candidates}
			ctx := context.Background()

			f.ctrl.SubmitText(ctx, "a clear idea")
			s := f.ctrl.Tick(ctx)

			assert.Equal(t, state.StageSearchReady, s.Stage)
			require.NotNil(t, s.SearchResults)
			assert.False(t, s.SearchResults.OK())
			require.NotNil(t, s.SearchResults.Err)
			assert.Equal(t, tt.wantKind, s.SearchResults.Err.Kind)

			msg := lastMessage(t, s)
			assert.True(t, msg.IsError)
			assert.True(t, strings.HasPrefix(msg.Text, tt.wantText), msg.Text)
			assert.False(t, s.AutoAdvance())

			// an explicit retry runs the search again
			s = f.ctrl.Tick(ctx)
			assert.Equal(t, state.StageSearched, s.Stage)
			assert.Len(t, f.search.queries, 2)
		})
	}
}

func TestEvaluationPanicIsReported(t *testing.T) {
	f := newFixture(t, 9)
	f.ranker.panics = true
	ctx := context.Background()

	f.ctrl.SubmitText(ctx, "a clear idea")
	f.ctrl.Tick(ctx)
	s := f.ctrl.Tick(ctx)
	require.Equal(t, state.StageEvaluating, s.Stage)

	s = f.ctrl.Tick(ctx)
	assert.Equal(t, state.StageEvaluating, s.Stage)
	assert.Empty(t, s.Evaluations)
	assert.Nil(t, s.SelectedProject)

	msg := lastMessage(t, s)
	assert.True(t, msg.IsError)
	assert.Equal(t, "I encountered an error while evaluating the projects: ranker exploded", msg.Text)
	assert.False(t, s.AutoAdvance())
}

func TestEvaluationWithoutSelectionUsesTopScore(t *testing.T) {
	f := newFixture(t, 9)
	f.ranker.pick = func([]state.Evaluation) state.SelectedProject {
		return rank.NoProject("Could not determine the best project.")
	}
	ctx := context.Background()

	f.ctrl.SubmitText(ctx, "a clear idea")
	f.ctrl.Tick(ctx)
	f.ctrl.Tick(ctx)
	s := f.ctrl.Tick(ctx)

	require.Equal(t, state.StagePlanning, s.Stage)
	require.True(t, s.SelectedProject.Found())
	assert.Equal(t, candidates[1].URL, s.SelectedProject.URL)
	assert.Equal(t, 1, s.SelectedProject.Index)
	assert.Equal(t, rank.FallbackReason, s.SelectedProject.Reason)
	assert.Equal(t, rank.FallbackReason, s.Evaluations[0].BestMatchReason)
}

func TestCancelledEvaluationKeepsStage(t *testing.T) {
	f := newFixture(t, 9)
	ctx := context.Background()

	f.ctrl.SubmitText(ctx, "a clear idea")
	f.ctrl.Tick(ctx)
	f.ctrl.Tick(ctx)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	s := f.ctrl.Tick(cancelled)

	assert.Equal(t, state.StageEvaluating, s.Stage)
	assert.True(t, lastMessage(t, s).IsError)
	assert.Empty(t, f.inspector.fetched)
}

func TestPlanWithFailingSink(t *testing.T) {
	f := newFixture(t, 9)
	broken := &failingSink{}
	svc := f.services()
	svc.Sink = broken
	c := New(svc)
	ctx := context.Background()

	c.SubmitText(ctx, "a clear idea")
	s := drain(t, c)

	assert.Equal(t, state.StageCompleted, s.Stage)
	assert.Empty(t, s.Documents)
	n := len(s.Messages)
	assert.Contains(t, s.Messages[n-2].Text, "Unfortunately, I couldn't generate the implementation files.")
	assert.False(t, s.Messages[n-2].IsError)
}

func TestTextWhileBusyOrDone(t *testing.T) {
	f := newFixture(t, 9)
	ctx := context.Background()

	f.ctrl.SubmitText(ctx, "a clear idea")
	f.ctrl.Tick(ctx)
	f.ctrl.Tick(ctx)

	s := f.ctrl.SubmitText(ctx, "are you done?")
	assert.Equal(t, state.StageEvaluating, s.Stage)
	msg := lastMessage(t, s)
	assert.False(t, msg.IsError)
	assert.Contains(t, msg.Text, "Evaluating repositories")
	assert.True(t, s.AutoAdvance())

	s = drain(t, f.ctrl)
	require.Equal(t, state.StageCompleted, s.Stage)

	s = f.ctrl.SubmitText(ctx, "one more thing")
	assert.Equal(t, state.StageCompleted, s.Stage)
	assert.Equal(t, completedStatusMsg, lastMessage(t, s).Text)
	assert.Len(t, f.ideas.rated, 1)
}

func TestBlankTextIgnored(t *testing.T) {
	f := newFixture(t)
	s := f.ctrl.SubmitText(context.Background(), " \n\t ")

	assert.Equal(t, state.StageNotStarted, s.Stage)
	assert.Empty(t, s.Messages)
	assert.Empty(t, f.ideas.rated)
}

func TestReset(t *testing.T) {
	f := newFixture(t, 9)
	ctx := context.Background()

	f.ctrl.SubmitText(ctx, "a clear idea")
	before := drain(t, f.ctrl)
	require.Equal(t, state.StageCompleted, before.Stage)

	listed, err := f.sink.List()
	require.NoError(t, err)
	require.Len(t, listed, 4)

	s := f.ctrl.Reset(ctx)
	assert.Equal(t, state.StageNotStarted, s.Stage)
	assert.NotEqual(t, before.ID, s.ID)
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.OriginalIdea)
	assert.Nil(t, s.ProjectSummary)
	assert.Nil(t, s.SearchResults)
	assert.Empty(t, s.Evaluations)
	assert.Nil(t, s.SelectedProject)

	listed, err = f.sink.List()
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestResetCleanupFailure(t *testing.T) {
	broken := &failingSink{}
	c := New(Services{Sink: broken})

	s := c.Reset(context.Background())
	assert.Equal(t, 1, broken.deleted)
	assert.Equal(t, state.StageNotStarted, s.Stage)

	msg := lastMessage(t, s)
	assert.True(t, msg.IsError)
	assert.Contains(t, msg.Text, "permission denied")
}

func TestSessionIsSnapshot(t *testing.T) {
	f := newFixture(t, 9)
	f.ctrl.SubmitText(context.Background(), "a clear idea")

	s := f.ctrl.Session()
	s.Messages[0].Text = "tampered"
	s.ProjectSummary.Purpose = "tampered"

	fresh := f.ctrl.Session()
	assert.Equal(t, "a clear idea", fresh.Messages[0].Text)
	assert.Equal(t, "Build: a clear idea", fresh.ProjectSummary.Purpose)
}

func TestFailureMessage(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name  string
		stage state.Stage
		err   error
		want  string
	}{
		{"user error", state.StageCompleted, &userError{msg: "nope"}, "nope"},
		{"evaluating", state.StageEvaluating, cause, "I encountered an error while evaluating the projects: boom"},
		{"planning", state.StagePlanning, &internalError{cause: cause}, "I encountered an error while creating the implementation plan. Here's what happened:\n\n**Error**: boom\n\nPlease try again with a different project or simplify your requirements."},
		{"other", state.StageSearchReady, cause, "Something unexpected went wrong: boom\n\nPlease try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureMessage(tt.stage, tt.err))
		})
	}
}

func TestScoreBar(t *testing.T) {
	assert.Equal(t, "⚪⚪⚪⚪⚪", scoreBar(1))
	assert.Equal(t, "🟢🟢🟢⚪⚪", scoreBar(7))
	assert.Equal(t, "🟢🟢🟢🟢🟢", scoreBar(10))
}

func TestPlanMessageStepPreview(t *testing.T) {
	long := strings.Repeat("a", stepPreviewLength+20)
	p := state.EnhancementPlan{
		Description: "Extend it",
		Steps: []state.PlanStep{
			{Title: "Short", Description: "Fits easily."},
			{Title: "Long", Description: long},
			{Title: "Exact", Description: strings.Repeat("b", stepPreviewLength)},
		},
	}

	msg := planMessage(state.SelectedProject{Candidate: state.Candidate{Title: "repo"}}, p, nil)

	assert.Contains(t, msg, "1. **Short** - Fits easily.\n")
	assert.Contains(t, msg, "2. **Long** - "+strings.Repeat("a", stepPreviewLength)+"...\n")
	assert.Contains(t, msg, "3. **Exact** - "+strings.Repeat("b", stepPreviewLength)+"\n")
}

package prompts

import (
	"strings"
	"testing"

	"github.com/howell-aikit/ideaflow/internal/state"
	"github.com/stretchr/testify/assert"
)

func TestBuildSelectionPromptNumbersFromOne(t *testing.T) {
	evals := []state.Evaluation{
		{
			Candidate:        state.Candidate{Title: "alpha", URL: "https://github.com/a/alpha"},
			SuitabilityScore: 7,
			Pros:             []string{"p1", "p2", "p3", "p4"},
			Cons:             []string{"c1", "c2", "c3"},
		},
		{Candidate: state.Candidate{URL: "https://github.com/b/beta"}, SuitabilityScore: 4},
	}

	got := BuildSelectionPrompt(evals)

	assert.True(t, strings.HasPrefix(got, "Here are the evaluated repositories, numbered from 1 to 2:"))
	assert.Contains(t, got, "Project 1: alpha\nURL: https://github.com/a/alpha\nScore: 7/10\nPros: p1, p2, p3\nCons: c1, c2")
	assert.Contains(t, got, "Project 2: Unknown")
	assert.NotContains(t, got, "p4")
	assert.NotContains(t, got, "c3")
}

func TestRequirementsDefaultToNotSpecified(t *testing.T) {
	got := BuildEvaluationSystemPrompt(state.ProjectSummary{Purpose: "Chat app"})

	assert.Contains(t, got, "Purpose: Chat app")
	assert.Contains(t, got, "Platform: Not specified")
	assert.Contains(t, got, "Key Features: Not specified")
}

func TestBuildDocumentPromptIncludesSteps(t *testing.T) {
	plan := state.EnhancementPlan{
		Description: "Fork and extend",
		Steps:       []state.PlanStep{{Title: "Setup", Tasks: "- clone"}},
	}
	got := BuildDocumentPrompt(state.ProjectSummary{}, state.SelectedProject{Candidate: state.Candidate{Title: "base"}}, plan)

	assert.Contains(t, got, "Project: base")
	assert.Contains(t, got, "Fork and extend")
	assert.Contains(t, got, `"title": "Setup"`)

	empty := BuildDocumentPrompt(state.ProjectSummary{}, state.SelectedProject{}, state.EnhancementPlan{})
	assert.Contains(t, empty, "Implementation steps:\n[]")
}

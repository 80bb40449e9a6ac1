package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/howell-aikit/ideaflow/internal/state"
)

// NotSpecified replaces empty requirement fields in prompts and documents
const NotSpecified = "Not specified"

// IdeaClaritySystemPrompt asks the model to rate how actionable an idea is
const IdeaClaritySystemPrompt = `You are a senior software architect reviewing project ideas before any code is written.

Rate how clear and actionable the idea is on a scale from 1 to 10:
- 1-3: vague wish with no purpose, platform or features
- 4-7: recognisable project but missing details needed to pick a reference implementation
- 8-10: purpose, target platform, main features and preferred technologies are clear enough to start

Output a JSON object with these fields:
{
  "rating": 6,
  "reflection": "One or two sentences summarising what you understood and what is unclear",
  "missing_elements": ["target platform", "key features"],
  "advice": "One concrete suggestion for what to add"
}`

// ProjectSummarySystemPrompt asks the model to extract structured requirements
const ProjectSummarySystemPrompt = `You turn free-text project ideas into structured requirements.

Output a JSON object with exactly these keys:
{
  "Project Purpose": "What the project does and for whom, in one or two sentences",
  "Platform": "Where it runs (web, mobile, desktop, CLI, embedded, ...)",
  "Tech Stack": "Comma separated languages, frameworks and services, inferred when not stated",
  "Key Features": "Comma separated list of the main features"
}

Use an empty string for anything that cannot be inferred.`

// SimplifiedPlanSystemPrompt is used when the detailed plan could not be produced
const SimplifiedPlanSystemPrompt = `You write short, practical plans for adapting an existing GitHub project.

Output a JSON object:
{
  "enhancement_description": "Two or three sentences on how the project will be adapted",
  "implementation_steps": [
    {
      "title": "Short step title",
      "description": "What this step achieves",
      "tasks": ["task one", "task two"],
      "expected_outcome": "What exists when the step is done",
      "resources": ["links or docs to consult"]
    }
  ]
}`

// ImplementationDocumentSystemPrompt asks for the long-form plan document
const ImplementationDocumentSystemPrompt = `You are a technical writer producing implementation plans developers follow step by step.

Write a Markdown document with these sections:
# Implementation Plan for <project purpose>
## 1. Project Overview
## 2. Base Project
## 3. Enhancement Strategy
## 4. Implementation Steps
Each step must start with a heading of the form "## Step N: Title" followed by
"### Description", "### Tasks", "### Expected Outcome" and "### Resources".
## 5. Next Steps After Implementation

Be concrete: name files, commands and libraries where you can. Do not wrap the document in a code fence.`

// BuildIdeaClarityPrompt creates the user message for idea rating
func BuildIdeaClarityPrompt(idea string) string {
	return "Evaluate this project idea: " + idea
}

// BuildSummaryPrompt creates the user message for summary extraction
func BuildSummaryPrompt(idea string) string {
	return "Analyze this project idea: " + idea
}

// BuildEvaluationSystemPrompt creates the scoring instructions for one repository
func BuildEvaluationSystemPrompt(req state.ProjectSummary) string {
	return `You evaluate whether a GitHub repository is a good starting point for a new project.

## Project Requirements

` + requirements(req) + `

## Output

Output a JSON object:
{
  "pros": ["strengths of the repository for these requirements"],
  "cons": ["gaps or risks"],
  "suitability_score": 7,
  "summary": "Two sentence assessment",
  "tech_match": ["technologies shared with the requirements"],
  "feature_match": ["required features the repository already has"],
  "modification_effort": "Low, Medium or High with a short reason"
}

suitability_score is an integer from 0 (unrelated) to 10 (already does everything).`
}

// BuildSelectionSystemPrompt creates the instructions for picking the best repository
func BuildSelectionSystemPrompt(req state.ProjectSummary) string {
	return `You choose the single best GitHub repository to build a project on.

## Project Requirements

` + requirements(req) + `

Weigh requirement fit above raw popularity. Output a JSON object:
{
  "best_project_index": 1,
  "reason": "Why this repository is the best base for the project"
}

best_project_index is the 1-based number of the chosen project in the list you are given.`
}

// BuildSelectionPrompt lists the evaluated repositories with their 1-based numbers
func BuildSelectionPrompt(evaluations []state.Evaluation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the evaluated repositories, numbered from 1 to %d:\n\n", len(evaluations))
	for i, e := range evaluations {
		fmt.Fprintf(&b, "Project %d: %s\n", i+1, orDefault(e.Candidate.Title, "Unknown"))
		fmt.Fprintf(&b, "URL: %s\n", orDefault(e.Candidate.URL, "Unknown"))
		fmt.Fprintf(&b, "Score: %d/10\n", e.SuitabilityScore)
		fmt.Fprintf(&b, "Pros: %s\n", strings.Join(head(e.Pros, 3), ", "))
		fmt.Fprintf(&b, "Cons: %s\n\n", strings.Join(head(e.Cons, 2), ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildEnhancementPlanSystemPrompt creates the detailed planning instructions
func BuildEnhancementPlanSystemPrompt(req state.ProjectSummary, project state.SelectedProject) string {
	return `You are a senior engineer planning how to adapt an existing GitHub project into a new one.

## Base Project

- Title: ` + orDefault(project.Title, NotSpecified) + `
- URL: ` + orDefault(project.URL, NotSpecified) + `
- Description: ` + orDefault(project.Description, NotSpecified) + `

## Target Requirements

` + requirements(req) + `

## Output

Output a JSON object:
{
  "enhancement_description": "How the base project will be adapted and extended",
  "implementation_steps": [
    {
      "title": "Short step title",
      "description": "What this step achieves and why it comes at this point",
      "tasks": ["concrete task", "concrete task"],
      "expected_outcome": "Observable result when the step is done",
      "resources": ["documentation, libraries or files to consult"]
    }
  ]
}

Produce between 4 and 8 ordered steps.`
}

// BuildEnhancementPlanPrompt creates the user message for detailed planning
func BuildEnhancementPlanPrompt(req state.ProjectSummary, project state.SelectedProject) string {
	return `Create an enhancement plan to adapt the following GitHub project:

Project: ` + orDefault(project.Title, NotSpecified) + `
URL: ` + orDefault(project.URL, NotSpecified) + `
Description: ` + orDefault(project.Description, NotSpecified) + `

to fulfill these requirements:
` + requirements(req)
}

// BuildSimplifiedPlanPrompt creates the user message for the simplified plan
func BuildSimplifiedPlanPrompt(req state.ProjectSummary, project state.SelectedProject) string {
	return projectBlock(req, project) + "\n\nCreate a simple, 3-step plan to adapt this GitHub project to the requirements."
}

// BuildDocumentPrompt creates the user message for the long-form implementation document
func BuildDocumentPrompt(req state.ProjectSummary, project state.SelectedProject, plan state.EnhancementPlan) string {
	steps, err := json.MarshalIndent(plan.Steps, "", "  ")
	if err != nil || plan.Steps == nil {
		steps = []byte("[]")
	}

	return projectBlock(req, project) + `

Enhancement plan:
` + orDefault(plan.Description, NotSpecified) + `

Implementation steps:
` + string(steps) + `

Format this as a comprehensive Markdown implementation plan document with all the sections mentioned in your instructions.`
}

func projectBlock(req state.ProjectSummary, project state.SelectedProject) string {
	return `Project: ` + orDefault(project.Title, NotSpecified) + `
URL: ` + orDefault(project.URL, NotSpecified) + `
Description: ` + orDefault(project.Description, NotSpecified) + `

Requirements:
- Purpose: ` + orDefault(req.Purpose, NotSpecified) + `
- Platform: ` + orDefault(req.Platform, NotSpecified) + `
- Tech Stack: ` + orDefault(req.TechStack, NotSpecified) + `
- Features: ` + orDefault(req.KeyFeatures, NotSpecified)
}

func requirements(req state.ProjectSummary) string {
	return `Purpose: ` + orDefault(req.Purpose, NotSpecified) + `
Platform: ` + orDefault(req.Platform, NotSpecified) + `
Tech Stack: ` + orDefault(req.TechStack, NotSpecified) + `
Key Features: ` + orDefault(req.KeyFeatures, NotSpecified)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

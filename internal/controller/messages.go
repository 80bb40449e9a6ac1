package controller

import (
	"fmt"
	"strings"

	"github.com/howell-aikit/ideaflow/internal/budget"
	"github.com/howell-aikit/ideaflow/internal/state"
)

const (
	noResultsMsg            = "No relevant GitHub projects found. Try adjusting your search terms."
	noProjectsToEvaluateMsg = "No valid GitHub projects to evaluate. Please try searching again."
	noProjectSelectedMsg    = "No project selected to create implementation plan. Please try again."
	skipWithoutIdeaMsg      = "Please describe your project idea first so I have something to search for."
	skipCompletedMsg        = "Your implementation plan is already complete. Reset to start a new project."
	completedStatusMsg      = "Your implementation plan is complete. Reset to start a new project."
	busyStatusMsg           = "I'm still working on your project (%s). Please wait, or reset to start over."
	newProjectMsg           = "Would you like to start a new project? Reset to begin."
	resetCleanupFailedMsg   = "I started a new session, but could not remove the previous plan files: %v"

	evaluationErrorMsg = "I encountered an error while evaluating the projects: %v"
	planningErrorMsg   = "I encountered an error while creating the implementation plan. Here's what happened:\n\n**Error**: %v\n\nPlease try again with a different project or simplify your requirements."
	unexpectedErrorMsg = "Something unexpected went wrong: %v\n\nPlease try again."

	noEnhancementMsg = "No enhancement description available."
	planFileLabel    = "Complete implementation plan"
	exportFileLabel  = "Structured plan export"

	stepPreviewLength  = 100
	maxListedLanguages = 5
)

func initialClearMessage(rating int, summary state.ProjectSummary) string {
	return fmt.Sprintf("I've evaluated your project idea (clarity rating: %d/10).\n\n%s\n\n"+
		"I'll search for relevant GitHub projects that match your requirements.",
		rating, summary.Purpose)
}

func initialUnclearMessage(rating int, summary state.ProjectSummary, reflection string) string {
	return fmt.Sprintf("I've evaluated your project idea (clarity rating: %d/10).\n\n"+
		"Here's what I understand so far:\n%s\n\n%s\n\n"+
		"Please provide more details, or skip clarification to search GitHub now.",
		rating, summary.Purpose, reflection)
}

func clarificationClearMessage(rating int, summary state.ProjectSummary) string {
	return fmt.Sprintf("Thanks for the clarification! Your project idea now has a clarity rating of %d/10, which is sufficient.\n\n"+
		"Updated project summary:\n%s\n\n"+
		"I'll search for relevant GitHub projects that match your requirements.",
		rating, summary.Purpose)
}

func clarificationUnclearMessage(rating int, summary state.ProjectSummary, reflection string) string {
	return fmt.Sprintf("Thanks for the clarification! Your project idea now has a clarity rating of %d/10, but I still need more details.\n\n"+
		"Current understanding:\n%s\n\n%s\n\n"+
		"Please provide more information, or skip clarification to search GitHub now.",
		rating, summary.Purpose, reflection)
}

func searchErrorMessage(msg string) string {
	return fmt.Sprintf("**Search Error**: %s\n\nPlease try again with a more specific or simpler description.", msg)
}

func searchResultsMessage(candidates []state.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d relevant GitHub projects. I'll now evaluate them to find the best match for your requirements:\n\n", len(candidates))
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. **%s**\n   URL: %s\n   Description: %s\n\n", i+1, c.Title, c.URL, c.Description)
	}
	return b.String()
}

// scoreBar draws the score as five circles, one filled per two points
func scoreBar(score int) string {
	filled := score / 2
	if filled < 0 {
		filled = 0
	}
	if filled > 5 {
		filled = 5
	}
	return strings.Repeat("🟢", filled) + strings.Repeat("⚪", 5-filled)
}

func evaluationReport(evals []state.Evaluation) string {
	var b strings.Builder
	b.WriteString("Based on my analysis of these GitHub repositories, here's what I found:\n\n")

	for i, e := range evals {
		if e.IsBestMatch {
			fmt.Fprintf(&b, "### 🏆 **BEST MATCH** 🏆 Project %d: %s\n", i+1, e.Candidate.Title)
		} else {
			fmt.Fprintf(&b, "### Project %d: %s\n", i+1, e.Candidate.Title)
		}
		fmt.Fprintf(&b, "**URL**: %s\n", e.Candidate.URL)

		if e.Metadata != nil {
			langs := e.Metadata.Languages
			if len(langs) > maxListedLanguages {
				langs = langs[:maxListedLanguages]
			}
			fmt.Fprintf(&b, "**Repository Stats**: ⭐ %d stars | 🍴 %d forks | 💻 Languages: %s\n",
				e.Metadata.Stars, e.Metadata.Forks, strings.Join(langs, ", "))
		}

		fmt.Fprintf(&b, "**Match Score**: %s (%d/10)\n", scoreBar(e.SuitabilityScore), e.SuitabilityScore)

		if len(e.TechMatch) > 0 {
			fmt.Fprintf(&b, "**Matching Technologies**: %s\n", strings.Join(e.TechMatch, ", "))
		}
		if len(e.FeatureMatch) > 0 {
			fmt.Fprintf(&b, "**Matching Features**: %s\n", strings.Join(e.FeatureMatch, ", "))
		}
		if e.ModificationEffort != "" {
			fmt.Fprintf(&b, "**Modification Effort**: %s\n", e.ModificationEffort)
		}
		if e.Summary != "" {
			fmt.Fprintf(&b, "\n**Assessment**: %s\n", e.Summary)
		}
		if e.IsBestMatch && e.BestMatchReason != "" {
			fmt.Fprintf(&b, "\n**Why this is the best match**: %s\n", e.BestMatchReason)
		}

		writeBullets(&b, "Pros", e.Pros)
		writeBullets(&b, "Cons", e.Cons)
		b.WriteString("\n---\n\n")
	}

	b.WriteString("\n\nI'll now create a detailed implementation plan based on this project.")
	return b.String()
}

func writeBullets(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n**%s**:\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func planMessage(project state.SelectedProject, p state.EnhancementPlan, files []writtenFile) string {
	var b strings.Builder
	b.WriteString("I've created a detailed implementation plan for your project:\n\n")
	fmt.Fprintf(&b, "## Plan Overview\nBased on the **%s** project, I've created a plan to implement your requirements.\n\n", project.Title)

	desc := p.Description
	if desc == "" {
		desc = noEnhancementMsg
	}
	fmt.Fprintf(&b, "## Enhancement Strategy\n%s\n\n", desc)

	b.WriteString("## Implementation Steps\n")
	for i, step := range p.Steps {
		fmt.Fprintf(&b, "%d. **%s** - %s\n", i+1, step.Title,
			budget.TruncateWithEllipsis(step.Description, stepPreviewLength))
	}

	b.WriteString("\n## Implementation Files\n")
	if len(files) == 0 {
		b.WriteString("Unfortunately, I couldn't generate the implementation files. Please try again or modify your project requirements.\n")
		return b.String()
	}
	b.WriteString("I've created the following files to guide your implementation:\n\n")
	for i, f := range files {
		fmt.Fprintf(&b, "%d. **%s** - %s\n", i+1, f.Name, f.Label)
	}
	return b.String()
}

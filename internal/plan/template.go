package plan

import (
	"fmt"
	"strings"

	"github.com/howell-aikit/ideaflow/internal/state"
)

const notSpecified = "Not specified"

const documentTemplate = `# Implementation Plan for %s

## 1. Project Overview
- Purpose: %s
- Platform: %s
- Tech Stack: %s
- Key Features: %s

## 2. Base Project
- Title: %s
- URL: %s
- Description: %s

## 3. Enhancement Strategy
%s

## 4. Implementation Steps
%s

## 5. Next Steps After Implementation
1. Test the application thoroughly
2. Document any changes from the original plan
3. Consider improvements for future iterations
`

// skeletonSteps is used when the plan has no steps
const skeletonSteps = `## Step 1: Project Setup
### Description
Set up the development environment and clone the repository.

### Tasks
- Clone the repository
- Install dependencies
- Configure development environment

## Step 2: Implementation
### Description
Implement the required features.

### Tasks
- Analyze requirements
- Implement core features
- Test implementation

## Step 3: Deployment
### Description
Deploy and finalize the project.

### Tasks
- Prepare for deployment
- Deploy application
- Document the implementation
`

// FallbackDocument renders the plan with a fixed template. The output
// depends only on its arguments.
func FallbackDocument(req state.ProjectSummary, project state.SelectedProject, p state.EnhancementPlan) string {
	return fmt.Sprintf(documentTemplate,
		orDefault(req.Purpose, "Mini-Project"),
		orDefault(req.Purpose, notSpecified),
		orDefault(req.Platform, notSpecified),
		orDefault(req.TechStack, notSpecified),
		orDefault(req.KeyFeatures, notSpecified),
		orDefault(project.Title, notSpecified),
		orDefault(project.URL, notSpecified),
		orDefault(project.Description, notSpecified),
		orDefault(p.Description, "Adapt the project to meet your requirements."),
		renderSteps(p.Steps),
	)
}

func renderSteps(steps []state.PlanStep) string {
	if len(steps) == 0 {
		return skeletonSteps
	}

	var b strings.Builder
	for i, s := range steps {
		n := i + 1
		fmt.Fprintf(&b, "## Step %d: %s\n\n", n, orDefault(s.Title, fmt.Sprintf("Step %d", n)))
		fmt.Fprintf(&b, "### Description\n%s\n\n", orDefault(s.Description, "No description provided"))
		fmt.Fprintf(&b, "### Tasks\n%s\n\n", orDefault(s.Tasks, "No tasks specified"))
		fmt.Fprintf(&b, "### Expected Outcome\n%s\n\n", orDefault(s.ExpectedOutcome, "No expected outcome specified"))
		fmt.Fprintf(&b, "### Resources\n%s\n\n", orDefault(s.Resources, "No resources specified"))
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

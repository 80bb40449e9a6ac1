package rank

import (
	"fmt"
	"strings"

	"github.com/howell-aikit/ideaflow/internal/budget"
	"github.com/howell-aikit/ideaflow/internal/inspect"
	"github.com/howell-aikit/ideaflow/internal/state"
)

// Limits on how much scraped text is sent to the scoring service
const (
	filesLimit  = 300
	readmeLimit = 3000
	rawLimit    = 2000
)

// BuildContext renders what is known about a repository for scoring
func BuildContext(repo inspect.RepoContent, cand state.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", cand.Title)
	fmt.Fprintf(&b, "URL: %s\n", cand.URL)
	fmt.Fprintf(&b, "Description: %s\n\n", cand.Description)

	fmt.Fprintf(&b, "Stars: %d\n", repo.Stars)
	fmt.Fprintf(&b, "Forks: %d\n", repo.Forks)
	fmt.Fprintf(&b, "Languages: %s\n\n", listOrUnknown(repo.Languages))

	fmt.Fprintf(&b, "Files: %s\n\n", budget.Truncate(listOrUnknown(repo.Files), filesLimit))

	b.WriteString("README:\n")
	b.WriteString(budget.Truncate(repo.Readme, readmeLimit))
	b.WriteString("\n\n")

	b.WriteString("Additional Content:\n")
	b.WriteString(budget.Truncate(repo.RawContent, rawLimit))
	b.WriteString("\n\n")

	b.WriteString("Based on this information, evaluate how well this repository matches our project requirements.")
	return b.String()
}

func listOrUnknown(items []string) string {
	if len(items) == 0 {
		return "Unknown"
	}
	return strings.Join(items, ", ")
}

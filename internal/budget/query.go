package budget

import (
	"strings"

	"github.com/howell-aikit/ideaflow/internal/state"
)

// QueryLimits are the checkpoints used while enriching a search query.
// A field is appended only while the running length plus the field stays
// under its checkpoint; Max caps the finished query.
type QueryLimits struct {
	Purpose   int
	Platform  int
	TechStack int
	Max       int
	TechTerms int
}

// DefaultQueryLimits returns the standard 400/450/500 checkpoints
func DefaultQueryLimits() QueryLimits {
	return QueryLimits{
		Purpose:   400,
		Platform:  450,
		TechStack: 500,
		Max:       500,
		TechTerms: 3,
	}
}

// BuildQuery assembles a search query from the idea and selected summary fields
func BuildQuery(idea string, summary state.ProjectSummary, limits QueryLimits) string {
	query := strings.TrimSpace(idea)

	purpose := strings.TrimSpace(summary.Purpose)
	if purpose != "" && purpose != query && Len(query)+Len(purpose) < limits.Purpose {
		query += " " + purpose
	}

	platform := strings.TrimSpace(summary.Platform)
	if platform != "" && Len(query)+Len(platform) < limits.Platform {
		query += " for " + platform
	}

	tech := strings.TrimSpace(summary.TechStack)
	if tech != "" && Len(query)+Len(tech) < limits.TechStack {
		if terms := FirstTerms(tech, limits.TechTerms); len(terms) > 0 {
			query += " using " + strings.Join(terms, ", ")
		}
	}

	return strings.TrimSpace(New(limits.Max).Take(query))
}

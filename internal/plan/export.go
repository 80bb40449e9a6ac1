package plan

import (
	"bytes"
	"fmt"

	"github.com/howell-aikit/ideaflow/internal/state"
	"gopkg.in/yaml.v3"
)

// Export is the machine-readable form of a finished plan
type Export struct {
	Requirements state.ProjectSummary  `yaml:"requirements"`
	BaseProject  ExportProject         `yaml:"base_project"`
	Plan         state.EnhancementPlan `yaml:"plan"`
}

// ExportProject identifies the repository the plan builds on
type ExportProject struct {
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
	Reason      string `yaml:"reason,omitempty"`
}

// ExportYAML encodes the plan with its requirements and base project
func ExportYAML(req state.ProjectSummary, project state.SelectedProject, p state.EnhancementPlan) ([]byte, error) {
	doc := Export{
		Requirements: req,
		BaseProject: ExportProject{
			Title:       project.Title,
			URL:         project.URL,
			Description: project.Description,
			Reason:      project.Reason,
		},
		Plan: p,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return buf.Bytes(), nil
}

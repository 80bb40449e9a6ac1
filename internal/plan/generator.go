// Package plan turns the selected repository and the requirements into an
// enhancement plan and a long-form implementation document.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/howell-aikit/ideaflow/internal/fallback"
	"github.com/howell-aikit/ideaflow/internal/llm"
	"github.com/howell-aikit/ideaflow/internal/prompts"
	"github.com/howell-aikit/ideaflow/internal/state"
	"go.uber.org/zap"
)

// DefaultDescription is the enhancement description of the last-resort plan
const DefaultDescription = "Adapt the GitHub project to meet the requirements."

const (
	simplifiedTimeout      = 30 * time.Second
	defaultDocumentTimeout = 60 * time.Second
)

// planResponse is the planning service reply
type planResponse struct {
	EnhancementDescription llm.FlexString `json:"enhancement_description"`
	ImplementationSteps    []stepResponse `json:"implementation_steps"`
}

type stepResponse struct {
	Title           llm.FlexString `json:"title"`
	Description     llm.FlexString `json:"description"`
	Tasks           llm.FlexList   `json:"tasks"`
	ExpectedOutcome llm.FlexString `json:"expected_outcome"`
	Resources       llm.FlexList   `json:"resources"`
}

// Generator creates enhancement plans and implementation documents
type Generator struct {
	llm             llm.Completer
	logger          *zap.Logger
	validate        *validator.Validate
	documentTimeout time.Duration
}

// NewGenerator creates a plan generator. A zero documentTimeout uses 60s.
func NewGenerator(c llm.Completer, documentTimeout time.Duration, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if documentTimeout <= 0 {
		documentTimeout = defaultDocumentTimeout
	}
	return &Generator{
		llm:             c,
		logger:          logger,
		validate:        validator.New(),
		documentTimeout: documentTimeout,
	}
}

// DefaultPlan is returned when neither planning attempt yields a usable plan
func DefaultPlan() state.EnhancementPlan {
	return state.EnhancementPlan{Description: DefaultDescription, Steps: []state.PlanStep{}}
}

// CreatePlan asks for a detailed plan, then a simplified one, and finally
// settles for DefaultPlan. A plan is usable only with a description and at
// least one titled step.
func (g *Generator) CreatePlan(ctx context.Context, project state.SelectedProject, req state.ProjectSummary) (state.EnhancementPlan, fallback.Source) {
	chain := fallback.Chain[state.EnhancementPlan]{
		Name: "enhancement plan",
		Primary: func(ctx context.Context) (state.EnhancementPlan, error) {
			return g.request(ctx, llm.Request{
				System: prompts.BuildEnhancementPlanSystemPrompt(req, project),
				User:   prompts.BuildEnhancementPlanPrompt(req, project),
			})
		},
		Simplified: func(ctx context.Context) (state.EnhancementPlan, error) {
			return g.request(ctx, llm.Request{
				System:  prompts.SimplifiedPlanSystemPrompt,
				User:    prompts.BuildSimplifiedPlanPrompt(req, project),
				Timeout: simplifiedTimeout,
			})
		},
		Default:  DefaultPlan,
		Validate: g.Validate,
		Logger:   g.logger,
	}

	plan, source := chain.Run(ctx)
	g.logger.Info("created enhancement plan",
		zap.String("source", source.String()),
		zap.Int("steps", len(plan.Steps)))
	return plan, source
}

// Validate reports whether a plan is complete enough to use
func (g *Generator) Validate(p state.EnhancementPlan) error {
	if err := g.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			var msgs []string
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("incomplete plan: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("incomplete plan: %w", err)
	}
	return nil
}

func (g *Generator) request(ctx context.Context, req llm.Request) (state.EnhancementPlan, error) {
	var resp planResponse
	if err := llm.CompleteJSON(ctx, g.llm, req, &resp); err != nil {
		return state.EnhancementPlan{}, err
	}

	plan := state.EnhancementPlan{
		Description: resp.EnhancementDescription.String(),
		Steps:       make([]state.PlanStep, 0, len(resp.ImplementationSteps)),
	}
	for _, s := range resp.ImplementationSteps {
		plan.Steps = append(plan.Steps, state.PlanStep{
			Title:           s.Title.String(),
			Description:     s.Description.String(),
			Tasks:           bullets(s.Tasks),
			ExpectedOutcome: s.ExpectedOutcome.String(),
			Resources:       bullets(s.Resources),
		})
	}
	return plan, nil
}

// RenderDocument produces the implementation document. The narrative
// rendering is preferred; any failure falls back to FallbackDocument. The
// boolean reports whether the narrative rendering was used.
func (g *Generator) RenderDocument(ctx context.Context, req state.ProjectSummary, project state.SelectedProject, p state.EnhancementPlan) (string, bool) {
	out, err := g.llm.Complete(ctx, llm.Request{
		System:  prompts.ImplementationDocumentSystemPrompt,
		User:    prompts.BuildDocumentPrompt(req, project, p),
		Timeout: g.documentTimeout,
	})
	if err != nil {
		g.logger.Warn("document rendering failed, using template", zap.Error(err))
		return FallbackDocument(req, project, p), false
	}
	if strings.TrimSpace(out) == "" {
		g.logger.Warn("document rendering returned nothing, using template")
		return FallbackDocument(req, project, p), false
	}
	return out, true
}

func bullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + strings.TrimPrefix(strings.TrimSpace(item), "- ")
	}
	return strings.Join(lines, "\n")
}

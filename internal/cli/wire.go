package cli

import (
	"context"
	"fmt"

	"github.com/howell-aikit/ideaflow/internal/budget"
	"github.com/howell-aikit/ideaflow/internal/config"
	"github.com/howell-aikit/ideaflow/internal/controller"
	"github.com/howell-aikit/ideaflow/internal/idea"
	"github.com/howell-aikit/ideaflow/internal/inspect"
	"github.com/howell-aikit/ideaflow/internal/llm"
	"github.com/howell-aikit/ideaflow/internal/plan"
	"github.com/howell-aikit/ideaflow/internal/rank"
	"github.com/howell-aikit/ideaflow/internal/search"
	"github.com/howell-aikit/ideaflow/internal/sink"
	"github.com/howell-aikit/ideaflow/internal/tavily"
	"go.uber.org/zap"
)

// newController builds every service from the config and hands them to a
// fresh controller. Missing credentials are not an error: the affected
// services fall back to their degraded behavior.
func newController(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*controller.Controller, *sink.FileSink, error) {
	client, err := llm.New(ctx, cfg.LLM, logger.Named("llm"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	tc := tavily.NewClient(cfg.Search.BaseURL, cfg.Search.APIKey(), cfg.Search.TimeoutDuration(), logger.Named("tavily"))
	if !tc.Available() {
		logger.Warn("no search API key found, searches will fail until one is set",
			zap.String("env", cfg.Search.APIKeyEnv))
	}

	out := sink.FromConfig(cfg.Output, logger.Named("sink"))

	svc := controller.Services{
		Ideas:     idea.NewEvaluator(client, logger.Named("idea")),
		Search:    search.NewSearcher(tc, search.OptionsFromConfig(cfg.Search), logger.Named("search")),
		Inspector: inspect.New(logger.Named("inspect"), inspect.SourcesFromConfig(cfg.Inspect, tc, logger.Named("inspect"))...),
		Ranker:    rank.NewRanker(client, logger.Named("rank")),
		Planner:   plan.NewGenerator(client, cfg.LLM.DocumentTimeoutDuration(), logger.Named("plan")),
		Sink:      out,
	}

	ctrl := controller.New(svc,
		controller.WithLayout(layoutFromConfig(cfg.Output)),
		controller.WithQueryLimits(limitsFromConfig(cfg)),
		controller.WithLogger(logger.Named("controller")),
	)
	return ctrl, out, nil
}

func layoutFromConfig(out config.OutputConfig) controller.Layout {
	return controller.Layout{
		PlanFile:   out.PlanFile,
		StepsDir:   out.StepsDir,
		PlanExport: out.PlanExport,
	}
}

func limitsFromConfig(cfg *config.Config) budget.QueryLimits {
	return budget.QueryLimits{
		Purpose:   cfg.Query.PurposeBudget,
		Platform:  cfg.Query.PlatformBudget,
		TechStack: cfg.Query.TechBudget,
		Max:       cfg.Search.MaxQueryLength,
		TechTerms: cfg.Query.MaxTechTerms,
	}
}

// Package rank scores inspected repositories against the requirements and
// picks the one to build on.
package rank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/howell-aikit/ideaflow/internal/inspect"
	"github.com/howell-aikit/ideaflow/internal/llm"
	"github.com/howell-aikit/ideaflow/internal/prompts"
	"github.com/howell-aikit/ideaflow/internal/state"
	"go.uber.org/zap"
)

// Score bounds
const (
	MinScore         = 0
	MaxScore         = 10
	UnavailableScore = 3
	ErrorScore       = 1
)

// Selection reasons
const (
	OnlyProjectReason    = "This is the only project found."
	FallbackReason       = "Selected as the best match based on suitability score."
	DefaultChoiceReason  = "This project best matches your requirements based on our evaluation."
	unknownEffort        = "Unknown"
	noProjectTitle       = "No valid project found"
	selectionFailedTitle = "Could not select project"
	defaultSelectTimeout = 30 * time.Second
)

// scoreResponse is the scoring service reply
type scoreResponse struct {
	Pros               llm.FlexList   `json:"pros"`
	Cons               llm.FlexList   `json:"cons"`
	SuitabilityScore   llm.FlexInt    `json:"suitability_score"`
	Summary            llm.FlexString `json:"summary"`
	TechMatch          llm.FlexList   `json:"tech_match"`
	FeatureMatch       llm.FlexList   `json:"feature_match"`
	ModificationEffort llm.FlexString `json:"modification_effort"`
}

// choiceResponse is the selection service reply
type choiceResponse struct {
	BestProjectIndex llm.FlexInt    `json:"best_project_index"`
	Reason           llm.FlexString `json:"reason"`
}

// Ranker evaluates and selects repositories
type Ranker struct {
	llm           llm.Completer
	logger        *zap.Logger
	selectTimeout time.Duration
}

// NewRanker creates a new ranker
func NewRanker(c llm.Completer, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{llm: c, logger: logger, selectTimeout: defaultSelectTimeout}
}

// Evaluate scores one repository. It never fails: an unavailable service
// yields a conservative score of 3 and any other failure a score of 1.
func (r *Ranker) Evaluate(ctx context.Context, repo inspect.RepoContent, cand state.Candidate, req state.ProjectSummary) state.Evaluation {
	var resp scoreResponse
	err := llm.CompleteJSON(ctx, r.llm, llm.Request{
		System: prompts.BuildEvaluationSystemPrompt(req),
		User:   BuildContext(repo, cand),
	}, &resp)

	switch {
	case errors.Is(err, llm.ErrUnavailable):
		r.logger.Warn("scoring service unavailable, using fallback evaluation", zap.String("url", cand.URL))
		return UnavailableEvaluation(cand)
	case err != nil:
		r.logger.Warn("evaluation failed", zap.String("url", cand.URL), zap.Error(err))
		return ErrorEvaluation(cand, err)
	}

	score := MinScore
	if resp.SuitabilityScore.Valid {
		score = clamp(resp.SuitabilityScore.Value, MinScore, MaxScore)
	}
	effort := resp.ModificationEffort.String()
	if effort == "" {
		effort = unknownEffort
	}

	return state.Evaluation{
		Candidate:          cand,
		Pros:               nonNil(resp.Pros),
		Cons:               nonNil(resp.Cons),
		SuitabilityScore:   score,
		Summary:            resp.Summary.String(),
		TechMatch:          nonNil(resp.TechMatch),
		FeatureMatch:       nonNil(resp.FeatureMatch),
		ModificationEffort: effort,
		Metadata: &state.Metadata{
			Stars:     repo.Stars,
			Forks:     repo.Forks,
			Languages: append([]string(nil), repo.Languages...),
		},
	}
}

// UnavailableEvaluation is used when no scoring service is configured
func UnavailableEvaluation(cand state.Candidate) state.Evaluation {
	return state.Evaluation{
		Candidate:          cand,
		Pros:               []string{"Repository appeared in search results", "May align with project requirements"},
		Cons:               []string{"Limited information available for evaluation", "Would need manual inspection"},
		SuitabilityScore:   UnavailableScore,
		Summary:            "This project was found in the search results but detailed evaluation failed.",
		TechMatch:          []string{},
		FeatureMatch:       []string{},
		ModificationEffort: unknownEffort,
	}
}

// ErrorEvaluation is used when scoring fails
func ErrorEvaluation(cand state.Candidate, err error) state.Evaluation {
	return state.Evaluation{
		Candidate:          cand,
		Pros:               []string{"Repository appeared in search results"},
		Cons:               []string{"Could not evaluate due to an error"},
		SuitabilityScore:   ErrorScore,
		Summary:            fmt.Sprintf("Evaluation failed with error: %v", err),
		TechMatch:          []string{},
		FeatureMatch:       []string{},
		ModificationEffort: unknownEffort,
	}
}

// SelectBest picks the repository to build on. With several evaluations the
// selection service chooses; an invalid or failed choice falls back to the
// highest score, earliest index first.
func (r *Ranker) SelectBest(ctx context.Context, evals []state.Evaluation, req state.ProjectSummary) (selected state.SelectedProject) {
	switch len(evals) {
	case 0:
		return NoProject("No evaluations provided.")
	case 1:
		return selectedFrom(evals, 0, OnlyProjectReason)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("selection panicked, using score fallback", zap.Any("panic", rec))
			selected = r.scoreFallback(evals)
		}
	}()

	idx, reason, err := r.choose(ctx, evals, req)
	if err != nil {
		r.logger.Warn("selection service failed, using score fallback", zap.Error(err))
		return selectedFrom(evals, MaxScoreIndex(evals), FallbackReason)
	}

	r.logger.Info("selected best project", zap.Int("index", idx), zap.String("url", evals[idx].Candidate.URL))
	return selectedFrom(evals, idx, reason)
}

// scoreFallback is the last attempt after the service path panicked
func (r *Ranker) scoreFallback(evals []state.Evaluation) (selected state.SelectedProject) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("score fallback panicked", zap.Any("panic", rec))
			selected = state.SelectedProject{
				Candidate: state.Candidate{Title: selectionFailedTitle, Description: fmt.Sprintf("Selection failed: %v", rec)},
				Index:     -1,
			}
		}
	}()
	return selectedFrom(evals, MaxScoreIndex(evals), FallbackReason)
}

func (r *Ranker) choose(ctx context.Context, evals []state.Evaluation, req state.ProjectSummary) (int, string, error) {
	var resp choiceResponse
	err := llm.CompleteJSON(ctx, r.llm, llm.Request{
		System:  prompts.BuildSelectionSystemPrompt(req),
		User:    prompts.BuildSelectionPrompt(evals),
		Timeout: r.selectTimeout,
	}, &resp)
	if err != nil {
		return 0, "", err
	}

	if !resp.BestProjectIndex.Valid {
		return 0, "", errors.New("selection reply has no usable index")
	}
	n := resp.BestProjectIndex.Value
	if n < 1 || n > len(evals) {
		return 0, "", fmt.Errorf("selection index %d out of range [1, %d]", n, len(evals))
	}

	reason := resp.Reason.String()
	if reason == "" {
		reason = DefaultChoiceReason
	}
	return n - 1, reason, nil
}

// MaxScoreIndex returns the index of the first evaluation with the highest score
func MaxScoreIndex(evals []state.Evaluation) int {
	best := 0
	for i := 1; i < len(evals); i++ {
		if evals[i].SuitabilityScore > evals[best].SuitabilityScore {
			best = i
		}
	}
	return best
}

// NoProject is the sentinel returned when there is nothing to select
func NoProject(description string) state.SelectedProject {
	return state.SelectedProject{
		Candidate: state.Candidate{Title: noProjectTitle, Description: description},
		Index:     -1,
	}
}

// Rank returns the evaluations sorted by score, highest first, with ties in
// their original order, and exactly one flagged as the best match.
func Rank(evals []state.Evaluation, selected state.SelectedProject) []state.Evaluation {
	ranked := make([]state.Evaluation, len(evals))
	copy(ranked, evals)
	if len(ranked) == 0 {
		return ranked
	}

	for i := range ranked {
		ranked[i].IsBestMatch = false
		ranked[i].BestMatchReason = ""
	}

	flagged := selected.Index >= 0 && selected.Index < len(ranked)
	if flagged {
		ranked[selected.Index].IsBestMatch = true
		ranked[selected.Index].BestMatchReason = selected.Reason
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SuitabilityScore > ranked[j].SuitabilityScore
	})

	if !flagged {
		ranked[0].IsBestMatch = true
		ranked[0].BestMatchReason = selected.Reason
	}
	return ranked
}

func selectedFrom(evals []state.Evaluation, idx int, reason string) state.SelectedProject {
	return state.SelectedProject{
		Candidate: evals[idx].Candidate,
		Reason:    reason,
		Index:     idx,
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

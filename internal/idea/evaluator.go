// Package idea rates project ideas for clarity and extracts structured requirements.
package idea

import (
	"context"
	"errors"
	"strings"

	"github.com/howell-aikit/ideaflow/internal/llm"
	"github.com/howell-aikit/ideaflow/internal/prompts"
	"github.com/howell-aikit/ideaflow/internal/state"
	"go.uber.org/zap"
)

// ClarityThreshold is the minimum rating (inclusive) for an idea to be clear enough to search
const ClarityThreshold = 8

// Rating bounds
const (
	MinRating     = 1
	MaxRating     = 10
	DefaultRating = 5
)

// FallbackReflection is returned when the rating service cannot be used
const FallbackReflection = "I couldn't fully analyze your idea. Could you provide more details about your project, such as its purpose, target platform, and key features?"

const defaultReflection = "Could you provide more details about your project idea?"

// IsClear returns true if the rating meets the clarity threshold
func IsClear(rating int) bool {
	return rating >= ClarityThreshold
}

// Assessment is the raw result of the rating service
type Assessment struct {
	Rating          llm.FlexInt    `json:"rating"`
	Reflection      llm.FlexString `json:"reflection"`
	MissingElements llm.FlexList   `json:"missing_elements"`
	Advice          llm.FlexString `json:"advice"`
}

// Evaluator rates and summarizes ideas through an LLM
type Evaluator struct {
	llm    llm.Completer
	logger *zap.Logger
}

// NewEvaluator creates a new idea evaluator
func NewEvaluator(c llm.Completer, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{llm: c, logger: logger}
}

// Rate returns a clarity rating in [1,10] and reflection text. It never fails:
// an unavailable service or malformed reply yields the neutral default.
func (e *Evaluator) Rate(ctx context.Context, text string) (int, string) {
	var a Assessment
	err := llm.CompleteJSON(ctx, e.llm, llm.Request{
		System: prompts.IdeaClaritySystemPrompt,
		User:   prompts.BuildIdeaClarityPrompt(text),
	}, &a)
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			e.logger.Warn("rating service unavailable, using default rating")
		} else {
			e.logger.Warn("idea rating failed, using default rating", zap.Error(err))
		}
		return DefaultRating, FallbackReflection
	}

	rating := DefaultRating
	if a.Rating.Valid {
		rating = clamp(a.Rating.Value, MinRating, MaxRating)
	}

	return rating, buildReflection(a)
}

// Summarize extracts the four canonical requirement fields. It never fails:
// on any error every field is empty.
func (e *Evaluator) Summarize(ctx context.Context, text string) state.ProjectSummary {
	out, err := e.llm.Complete(ctx, llm.Request{
		System: prompts.ProjectSummarySystemPrompt + "\n\n" + llm.JSONInstruction,
		User:   prompts.BuildSummaryPrompt(text),
	})
	if err != nil {
		e.logger.Warn("summary service failed, using empty summary", zap.Error(err))
		return state.ProjectSummary{}
	}

	var raw map[string]llm.FlexString
	if err := llm.DecodeJSON(out, &raw); err != nil {
		e.logger.Warn("summary response malformed, using empty summary", zap.Error(err))
		return state.ProjectSummary{}
	}

	summary := Normalize(raw)
	if summary.IsEmpty() {
		e.logger.Warn("summary response carried no requirement fields")
	} else {
		e.logger.Debug("summarized idea", zap.Any("summary", summary.Fields()))
	}
	return summary
}

func buildReflection(a Assessment) string {
	reflection := a.Reflection.String()
	if reflection == "" {
		reflection = defaultReflection
	}

	var b strings.Builder
	b.WriteString(reflection)
	if len(a.MissingElements) > 0 {
		b.WriteString("\n\nYour idea is missing: ")
		b.WriteString(strings.Join(a.MissingElements, ", "))
		b.WriteString(".")
	}
	if advice := a.Advice.String(); advice != "" {
		b.WriteString("\n\n")
		b.WriteString(advice)
	}
	return b.String()
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

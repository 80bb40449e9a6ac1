package controller

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/howell-aikit/ideaflow/internal/budget"
	"github.com/howell-aikit/ideaflow/internal/idea"
	"github.com/howell-aikit/ideaflow/internal/plan"
	"github.com/howell-aikit/ideaflow/internal/rank"
	"github.com/howell-aikit/ideaflow/internal/search"
	"github.com/howell-aikit/ideaflow/internal/state"
	"go.uber.org/zap"
)

// userError is a request the current stage cannot serve. Its message is
// shown as is.
type userError struct {
	msg string
}

func (e *userError) Error() string { return e.msg }

// internalError is an unexpected fault caught at the controller boundary
type internalError struct {
	cause error
}

func (e *internalError) Error() string { return e.cause.Error() }

func (e *internalError) Unwrap() error { return e.cause }

// failureMessage renders an action error for the chat
func failureMessage(stage state.Stage, err error) string {
	var ue *userError
	if errors.As(err, &ue) {
		return ue.msg
	}
	switch stage {
	case state.StageSearched, state.StageEvaluating:
		return fmt.Sprintf(evaluationErrorMsg, err)
	case state.StagePlanning:
		return fmt.Sprintf(planningErrorMsg, err)
	default:
		return fmt.Sprintf(unexpectedErrorMsg, err)
	}
}

// startIdea rates and summarizes the first description of the idea
func (c *Controller) startIdea(ctx context.Context, s *state.Session, text string) error {
	s.OriginalIdea = text
	c.assess(ctx, s)

	if s.AwaitingClarification {
		c.say(s, initialUnclearMessage(s.IdeaRating, s.Summary(), s.IdeaReflection))
	} else {
		c.say(s, initialClearMessage(s.IdeaRating, s.Summary()))
	}
	return nil
}

// clarify folds more detail into the idea and re-assesses the whole text
func (c *Controller) clarify(ctx context.Context, s *state.Session, text string) error {
	s.OriginalIdea = s.OriginalIdea + " " + text
	c.assess(ctx, s)

	if s.AwaitingClarification {
		c.say(s, clarificationUnclearMessage(s.IdeaRating, s.Summary(), s.IdeaReflection))
	} else {
		c.say(s, clarificationClearMessage(s.IdeaRating, s.Summary()))
	}
	return nil
}

// assess rates and summarizes the accumulated idea. The summary is
// replaced every round regardless of the rating.
func (c *Controller) assess(ctx context.Context, s *state.Session) {
	rating, reflection := c.svc.Ideas.Rate(ctx, s.OriginalIdea)
	summary := c.svc.Ideas.Summarize(ctx, s.OriginalIdea)

	s.IdeaRating = rating
	s.IdeaReflection = reflection
	s.ProjectSummary = &summary
	s.SearchResults = nil
	s.Evaluations = []state.Evaluation{}
	s.SelectedProject = nil
	s.EnhancementPlan = nil

	if idea.IsClear(rating) {
		s.AwaitingClarification = false
		s.Stage = state.StageSearchReady
	} else {
		s.AwaitingClarification = true
		s.Stage = state.StageAwaitingClarification
	}

	c.logger.Info("idea assessed",
		zap.String("session_id", s.ID),
		zap.Int("rating", rating),
		zap.Bool("awaiting_clarification", s.AwaitingClarification))
}

// acknowledge answers text that arrives while the pipeline is busy or done
func (c *Controller) acknowledge(_ context.Context, s *state.Session, _ string) error {
	if s.Stage == state.StageCompleted {
		c.say(s, completedStatusMsg)
	} else {
		c.say(s, fmt.Sprintf(busyStatusMsg, s.Stage.Label()))
	}
	return nil
}

func (c *Controller) rejectSkip(_ context.Context, s *state.Session, _ string) error {
	if s.Stage == state.StageCompleted {
		return &userError{msg: skipCompletedMsg}
	}
	return &userError{msg: skipWithoutIdeaMsg}
}

// skipClarification searches right away with the current summary
func (c *Controller) skipClarification(ctx context.Context, s *state.Session, _ string) error {
	if !s.HasSummary() {
		return &userError{msg: skipWithoutIdeaMsg}
	}

	s.AwaitingClarification = false
	s.Evaluations = []state.Evaluation{}
	s.SelectedProject = nil
	s.EnhancementPlan = nil

	c.logger.Info("clarification skipped",
		zap.String("session_id", s.ID),
		zap.Int("rating", s.IdeaRating))
	return c.search(ctx, s, "")
}

// search runs the repository search. A failed search is not an action
// error: the marker is committed so the user sees it and can retry.
func (c *Controller) search(ctx context.Context, s *state.Session, _ string) error {
	query := budget.BuildQuery(s.OriginalIdea, s.Summary(), c.limits)
	c.logger.Debug("searching", zap.String("session_id", s.ID), zap.String("query", query))

	candidates, err := c.svc.Search.Search(ctx, query)
	if err == nil && len(candidates) == 0 {
		err = &search.Error{Kind: search.KindNoResults, Message: noResultsMsg}
	}
	if err != nil {
		marker := searchMarker(err)
		s.SearchResults = state.NewSearchFailure(marker)
		s.Stage = state.StageSearchReady
		c.addMessage(s, state.RoleAssistant, searchErrorMessage(marker.Message), true)
		c.logger.Warn("search failed",
			zap.String("session_id", s.ID),
			zap.String("kind", marker.Kind),
			zap.Error(err))
		return nil
	}

	s.SearchResults = state.NewSearchResults(candidates)
	s.Evaluations = []state.Evaluation{}
	s.Stage = state.StageSearched
	c.say(s, searchResultsMessage(candidates))
	return nil
}

func searchMarker(err error) *state.SearchError {
	var serr *search.Error
	if errors.As(err, &serr) {
		return serr.Marker()
	}
	return &state.SearchError{Kind: string(search.KindTransport), Message: err.Error()}
}

// beginEvaluation moves past the search results once they are usable
func (c *Controller) beginEvaluation(_ context.Context, s *state.Session, _ string) error {
	if !s.SearchResults.OK() {
		return &userError{msg: noProjectsToEvaluateMsg}
	}
	s.Stage = state.StageEvaluating
	return nil
}

// evaluate inspects and scores every candidate in order, then picks the best
func (c *Controller) evaluate(ctx context.Context, s *state.Session, _ string) error {
	if !s.SearchResults.OK() {
		return &userError{msg: noProjectsToEvaluateMsg}
	}
	req := s.Summary()

	evals := make([]state.Evaluation, 0, len(s.SearchResults.Candidates))
	for _, cand := range s.SearchResults.Candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		content := c.svc.Inspector.Fetch(ctx, cand.URL)
		evals = append(evals, c.svc.Ranker.Evaluate(ctx, content, cand, req))
	}

	selected := c.svc.Ranker.SelectBest(ctx, evals, req)
	ranked := rank.Rank(evals, selected)
	if !selected.Found() {
		selected = fromBest(ranked, evals)
		for i := range ranked {
			if ranked[i].IsBestMatch {
				ranked[i].BestMatchReason = selected.Reason
			}
		}
	}

	s.Evaluations = ranked
	s.SelectedProject = &selected
	s.Stage = state.StagePlanning
	c.say(s, evaluationReport(ranked))

	c.logger.Info("evaluation done",
		zap.String("session_id", s.ID),
		zap.Int("evaluations", len(ranked)),
		zap.String("selected", selected.URL))
	return nil
}

// fromBest derives the selection from the flagged evaluation when the
// ranker could not name one
func fromBest(ranked, original []state.Evaluation) state.SelectedProject {
	for _, e := range ranked {
		if !e.IsBestMatch {
			continue
		}
		reason := e.BestMatchReason
		if reason == "" {
			reason = rank.FallbackReason
		}
		index := -1
		for i, o := range original {
			if o.Candidate.URL == e.Candidate.URL {
				index = i
				break
			}
		}
		return state.SelectedProject{Candidate: e.Candidate, Reason: reason, Index: index}
	}
	return rank.NoProject("No evaluations provided.")
}

// plan creates the enhancement plan, renders and persists the documents
func (c *Controller) plan(ctx context.Context, s *state.Session, _ string) error {
	if !s.SelectedProject.Found() {
		return &userError{msg: noProjectSelectedMsg}
	}
	req := s.Summary()
	project := *s.SelectedProject

	p, source := c.svc.Planner.CreatePlan(ctx, project, req)
	doc, narrative := c.svc.Planner.RenderDocument(ctx, req, project, p)
	c.logger.Info("plan rendered",
		zap.String("session_id", s.ID),
		zap.String("plan_source", source.String()),
		zap.Bool("narrative", narrative))

	files := c.persist(s, req, project, p, doc)

	s.EnhancementPlan = &p
	s.Documents = documentNames(files)
	s.Stage = state.StageCompleted
	c.say(s, planMessage(project, p, files))
	c.say(s, newProjectMsg)
	return nil
}

// persist writes the plan document, its step documents, and the export.
// A failed write is logged and left out of the result.
func (c *Controller) persist(s *state.Session, req state.ProjectSummary, project state.SelectedProject, p state.EnhancementPlan, doc string) []writtenFile {
	if c.svc.Sink == nil {
		return nil
	}

	var files []writtenFile
	write := func(name, content, label string) {
		if err := c.svc.Sink.Write(name, content); err != nil {
			c.logger.Error("failed to write document",
				zap.String("session_id", s.ID),
				zap.String("name", name),
				zap.Error(err))
			return
		}
		files = append(files, writtenFile{Name: name, Label: label})
	}

	write(c.layout.PlanFile, doc, planFileLabel)
	for _, step := range plan.SplitSteps(doc) {
		write(path.Join(c.layout.StepsDir, step.FileName()), step.Content, step.Title)
	}

	if c.layout.PlanExport != "" {
		data, err := plan.ExportYAML(req, project, p)
		if err != nil {
			c.logger.Error("failed to export plan", zap.Error(err))
		} else {
			write(c.layout.PlanExport, string(data), exportFileLabel)
		}
	}
	return files
}

// writtenFile is a persisted document with its description
type writtenFile struct {
	Name  string
	Label string
}

func documentNames(files []writtenFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

// Package controller sequences idea clarification, repository search,
// evaluation, and planning for one conversation.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/howell-aikit/ideaflow/internal/budget"
	"github.com/howell-aikit/ideaflow/internal/fallback"
	"github.com/howell-aikit/ideaflow/internal/inspect"
	"github.com/howell-aikit/ideaflow/internal/sink"
	"github.com/howell-aikit/ideaflow/internal/state"
	"go.uber.org/zap"
)

// IdeaEvaluator rates and summarizes the idea text
type IdeaEvaluator interface {
	Rate(ctx context.Context, text string) (int, string)
	Summarize(ctx context.Context, text string) state.ProjectSummary
}

// RepositorySearch finds candidate repositories
type RepositorySearch interface {
	Search(ctx context.Context, query string) ([]state.Candidate, error)
}

// RepositoryInspector scrapes one repository
type RepositoryInspector interface {
	Fetch(ctx context.Context, url string) inspect.RepoContent
}

// RepositoryRanker scores repositories and picks the best one
type RepositoryRanker interface {
	Evaluate(ctx context.Context, repo inspect.RepoContent, cand state.Candidate, req state.ProjectSummary) state.Evaluation
	SelectBest(ctx context.Context, evals []state.Evaluation, req state.ProjectSummary) state.SelectedProject
}

// PlanGenerator produces the enhancement plan and its document
type PlanGenerator interface {
	CreatePlan(ctx context.Context, project state.SelectedProject, req state.ProjectSummary) (state.EnhancementPlan, fallback.Source)
	RenderDocument(ctx context.Context, req state.ProjectSummary, project state.SelectedProject, plan state.EnhancementPlan) (string, bool)
}

// Services are the collaborators the controller drives
type Services struct {
	Ideas     IdeaEvaluator
	Search    RepositorySearch
	Inspector RepositoryInspector
	Ranker    RepositoryRanker
	Planner   PlanGenerator
	Sink      sink.DocumentSink
}

// Layout names the documents written through the sink
type Layout struct {
	PlanFile   string
	StepsDir   string
	PlanExport string // empty disables the YAML export
}

// DefaultLayout matches the default output config
func DefaultLayout() Layout {
	return Layout{
		PlanFile:   "implementation_plan.txt",
		StepsDir:   "implementation_steps",
		PlanExport: "enhancement_plan.yaml",
	}
}

// event is what the caller asked the controller to do
type event int

const (
	eventText event = iota
	eventSkip
	eventTick
)

func (e event) String() string {
	switch e {
	case eventText:
		return "text"
	case eventSkip:
		return "skip"
	default:
		return "tick"
	}
}

// transition keys the dispatch table
type transition struct {
	stage state.Stage
	event event
}

// action works on a copy of the session. A returned error discards the
// copy and is reported to the user; the committed session keeps its stage.
type action func(ctx context.Context, s *state.Session, text string) error

// Controller owns one session and advances it through the pipeline. All
// operations are serialized.
type Controller struct {
	svc     Services
	layout  Layout
	limits  budget.QueryLimits
	logger  *zap.Logger
	now     func() time.Time
	table   map[transition]action
	session *state.Session
	mu      sync.Mutex
}

// Option configures a Controller
type Option func(*Controller)

// WithLayout sets the document names
func WithLayout(l Layout) Option {
	return func(c *Controller) { c.layout = l }
}

// WithQueryLimits sets the search query budgets
func WithQueryLimits(l budget.QueryLimits) Option {
	return func(c *Controller) { c.limits = l }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the time source for message timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller with a fresh session
func New(svc Services, opts ...Option) *Controller {
	c := &Controller{
		svc:    svc,
		layout: DefaultLayout(),
		limits: budget.DefaultQueryLimits(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = c.newSession()
	c.table = c.dispatchTable()
	return c
}

func (c *Controller) dispatchTable() map[transition]action {
	return map[transition]action{
		{state.StageNotStarted, eventText}:            c.startIdea,
		{state.StageAwaitingClarification, eventText}: c.clarify,
		{state.StageSearchReady, eventText}:           c.clarify,
		{state.StageSearched, eventText}:              c.clarify,
		{state.StageEvaluating, eventText}:            c.acknowledge,
		{state.StagePlanning, eventText}:              c.acknowledge,
		{state.StageCompleted, eventText}:             c.acknowledge,

		{state.StageNotStarted, eventSkip}:            c.rejectSkip,
		{state.StageAwaitingClarification, eventSkip}: c.skipClarification,
		{state.StageSearchReady, eventSkip}:           c.skipClarification,
		{state.StageSearched, eventSkip}:              c.skipClarification,
		{state.StageEvaluating, eventSkip}:            c.skipClarification,
		{state.StagePlanning, eventSkip}:              c.skipClarification,
		{state.StageCompleted, eventSkip}:             c.rejectSkip,

		{state.StageSearchReady, eventTick}: c.search,
		{state.StageSearched, eventTick}:    c.beginEvaluation,
		{state.StageEvaluating, eventTick}:  c.evaluate,
		{state.StagePlanning, eventTick}:    c.plan,
	}
}

// SubmitText handles user text. Blank text is ignored.
func (c *Controller) SubmitText(ctx context.Context, text string) state.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return c.session.Clone()
	}
	c.addMessage(c.session, state.RoleUser, text, false)
	return c.dispatch(ctx, eventText, text)
}

// SkipClarification searches with whatever idea and summary are held,
// bypassing the clarity gate.
func (c *Controller) SkipClarification(ctx context.Context) state.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatch(ctx, eventSkip, "")
}

// Tick advances one automatic pipeline step. It does nothing in stages
// that wait for the user.
func (c *Controller) Tick(ctx context.Context) state.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatch(ctx, eventTick, "")
}

// Reset discards the session and every persisted plan document
func (c *Controller) Reset(ctx context.Context) state.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.session.ID
	c.session = c.newSession()
	c.logger.Info("session reset",
		zap.String("previous_session_id", previous),
		zap.String("session_id", c.session.ID))

	if c.svc.Sink != nil {
		if err := c.svc.Sink.DeleteAll(); err != nil {
			c.logger.Error("failed to delete plan documents", zap.Error(err))
			c.addMessage(c.session, state.RoleAssistant, fmt.Sprintf(resetCleanupFailedMsg, err), true)
		}
	}
	return c.session.Clone()
}

// Session returns a snapshot of the current session
func (c *Controller) Session() state.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// dispatch runs the action for the current stage (must hold c.mu)
func (c *Controller) dispatch(ctx context.Context, ev event, text string) state.Session {
	from := c.session.Stage
	act, ok := c.table[transition{from, ev}]
	if !ok {
		c.logger.Debug("no action for event",
			zap.String("session_id", c.session.ID),
			zap.String("stage", string(from)),
			zap.Stringer("event", ev))
		return c.session.Clone()
	}

	work := c.session.Clone()
	if err := c.run(ctx, act, &work, text); err != nil {
		c.logger.Warn("stage failed",
			zap.String("session_id", c.session.ID),
			zap.String("stage", string(from)),
			zap.Stringer("event", ev),
			zap.Error(err))
		c.addMessage(c.session, state.RoleAssistant, failureMessage(from, err), true)
		return c.session.Clone()
	}

	c.session = &work
	if work.Stage != from {
		c.logger.Info("stage changed",
			zap.String("session_id", work.ID),
			zap.String("from", string(from)),
			zap.String("stage", string(work.Stage)))
	}
	return c.session.Clone()
}

// run executes an action, converting a panic into an error
func (c *Controller) run(ctx context.Context, act action, s *state.Session, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("action panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = &internalError{cause: fmt.Errorf("%v", r)}
		}
	}()
	return act(ctx, s, text)
}

func (c *Controller) newSession() *state.Session {
	s := state.NewSession()
	s.CreatedAt = c.now()
	return s
}

func (c *Controller) addMessage(s *state.Session, role state.Role, text string, isError bool) {
	s.Messages = append(s.Messages, state.Message{
		Role:      role,
		Text:      text,
		Timestamp: c.now(),
		IsError:   isError,
	})
}

func (c *Controller) say(s *state.Session, text string) {
	c.addMessage(s, state.RoleAssistant, text, false)
}

package state

import (
	"time"

	"github.com/google/uuid"
)

// Stage represents the controller's position in the planning pipeline
type Stage string

const (
	StageNotStarted            Stage = "not_started"
	StageAwaitingClarification Stage = "awaiting_clarification"
	StageSearchReady           Stage = "search_ready"
	StageSearched              Stage = "searched"
	StageEvaluating            Stage = "evaluating"
	StagePlanning              Stage = "planning"
	StageCompleted             Stage = "completed"
)

// Label returns a human readable stage name
func (s Stage) Label() string {
	switch s {
	case StageNotStarted:
		return "Not started"
	case StageAwaitingClarification:
		return "Awaiting clarification"
	case StageSearchReady:
		return "Ready to search"
	case StageSearched:
		return "Search complete"
	case StageEvaluating:
		return "Evaluating repositories"
	case StagePlanning:
		return "Creating plan"
	case StageCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Role identifies the sender of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation transcript
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"is_error,omitempty"`
}

// ProjectSummary holds the structured requirements extracted from the idea.
// All four fields are always present; an unknown field is an empty string.
type ProjectSummary struct {
	Purpose     string `json:"purpose" yaml:"purpose"`
	Platform    string `json:"platform" yaml:"platform"`
	TechStack   string `json:"tech_stack" yaml:"tech_stack"`
	KeyFeatures string `json:"key_features" yaml:"key_features"`
}

// Fields returns the summary as its four canonical key/value pairs
func (p ProjectSummary) Fields() map[string]string {
	return map[string]string{
		"purpose":      p.Purpose,
		"platform":     p.Platform,
		"tech_stack":   p.TechStack,
		"key_features": p.KeyFeatures,
	}
}

// IsEmpty returns true if no field carries any text
func (p ProjectSummary) IsEmpty() bool {
	return p.Purpose == "" && p.Platform == "" && p.TechStack == "" && p.KeyFeatures == ""
}

// Candidate is a repository reference returned by search
type Candidate struct {
	Title       string `json:"title" yaml:"title"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
}

// SearchError is the explicit error marker stored in place of candidates
type SearchError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *SearchError) Error() string {
	return e.Message
}

// SearchResults holds either candidates or an error marker, never both
type SearchResults struct {
	Candidates []Candidate  `json:"candidates,omitempty"`
	Err        *SearchError `json:"error,omitempty"`
}

// NewSearchResults wraps a non-empty candidate list
func NewSearchResults(candidates []Candidate) *SearchResults {
	return &SearchResults{Candidates: candidates}
}

// NewSearchFailure wraps an error marker
func NewSearchFailure(err *SearchError) *SearchResults {
	return &SearchResults{Err: err}
}

// OK returns true if the results hold usable candidates
func (r *SearchResults) OK() bool {
	return r != nil && r.Err == nil && len(r.Candidates) > 0
}

// Metadata holds repository statistics gathered during inspection
type Metadata struct {
	Stars     int      `json:"stars"`
	Forks     int      `json:"forks"`
	Languages []string `json:"languages"`
}

// Evaluation is a scored assessment of one candidate
type Evaluation struct {
	Candidate          Candidate `json:"candidate"`
	Pros               []string  `json:"pros"`
	Cons               []string  `json:"cons"`
	SuitabilityScore   int       `json:"suitability_score"`
	Summary            string    `json:"summary"`
	TechMatch          []string  `json:"tech_match"`
	FeatureMatch       []string  `json:"feature_match"`
	ModificationEffort string    `json:"modification_effort"`
	Metadata           *Metadata `json:"metadata,omitempty"`
	IsBestMatch        bool      `json:"is_best_match"`
	BestMatchReason    string    `json:"best_match_reason,omitempty"`
}

// SelectedProject is the chosen candidate decorated with the selection reason.
// Index is the position in the evaluation list passed to selection, or -1.
type SelectedProject struct {
	Candidate
	Reason string `json:"reason" yaml:"reason"`
	Index  int    `json:"-" yaml:"-"`
}

// Found returns true if the selection refers to a real repository
func (p *SelectedProject) Found() bool {
	return p != nil && p.URL != ""
}

// PlanStep is one ordered step of an enhancement plan
type PlanStep struct {
	Title           string `json:"title" yaml:"title" validate:"required"`
	Description     string `json:"description" yaml:"description"`
	Tasks           string `json:"tasks" yaml:"tasks"`
	ExpectedOutcome string `json:"expected_outcome" yaml:"expected_outcome"`
	Resources       string `json:"resources" yaml:"resources"`
}

// EnhancementPlan describes how to adapt the selected project
type EnhancementPlan struct {
	Description string     `json:"description" yaml:"description" validate:"required"`
	Steps       []PlanStep `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
}

// Session is the single mutable unit of state for one planning conversation
type Session struct {
	ID                    string           `json:"id"`
	Messages              []Message        `json:"messages"`
	OriginalIdea          string           `json:"original_idea"`
	ProjectSummary        *ProjectSummary  `json:"project_summary,omitempty"`
	IdeaRating            int              `json:"idea_rating"`
	IdeaReflection        string           `json:"idea_reflection"`
	AwaitingClarification bool             `json:"awaiting_clarification"`
	SearchResults         *SearchResults   `json:"search_results,omitempty"`
	Evaluations           []Evaluation     `json:"evaluations"`
	SelectedProject       *SelectedProject `json:"selected_project,omitempty"`
	EnhancementPlan       *EnhancementPlan `json:"enhancement_plan,omitempty"`
	Documents             []string         `json:"documents,omitempty"`
	Stage                 Stage            `json:"stage"`
	CreatedAt             time.Time        `json:"created_at"`
}

// NewSession creates an empty session at the start of a conversation
func NewSession() *Session {
	return &Session{
		ID:          uuid.New().String()[:8],
		Messages:    []Message{},
		Evaluations: []Evaluation{},
		Stage:       StageNotStarted,
		CreatedAt:   time.Now(),
	}
}

// HasSummary returns true once the idea has been summarized at least once
func (s *Session) HasSummary() bool {
	return s.ProjectSummary != nil
}

// Summary returns the current summary, or an empty one
func (s *Session) Summary() ProjectSummary {
	if s.ProjectSummary == nil {
		return ProjectSummary{}
	}
	return *s.ProjectSummary
}

// AutoAdvance returns true if the next tick should run without new user input.
// A failed step waits for the user instead of retrying on its own.
func (s *Session) AutoAdvance() bool {
	if last, ok := s.LastMessage(); ok && last.IsError {
		return false
	}
	switch s.Stage {
	case StageSearchReady:
		return s.SearchResults == nil
	case StageSearched:
		return s.SearchResults.OK()
	case StageEvaluating, StagePlanning:
		return true
	default:
		return false
	}
}

// BestEvaluation returns the evaluation flagged as best match
func (s *Session) BestEvaluation() *Evaluation {
	for i := range s.Evaluations {
		if s.Evaluations[i].IsBestMatch {
			return &s.Evaluations[i]
		}
	}
	return nil
}

// LastMessage returns the most recent message, if any
func (s *Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Clone returns a deep copy safe to hand to readers
func (s *Session) Clone() Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.Documents = append([]string(nil), s.Documents...)
	if s.ProjectSummary != nil {
		ps := *s.ProjectSummary
		c.ProjectSummary = &ps
	}
	if s.SearchResults != nil {
		sr := SearchResults{Candidates: append([]Candidate(nil), s.SearchResults.Candidates...)}
		if s.SearchResults.Err != nil {
			e := *s.SearchResults.Err
			sr.Err = &e
		}
		c.SearchResults = &sr
	}
	c.Evaluations = make([]Evaluation, len(s.Evaluations))
	for i, e := range s.Evaluations {
		c.Evaluations[i] = e.clone()
	}
	if s.SelectedProject != nil {
		sp := *s.SelectedProject
		c.SelectedProject = &sp
	}
	if s.EnhancementPlan != nil {
		ep := EnhancementPlan{
			Description: s.EnhancementPlan.Description,
			Steps:       append([]PlanStep(nil), s.EnhancementPlan.Steps...),
		}
		c.EnhancementPlan = &ep
	}
	return c
}

func (e Evaluation) clone() Evaluation {
	c := e
	c.Pros = append([]string(nil), e.Pros...)
	c.Cons = append([]string(nil), e.Cons...)
	c.TechMatch = append([]string(nil), e.TechMatch...)
	c.FeatureMatch = append([]string(nil), e.FeatureMatch...)
	if e.Metadata != nil {
		m := *e.Metadata
		m.Languages = append([]string(nil), e.Metadata.Languages...)
		c.Metadata = &m
	}
	return c
}

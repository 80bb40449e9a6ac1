// Package search turns a query into a bounded list of candidate repositories.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/howell-aikit/ideaflow/internal/budget"
	"github.com/howell-aikit/ideaflow/internal/config"
	"github.com/howell-aikit/ideaflow/internal/state"
	"github.com/howell-aikit/ideaflow/internal/tavily"
	"go.uber.org/zap"
)

// Kind classifies a search failure
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindTransport   Kind = "transport"
	KindNoResults   Kind = "no_results"
)

// Error is a search failure carrying the message shown to the user
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Marker converts the error into the session's search error marker
func (e *Error) Marker() *state.SearchError {
	return &state.SearchError{Kind: string(e.Kind), Message: e.Message}
}

// Service is the search provider
type Service interface {
	Search(ctx context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error)
}

// Options control query shaping and result filtering
type Options struct {
	Domain           string
	QuerySuffix      string
	Depth            string
	FallbackDepth    string
	MaxResults       int
	MaxQueryLength   int
	FallbackWords    int
	DescriptionLimit int
}

// OptionsFromConfig builds options from the search config
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		Domain:           cfg.Domain,
		QuerySuffix:      cfg.QuerySuffix,
		Depth:            cfg.Depth,
		FallbackDepth:    cfg.FallbackDepth,
		MaxResults:       cfg.MaxResults,
		MaxQueryLength:   cfg.MaxQueryLength,
		FallbackWords:    cfg.FallbackWords,
		DescriptionLimit: cfg.DescriptionLimit,
	}
}

// Searcher finds candidate repositories
type Searcher struct {
	svc    Service
	opts   Options
	logger *zap.Logger
}

// NewSearcher creates a new searcher
func NewSearcher(svc Service, opts Options, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{svc: svc, opts: opts, logger: logger}
}

// Search returns up to MaxResults candidates hosted on the target domain.
// Any failure is returned as *Error.
func (s *Searcher) Search(ctx context.Context, query string) ([]state.Candidate, error) {
	truncated := budget.Truncate(strings.TrimSpace(query), s.opts.MaxQueryLength)

	resp, err := s.svc.Search(ctx, s.request(truncated, s.opts.Depth))
	if errors.Is(err, tavily.ErrUnavailable) {
		return nil, &Error{
			Kind:    KindUnavailable,
			Message: "Search service is currently unavailable. Please try again later.",
			Err:     err,
		}
	}
	if err != nil {
		s.logger.Warn("search failed, retrying with simplified query", zap.Error(err))
		simplified := budget.FirstWords(truncated, s.opts.FallbackWords)
		resp, err = s.svc.Search(ctx, s.request(simplified, s.opts.FallbackDepth))
	}
	if err != nil {
		return nil, &Error{
			Kind:    KindTransport,
			Message: fmt.Sprintf("Search failed: %v. Please try again with a simpler query.", err),
			Err:     err,
		}
	}

	candidates := s.filter(resp.Results)
	if len(candidates) == 0 {
		return nil, &Error{
			Kind:    KindNoResults,
			Message: "No relevant GitHub projects found. Try adjusting your search terms.",
		}
	}

	s.logger.Info("search done", zap.Int("results", len(resp.Results)), zap.Int("candidates", len(candidates)))
	return candidates, nil
}

func (s *Searcher) request(query, depth string) tavily.SearchRequest {
	if s.opts.QuerySuffix != "" {
		query = strings.TrimSpace(query + " " + s.opts.QuerySuffix)
	}
	req := tavily.SearchRequest{
		Query:       query,
		SearchDepth: depth,
		MaxResults:  s.opts.MaxResults,
	}
	if s.opts.Domain != "" {
		req.IncludeDomains = []string{s.opts.Domain}
	}
	return req
}

func (s *Searcher) filter(results []tavily.SearchResult) []state.Candidate {
	seen := make(map[string]bool)
	var candidates []state.Candidate
	for _, r := range results {
		if !OnHost(r.URL, s.opts.Domain) || seen[r.URL] {
			continue
		}
		seen[r.URL] = true

		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = "Untitled"
		}
		candidates = append(candidates, state.Candidate{
			Title:       title,
			URL:         r.URL,
			Description: budget.TruncateWithEllipsis(strings.TrimSpace(r.Content), s.opts.DescriptionLimit),
		})
		if len(candidates) == s.opts.MaxResults {
			break
		}
	}
	return candidates
}

// OnHost returns true if rawURL is served from domain or one of its subdomains
func OnHost(rawURL, domain string) bool {
	if domain == "" {
		return rawURL != ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

package inspect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/howell-aikit/ideaflow/internal/config"
	"github.com/howell-aikit/ideaflow/internal/tavily"
	"github.com/howell-aikit/ideaflow/pkg/git"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// maxPageBytes bounds how much of a fetched page is read
const maxPageBytes = 2 << 20

// maxListedFiles bounds the synthesized file table of a clone
const maxListedFiles = 200

var (
	multiNewline  = regexp.MustCompile(`\n{3,}`)
	multiSpace    = regexp.MustCompile(`[ \t]{2,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// Extractor is the slice of the Tavily client used for content extraction
type Extractor interface {
	Extract(ctx context.Context, req tavily.ExtractRequest) (*tavily.ExtractResponse, error)
}

// ExtractSource reads page content through the Tavily extract API
type ExtractSource struct {
	client Extractor
	depth  string
}

// NewExtractSource creates an extract-backed source
func NewExtractSource(client Extractor, depth string) *ExtractSource {
	return &ExtractSource{client: client, depth: depth}
}

func (s *ExtractSource) Name() string { return "extract" }

// Fetch returns the raw content of the first extract result
func (s *ExtractSource) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := s.client.Extract(ctx, tavily.ExtractRequest{
		URLs:          url,
		IncludeImages: false,
		ExtractDepth:  s.depth,
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", url, err)
	}
	if resp == nil || len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].RawContent, nil
}

// PageSource downloads the repository page and flattens its HTML to text
type PageSource struct {
	client    *http.Client
	userAgent string
}

// NewPageSource creates a direct page fetcher
func NewPageSource(timeout time.Duration) *PageSource {
	return &PageSource{
		client:    &http.Client{Timeout: timeout},
		userAgent: "ideaflow/1.0 (repository inspector)",
	}
}

func (s *PageSource) Name() string { return "page" }

// Fetch downloads url and returns its visible text
func (s *PageSource) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	return HTMLToText(string(body))
}

// HTMLToText returns the visible text of an HTML document with block
// elements separated by blank lines.
func HTMLToText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var sb strings.Builder
	extractText(root, &sb)

	text := multiSpace.ReplaceAllString(sb.String(), " ")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

func extractText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "svg", "head":
			return
		}
	}

	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "section", "article", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "ul", "ol", "table", "pre":
			sb.WriteString("\n\n")
		case "br":
			sb.WriteString("\n")
		}
	}
}

// Cloner produces a repository snapshot for a URL
type Cloner func(ctx context.Context, url string) (*git.Snapshot, error)

// GitSource shallow clones the repository into memory and renders its
// README and file list in the same layout a repository page uses.
type GitSource struct {
	clone  Cloner
	logger *zap.Logger
}

// NewGitSource creates a clone-backed source. A nil cloner uses git.Clone.
func NewGitSource(clone Cloner, logger *zap.Logger) *GitSource {
	if clone == nil {
		clone = git.Clone
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitSource{clone: clone, logger: logger}
}

func (s *GitSource) Name() string { return "git" }

// Fetch clones url and renders a page-like text snapshot
func (s *GitSource) Fetch(ctx context.Context, url string) (string, error) {
	snap, err := s.clone(ctx, url)
	if err != nil {
		return "", err
	}
	if hash, err := snap.CommitHash(); err == nil {
		s.logger.Debug("cloned repository", zap.String("url", snap.URL()), zap.String("commit", hash))
	}
	return RenderSnapshot(snap)
}

// RenderSnapshot lays out a snapshot as "Folders and files" and "README" sections
func RenderSnapshot(snap *git.Snapshot) (string, error) {
	files, err := snap.ListFiles()
	if err != nil {
		return "", err
	}
	if len(files) > maxListedFiles {
		files = files[:maxListedFiles]
	}

	var sb strings.Builder
	if len(files) > 0 {
		sb.WriteString("Folders and files\n")
		for _, f := range files {
			fmt.Fprintf(&sb, "| %s |\n", f)
		}
	}

	if readme, err := snap.Readme(); err == nil {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("README\n\n")
		sb.WriteString(strings.TrimSpace(readme))
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// SourcesFromConfig builds the source chain: extract first, then the
// optional page and clone fallbacks.
func SourcesFromConfig(cfg config.InspectConfig, extractor Extractor, logger *zap.Logger) []Source {
	var sources []Source
	if extractor != nil {
		sources = append(sources, NewExtractSource(extractor, cfg.ExtractDepth))
	}
	if cfg.PageFallback {
		sources = append(sources, NewPageSource(cfg.TimeoutDuration()))
	}
	if cfg.GitFallback {
		sources = append(sources, NewGitSource(nil, logger))
	}
	return sources
}

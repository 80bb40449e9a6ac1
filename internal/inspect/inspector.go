// Package inspect fetches repository pages and scrapes the statistics,
// README, and file listing used to evaluate a candidate.
package inspect

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	noReadmeAvailable = "No README available"
	noReadmeDetected  = "No README detected"
)

// RepoContent is the best-effort scrape of one repository
type RepoContent struct {
	URL        string
	RawContent string
	Extracted  bool
	Stars      int
	Forks      int
	Languages  []string
	Readme     string
	Files      []string
	Source     string // name of the source that produced RawContent
}

// Source fetches the raw text of a repository page. An empty result with a
// nil error means the source had nothing for that URL.
type Source interface {
	Name() string
	Fetch(ctx context.Context, url string) (string, error)
}

// Inspector tries each source in order until one yields content
type Inspector struct {
	sources []Source
	logger  *zap.Logger
}

// New creates an inspector over the given sources
func New(logger *zap.Logger, sources ...Source) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{sources: sources, logger: logger}
}

// Fetch returns whatever could be scraped for url. It never fails: when no
// source produces content the result has Extracted=false and zero values.
func (i *Inspector) Fetch(ctx context.Context, url string) RepoContent {
	var lastErr error

	for _, src := range i.sources {
		raw, err := i.fetchOne(ctx, src, url)
		if err != nil {
			lastErr = err
			i.logger.Warn("content source failed",
				zap.String("source", src.Name()),
				zap.String("url", url),
				zap.Error(err))
			continue
		}
		if strings.TrimSpace(raw) == "" {
			i.logger.Debug("content source returned nothing",
				zap.String("source", src.Name()),
				zap.String("url", url))
			continue
		}

		content := Parse(raw, RepoContent{URL: url, Readme: noReadmeDetected})
		content.Source = src.Name()
		i.logger.Info("inspected repository",
			zap.String("url", url),
			zap.String("source", content.Source),
			zap.Int("stars", content.Stars),
			zap.Int("files", len(content.Files)))
		return content
	}

	empty := RepoContent{
		URL:        url,
		RawContent: fmt.Sprintf("No content available for %s", url),
		Readme:     noReadmeAvailable,
	}
	if lastErr != nil {
		empty.RawContent = fmt.Sprintf("Error extracting content: %v", lastErr)
	}
	return empty
}

// fetchOne shields the inspector from a panicking source
func (i *Inspector) fetchOne(ctx context.Context, src Source, url string) (raw string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
		}
	}()
	return src.Fetch(ctx, url)
}

// Package git reads repository snapshots with go-git without touching disk.
package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

// readmeNames are tried in order when looking for a README at the tree root
var readmeNames = []string{"README.md", "README", "README.rst", "README.txt", "readme.md", "Readme.md"}

// ErrNoReadme is returned when no README exists at the tree root
var ErrNoReadme = errors.New("no README found")

// Snapshot is a read-only view of a repository's HEAD tree
type Snapshot struct {
	repo *git.Repository
	url  string
}

// Clone makes a shallow single-branch clone of url into memory
func Clone(ctx context.Context, url string) (*Snapshot, error) {
	repo, err := git.CloneContext(ctx, memory.NewStorage(), memfs.New(), &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return &Snapshot{repo: repo, url: url}, nil
}

// FromRepository wraps an already opened repository
func FromRepository(repo *git.Repository, url string) *Snapshot {
	return &Snapshot{repo: repo, url: url}
}

// URL returns the remote the snapshot was taken from
func (s *Snapshot) URL() string {
	return s.url
}

// CommitHash returns the HEAD commit hash
func (s *Snapshot) CommitHash() (string, error) {
	head, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// ListFiles returns every file path in the HEAD tree, sorted
func (s *Snapshot) ListFiles() ([]string, error) {
	tree, err := s.tree()
	if err != nil {
		return nil, err
	}

	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// ReadFile returns the contents of one file in the HEAD tree
func (s *Snapshot) ReadFile(name string) (string, error) {
	tree, err := s.tree()
	if err != nil {
		return "", err
	}

	f, err := tree.File(name)
	if err != nil {
		return "", fmt.Errorf("failed to find %s: %w", name, err)
	}

	contents, err := f.Contents()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return contents, nil
}

// Readme returns the first README found at the tree root
func (s *Snapshot) Readme() (string, error) {
	for _, name := range readmeNames {
		contents, err := s.ReadFile(name)
		if err == nil && strings.TrimSpace(contents) != "" {
			return contents, nil
		}
	}
	return "", ErrNoReadme
}

func (s *Snapshot) tree() (*object.Tree, error) {
	head, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	return tree, nil
}

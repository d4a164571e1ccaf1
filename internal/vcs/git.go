package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitSource implements DiffSource on a go-git repository.
type GitSource struct {
	repo *git.Repository
}

// NewGitSource wraps an already-open repository. Used directly by tests
// with in-memory storage.
func NewGitSource(repo *git.Repository) *GitSource {
	return &GitSource{repo: repo}
}

// Open opens the repository rooted at path.
func Open(path string) (*GitSource, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
		}
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &GitSource{repo: repo}, nil
}

func (g *GitSource) Head(ctx context.Context) (Revision, error) {
	ref, err := g.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("%w: repository has no commits", ErrUnknownRevision)
		}
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

func (g *GitSource) ChangedFiles(ctx context.Context, from, to Revision) ([]Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	treeFrom, err := g.treeAt(from)
	if err != nil {
		return nil, err
	}
	treeTo, err := g.treeAt(to)
	if err != nil {
		return nil, err
	}

	diff, err := treeFrom.Diff(treeTo)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", short(from), short(to), err)
	}

	changes := make([]Change, 0, len(diff))
	for _, change := range diff {
		fromName := change.From.Name
		toName := change.To.Name

		// Additions and modifications carry the to-side path. A rename
		// surfaces as an addition of the new path plus a deletion of the
		// old one.
		if toName != "" {
			changes = append(changes, Change{Path: toName})
		}
		if fromName != "" && fromName != toName {
			changes = append(changes, Change{Path: fromName, Deleted: true})
		}
	}
	return changes, nil
}

func (g *GitSource) TrackedFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head, err := g.Head(ctx)
	if err != nil {
		return nil, err
	}

	tree, err := g.treeAt(head)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree at %s: %w", short(head), err)
	}
	return paths, nil
}

func (g *GitSource) RevisionNote(ctx context.Context, rev Revision) (string, error) {
	commit, err := g.commitAt(rev)
	if err != nil {
		return "", err
	}
	subject, _, _ := strings.Cut(commit.Message, "\n")
	return strings.TrimSpace(subject), nil
}

func (g *GitSource) commitAt(rev Revision) (*object.Commit, error) {
	hash, err := g.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRevision, rev)
	}

	commit, err := g.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRevision, rev)
	}
	return commit, nil
}

func (g *GitSource) treeAt(rev Revision) (*object.Tree, error) {
	commit, err := g.commitAt(rev)
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree at %s: %w", short(rev), err)
	}
	return tree, nil
}

func short(rev Revision) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wpsync/wpsync/internal/vcs"
)

// PushPlanner computes the upload plan for one site from
// version-control history.
type PushPlanner struct {
	Diff      vcs.DiffSource
	Matcher   *Matcher
	LocalRoot string

	// TreePrefix is the repo-relative path of LocalRoot when the synced
	// tree is a subdirectory of the repository. Empty when they
	// coincide. Changes outside the prefix are ignored.
	TreePrefix string

	// MirrorDeletions propagates version-control deletions as remote
	// deletes. Off by default: a stale remote file is recoverable, a
	// wrongly deleted one is not.
	MirrorDeletions bool
}

// PushPlan couples the plan with the revision observed at planning
// time. That revision — not the head at completion time — is what gets
// recorded, so commits landing mid-transfer are never assumed pushed.
type PushPlan struct {
	*Plan
	Revision string `json:"revision"`
	Note     string `json:"note,omitempty"`
}

// Plan computes the upload set. Empty lastRev plans all tracked files
// (first push); otherwise the diff between lastRev and head. An empty
// plan is a valid "nothing to push", not an error.
func (p *PushPlanner) Plan(ctx context.Context, lastRev string) (*PushPlan, error) {
	head, err := p.Diff.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: current revision: %w", ErrPlanning, err)
	}

	var advisories []string
	for _, rule := range p.Matcher.Malformed() {
		advisories = append(advisories, fmt.Sprintf("exclusion rule %q is not a valid glob; matching it literally", rule))
	}

	changes, advisories, err := p.changeSet(ctx, lastRev, head, advisories)
	if err != nil {
		return nil, err
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	var items []Item

	for _, change := range changes {
		rel, inTree := p.treeRel(change.Path)
		if !inTree {
			continue
		}
		if p.Matcher.Excluded(rel) {
			continue
		}

		if change.Deleted {
			if !p.MirrorDeletions {
				continue
			}
			if !seen.Add(string(ActionDelete) + "\x00" + rel) {
				continue
			}
			items = append(items, Item{RelPath: rel, Action: ActionDelete})
			continue
		}

		if !seen.Add(string(ActionUpload) + "\x00" + rel) {
			continue
		}

		info, err := os.Stat(filepath.Join(p.LocalRoot, filepath.FromSlash(rel)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				advisories = append(advisories, fmt.Sprintf("skipping %s: tracked but missing from the working copy", rel))
			} else {
				advisories = append(advisories, fmt.Sprintf("skipping %s: %v", rel, err))
			}
			continue
		}
		if !info.Mode().IsRegular() {
			advisories = append(advisories, fmt.Sprintf("skipping %s: not a regular file", rel))
			continue
		}

		items = append(items, Item{
			RelPath: rel,
			Action:  ActionUpload,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	note, noteErr := p.Diff.RevisionNote(ctx, head)
	if noteErr != nil {
		note = ""
	}

	return &PushPlan{
		Plan:     NewPlan(items, advisories),
		Revision: head,
		Note:     note,
	}, nil
}

// changeSet resolves which paths to consider: the full tracked set for
// a first push, nothing when head equals the last pushed revision, the
// revision diff otherwise. A recorded revision that no longer exists
// (history rewrite) degrades to a full push with an advisory.
func (p *PushPlanner) changeSet(ctx context.Context, lastRev, head string, advisories []string) ([]vcs.Change, []string, error) {
	if lastRev == head && lastRev != "" {
		return nil, advisories, nil
	}

	if lastRev == "" {
		changes, err := p.trackedAsChanges(ctx)
		if err != nil {
			return nil, advisories, err
		}
		return changes, advisories, nil
	}

	changes, err := p.Diff.ChangedFiles(ctx, lastRev, head)
	if err != nil {
		if errors.Is(err, vcs.ErrUnknownRevision) {
			advisories = append(advisories,
				fmt.Sprintf("last pushed revision %s no longer exists; planning a full push", lastRev))
			changes, err = p.trackedAsChanges(ctx)
			if err != nil {
				return nil, advisories, err
			}
			return changes, advisories, nil
		}
		return nil, advisories, fmt.Errorf("%w: changed files: %w", ErrPlanning, err)
	}
	return changes, advisories, nil
}

func (p *PushPlanner) trackedAsChanges(ctx context.Context) ([]vcs.Change, error) {
	tracked, err := p.Diff.TrackedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tracked files: %w", ErrPlanning, err)
	}

	changes := make([]vcs.Change, 0, len(tracked))
	for _, path := range tracked {
		changes = append(changes, vcs.Change{Path: path})
	}
	return changes, nil
}

func (p *PushPlanner) treeRel(repoRel string) (string, bool) {
	if p.TreePrefix == "" {
		return repoRel, true
	}
	prefix := strings.TrimSuffix(p.TreePrefix, "/") + "/"
	if !strings.HasPrefix(repoRel, prefix) {
		return "", false
	}
	return strings.TrimPrefix(repoRel, prefix), true
}

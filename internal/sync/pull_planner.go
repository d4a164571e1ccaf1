package sync

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wpsync/wpsync/internal/transfer"
)

// TreeLister is the slice of the transfer channel pull planning needs.
type TreeLister interface {
	ListTree(ctx context.Context, path string) ([]transfer.Entry, error)
}

// PullPlanner computes the download plan for one site from remote
// listings. Pull is stateless by design: nothing here reads a prior
// pull record — each pull is scoped entirely by the caller's window.
type PullPlanner struct {
	Lister     TreeLister
	Matcher    *Matcher
	RemoteRoot string
}

// PullPlan couples the plan with the window and scopes that produced
// it.
type PullPlan struct {
	*Plan
	Window Window   `json:"window"`
	Scopes []string `json:"scopes"`
}

// Plan lists every scope recursively and keeps files whose modification
// time falls inside the closed window. A scope missing remotely is an
// advisory, not an error; scope lists go stale as remote layouts
// evolve.
func (p *PullPlanner) Plan(ctx context.Context, scopes []string, window Window) (*PullPlan, error) {
	scopes = normalizeScopes(scopes)
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: no pull scope paths configured for this site", ErrConfiguration)
	}

	var advisories []string
	for _, rule := range p.Matcher.Malformed() {
		advisories = append(advisories, fmt.Sprintf("exclusion rule %q is not a valid glob; matching it literally", rule))
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	var items []Item

	for _, scope := range scopes {
		scopeRoot := p.RemoteRoot
		if scope != "" {
			scopeRoot = path.Join(p.RemoteRoot, scope)
		}

		entries, err := p.Lister.ListTree(ctx, scopeRoot)
		if err != nil {
			if errors.Is(err, transfer.ErrNotExist) {
				advisories = append(advisories, fmt.Sprintf("remote scope path %s does not exist; skipped", displayScope(scope)))
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: list %s: %w", ErrPlanning, displayScope(scope), err)
		}

		for _, entry := range entries {
			rel := entry.RelPath
			if scope != "" {
				rel = path.Join(scope, entry.RelPath)
			}

			if !window.Contains(entry.ModTime) {
				continue
			}
			if p.Matcher.Excluded(rel) {
				continue
			}
			// Overlapping scopes can list the same file twice.
			if !seen.Add(rel) {
				continue
			}

			items = append(items, Item{
				RelPath: rel,
				Action:  ActionDownload,
				Size:    entry.Size,
				ModTime: entry.ModTime,
			})
		}
	}

	return &PullPlan{
		Plan:   NewPlan(items, advisories),
		Window: window,
		Scopes: scopes,
	}, nil
}

// normalizeScopes slash-normalizes and deduplicates scope paths.
// "." and "/" mean the whole tree and map to "".
func normalizeScopes(scopes []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		s := strings.ReplaceAll(strings.TrimSpace(scope), "\\", "/")
		s = strings.Trim(path.Clean("/"+s), "/")
		if s == "." {
			s = ""
		}
		if !seen.Add(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func displayScope(scope string) string {
	if scope == "" {
		return "/"
	}
	return scope
}

// Package vcs answers "what changed between two revisions" for push
// planning. The rest of the engine treats revisions as opaque strings.
package vcs

import (
	"context"
	"errors"
)

var (
	ErrNotRepository   = errors.New("not a git repository")
	ErrUnknownRevision = errors.New("unknown revision")
)

// Revision identifies a point in history. The git implementation uses
// full commit hashes.
type Revision = string

// Change is one path that differs between two revisions.
type Change struct {
	Path    string
	Deleted bool
}

// DiffSource exposes the version-control queries push planning needs.
type DiffSource interface {
	// Head returns the current revision. ErrUnknownRevision when the
	// repository has no commits yet.
	Head(ctx context.Context) (Revision, error)

	// ChangedFiles lists paths that differ between from and to, relative
	// to the repository root.
	ChangedFiles(ctx context.Context, from, to Revision) ([]Change, error)

	// TrackedFiles lists every path tracked at HEAD.
	TrackedFiles(ctx context.Context) ([]string, error)

	// RevisionNote returns a short human description of the revision
	// (the commit subject line).
	RevisionNote(ctx context.Context, rev Revision) (string, error)
}

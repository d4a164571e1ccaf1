package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/secrets"
	"github.com/wpsync/wpsync/internal/state"
	"github.com/wpsync/wpsync/internal/transfer"
	"github.com/wpsync/wpsync/internal/vcs"
)

// Pusher runs outbound syncs: plan from the commit diff, open one
// channel, execute, record.
type Pusher struct {
	Store    StateStore
	Secrets  secrets.Provider
	Dialer   transfer.Dialer
	Locks    *OpLocks
	Progress ProgressFunc
}

// PushResult is the full report of one push.
type PushResult struct {
	SiteID   string    `json:"site_id"`
	SiteName string    `json:"site_name"`
	Plan     *PushPlan `json:"plan"`
	Outcome  *Outcome  `json:"outcome"`

	// StateWarning is set when files moved but the state store could
	// not record it. The transfer itself stands; re-running is safe.
	StateWarning string `json:"state_warning,omitempty"`
}

// Preview computes the push plan without opening a channel or touching
// state. It runs the same planning code as Push, so the two cannot
// disagree.
func (p *Pusher) Preview(ctx context.Context, site *config.SiteProfile) (*PushPlan, error) {
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	plan, _, err := p.plan(ctx, site)
	return plan, err
}

// Push plans and executes an outbound sync for one site. Connection
// and planning failures abort before any state mutation; per-item
// failures accumulate in the outcome instead.
func (p *Pusher) Push(ctx context.Context, site *config.SiteProfile) (*PushResult, error) {
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	release, err := p.Locks.Acquire(site.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	plan, last, err := p.plan(ctx, site)
	if err != nil {
		return nil, err
	}

	var lastRev, lastNote string
	if last != nil {
		lastRev = last.Revision
		lastNote = last.RevisionNote
	}

	slog.Info("push planned", "site", site.Name, "items", len(plan.Items), "revision", plan.Revision)

	result := &PushResult{SiteID: site.ID, SiteName: site.Name, Plan: plan}

	if plan.Empty() {
		now := time.Now().UTC()
		result.Outcome = &Outcome{
			Succeeded:  true,
			Advisories: append([]string(nil), plan.Advisories...),
			StartedAt:  now,
			FinishedAt: now,
		}
		if plan.Revision != lastRev {
			// The head moved with no file-level diff. Record it so the
			// next push diffs from the right base.
			rec := &state.PushRecord{
				SiteID:       site.ID,
				Revision:     plan.Revision,
				RevisionNote: plan.Note,
				CompletedAt:  now,
			}
			if err := p.Store.SavePushRecord(rec); err != nil {
				slog.Error("push state not recorded", "site", site.Name, "error", err)
				result.StateWarning = fmt.Sprintf("push state could not be recorded: %v", err)
			}
		}
		return result, nil
	}

	creds, err := CredentialsFor(p.Secrets, site)
	if err != nil {
		return nil, err
	}

	ch, err := p.Dialer.Dial(ctx, EndpointFor(site), creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer ch.Close()

	exec := &Executor{LocalRoot: site.LocalPath, RemoteRoot: site.Remote.Path}
	outcome := exec.Execute(ctx, plan.Plan, ch, p.Progress)
	result.Outcome = outcome

	slog.Info("push finished", "site", site.Name,
		"transferred", outcome.ItemsTransferred, "failed", outcome.ItemsFailed,
		"bytes", outcome.BytesTransferred, "cancelled", outcome.Cancelled)

	if rec := pushRecordFor(site.ID, plan, outcome, lastRev, lastNote); rec != nil {
		if err := p.Store.SavePushRecord(rec); err != nil {
			slog.Error("push state not recorded", "site", site.Name, "error", err)
			result.StateWarning = fmt.Sprintf("transfer finished but its state could not be recorded: %v", err)
		}
	}

	return result, nil
}

func (p *Pusher) plan(ctx context.Context, site *config.SiteProfile) (plan *PushPlan, last *state.PushRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: internal fault: %v", ErrPlanning, r)
		}
	}()

	last, err = p.Store.PushRecord(site.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read push state: %w", ErrPlanning, err)
	}

	src, err := vcs.Open(site.RepoRoot())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPlanning, err)
	}

	prefix, err := treePrefix(site)
	if err != nil {
		return nil, nil, err
	}

	planner := &PushPlanner{
		Diff:            src,
		Matcher:         NewMatcher(site.ExcludeRules),
		LocalRoot:       site.LocalPath,
		TreePrefix:      prefix,
		MirrorDeletions: site.MirrorDeletions,
	}

	var lastRev string
	if last != nil {
		lastRev = last.Revision
	}
	plan, err = planner.Plan(ctx, lastRev)
	return plan, last, err
}

// pushRecordFor decides what to persist after a push. Nothing
// transferred leaves the prior record untouched: the next push must
// diff from the last revision that actually reached the remote. A
// cancelled run records its counts but keeps the previous revision as
// the replan base, so items never attempted are planned again.
func pushRecordFor(siteID string, plan *PushPlan, out *Outcome, lastRev, lastNote string) *state.PushRecord {
	if out.ItemsTransferred == 0 {
		return nil
	}

	rec := &state.PushRecord{
		SiteID:           siteID,
		Revision:         plan.Revision,
		RevisionNote:     plan.Note,
		CompletedAt:      out.FinishedAt,
		ItemsTransferred: out.ItemsTransferred,
		ItemsFailed:      out.ItemsFailed,
		BytesTransferred: out.BytesTransferred,
	}
	if out.Cancelled {
		rec.Revision = lastRev
		rec.RevisionNote = lastNote
	}
	return rec
}

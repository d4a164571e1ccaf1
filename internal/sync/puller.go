package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/secrets"
	"github.com/wpsync/wpsync/internal/state"
	"github.com/wpsync/wpsync/internal/transfer"
)

// Puller runs inbound syncs: list the remote scopes, keep files whose
// modification time falls inside the window, download, record. Pull
// never consults prior pull state; every run is scoped entirely by its
// window.
type Puller struct {
	Store    StateStore
	Secrets  secrets.Provider
	Dialer   transfer.Dialer
	Locks    *OpLocks
	Progress ProgressFunc
}

// PullResult is the full report of one pull.
type PullResult struct {
	SiteID   string    `json:"site_id"`
	SiteName string    `json:"site_name"`
	Plan     *PullPlan `json:"plan"`
	Outcome  *Outcome  `json:"outcome"`

	// StateWarning is set when files moved but the state store could
	// not record it. The transfer itself stands; re-running is safe.
	StateWarning string `json:"state_warning,omitempty"`
}

// Preview computes the pull plan without transferring anything. The
// remote still has to be listed, so a channel is opened for the
// listing and closed before returning. The planning code is the same
// one Pull runs.
func (p *Puller) Preview(ctx context.Context, site *config.SiteProfile, scopes []string, window Window) (*PullPlan, error) {
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
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

	return p.plan(ctx, site, ch, scopes, window)
}

// Pull plans and executes an inbound sync for one site. Scopes default
// to the profile's configured list when the caller passes none.
func (p *Puller) Pull(ctx context.Context, site *config.SiteProfile, scopes []string, window Window) (*PullResult, error) {
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	release, err := p.Locks.Acquire(site.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	creds, err := CredentialsFor(p.Secrets, site)
	if err != nil {
		return nil, err
	}

	ch, err := p.Dialer.Dial(ctx, EndpointFor(site), creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer ch.Close()

	plan, err := p.plan(ctx, site, ch, scopes, window)
	if err != nil {
		return nil, err
	}

	slog.Info("pull planned", "site", site.Name, "items", len(plan.Items), "window", plan.Window.String())

	result := &PullResult{SiteID: site.ID, SiteName: site.Name, Plan: plan}

	exec := &Executor{LocalRoot: site.LocalPath, RemoteRoot: site.Remote.Path}
	outcome := exec.Execute(ctx, plan.Plan, ch, p.Progress)
	result.Outcome = outcome

	slog.Info("pull finished", "site", site.Name,
		"transferred", outcome.ItemsTransferred, "failed", outcome.ItemsFailed,
		"bytes", outcome.BytesTransferred, "cancelled", outcome.Cancelled)

	if outcome.Attempted() {
		rec := &state.PullRecord{
			SiteID:           site.ID,
			WindowStart:      window.Start,
			WindowEnd:        window.End,
			CompletedAt:      outcome.FinishedAt,
			ItemsTransferred: outcome.ItemsTransferred,
			ItemsFailed:      outcome.ItemsFailed,
			BytesTransferred: outcome.BytesTransferred,
		}
		if err := p.Store.SavePullRecord(rec); err != nil {
			slog.Error("pull state not recorded", "site", site.Name, "error", err)
			result.StateWarning = fmt.Sprintf("transfer finished but its state could not be recorded: %v", err)
		}
	}

	return result, nil
}

func (p *Puller) plan(ctx context.Context, site *config.SiteProfile, lister TreeLister, scopes []string, window Window) (plan *PullPlan, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: internal fault: %v", ErrPlanning, r)
		}
	}()

	if len(scopes) == 0 {
		scopes = site.PullScopePaths
	}

	planner := &PullPlanner{
		Lister:     lister,
		Matcher:    NewMatcher(site.ExcludeRules),
		RemoteRoot: site.Remote.Path,
	}
	return planner.Plan(ctx, scopes, window)
}

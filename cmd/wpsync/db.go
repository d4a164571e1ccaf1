package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/state"
	"github.com/wpsync/wpsync/internal/sync"
	"github.com/wpsync/wpsync/internal/transfer"
	"github.com/wpsync/wpsync/internal/wpcli"
)

func init() {
	rootCmd.AddCommand(newDBCmd())
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Move the WordPress database between environments",
		Long: `The db commands drive WP-CLI on both ends: the source side is exported,
the dump travels over the site's transfer channel, the destination side
is imported, and site URLs are rewritten. The side about to be replaced
is backed up first unless --no-backup is given.`,
	}
	cmd.AddCommand(newDBDirectionCmd(wpcli.DirectionPush))
	cmd.AddCommand(newDBDirectionCmd(wpcli.DirectionPull))
	return cmd
}

func newDBDirectionCmd(direction string) *cobra.Command {
	var excludeTables []string
	var yes, noBackup, asJSON bool

	short := "Replace the remote database with the local one"
	target := "REMOTE"
	if direction == wpcli.DirectionPull {
		short = "Replace the local database with the remote one"
		target = "LOCAL"
	}

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <site>", direction),
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			site, err := loadSite(args[0])
			if err != nil {
				return err
			}
			if err := checkDBSite(site); err != nil {
				return err
			}

			if !yes && !confirm(cmd, fmt.Sprintf(
				"This replaces the %s database of %q. Continue?", target, site.Name)) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted; nothing changed")
				return nil
			}

			outcome, err := runDBSync(cmd, site, direction, excludeTables, noBackup)
			if err != nil {
				return err
			}
			return renderDBOutcome(cmd.OutOrStdout(), outcome, asJSON)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringArrayVar(&excludeTables, "exclude-table", nil, "Table to leave out of the move (repeatable)")
	f.BoolVar(&noBackup, "no-backup", false, "Skip the safety dump of the side being replaced")
	f.BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	f.BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

// checkDBSite verifies the profile can run the database workflow at
// all: it needs database settings and an SSH-capable remote.
func checkDBSite(site *config.SiteProfile) error {
	if err := site.Validate(); err != nil {
		return fmt.Errorf("%w: %w", sync.ErrConfiguration, err)
	}
	if site.Remote.Scheme != config.SchemeSFTP {
		return fmt.Errorf("%w: database sync needs an sftp remote; site %q uses %s",
			sync.ErrConfiguration, site.Name, site.Remote.Scheme)
	}
	if site.Database == nil {
		return fmt.Errorf("%w: site %q has no database settings; add them to the profile first",
			sync.ErrConfiguration, site.Name)
	}
	return nil
}

func runDBSync(cmd *cobra.Command, site *config.SiteProfile, direction string, excludeTables []string, noBackup bool) (*wpcli.DBOutcome, error) {
	ctx := cmd.Context()

	locks := newOpLocks()
	release, err := locks.Acquire(site.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	creds, err := sync.CredentialsFor(secretsProvider(), site)
	if err != nil {
		return nil, err
	}

	ch, err := newDialer().Dial(ctx, sync.EndpointFor(site), creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sync.ErrConnection, err)
	}
	defer ch.Close()

	sftpCh, ok := ch.(*transfer.SFTPChannel)
	if !ok {
		return nil, fmt.Errorf("%w: the %s channel cannot run remote commands",
			sync.ErrConfiguration, site.Remote.Scheme)
	}

	remoteWP := site.Database.RemoteWPPath
	if remoteWP == "" {
		remoteWP = site.Remote.Path
	}

	service := &wpcli.Service{
		Local:    &wpcli.Host{Runner: &wpcli.LocalRunner{Dir: site.LocalPath}, Path: site.LocalPath},
		Remote:   &wpcli.Host{Runner: sftpCh.Runner(), Path: remoteWP},
		Files:    ch,
		Settings: *site.Database,
		Progress: dbProgressPrinter(),
	}
	if !noBackup {
		service.BackupDir = siteBackupDir(site)
	}

	var outcome *wpcli.DBOutcome
	if direction == wpcli.DirectionPush {
		outcome, err = service.PushDatabase(ctx, excludeTables)
	} else {
		outcome, err = service.PullDatabase(ctx, excludeTables)
	}
	if err != nil {
		return nil, err
	}

	store, err := openState()
	if err == nil {
		defer store.Close()
		err = store.SaveDBRecord(&state.DBRecord{
			SiteID:      site.ID,
			Direction:   outcome.Direction,
			TableCount:  outcome.Tables,
			DumpBytes:   outcome.DumpBytes,
			CompletedAt: outcome.FinishedAt,
		})
	}
	if err != nil {
		outcome.Advisories = append(outcome.Advisories,
			fmt.Sprintf("database sync finished but its state could not be recorded: %v", err))
	}

	return outcome, nil
}

func dbProgressPrinter() wpcli.Progress {
	printer := progressPrinter()
	return func(step, total int, message string) {
		printer(step, total, message)
	}
}

func renderDBOutcome(w io.Writer, outcome *wpcli.DBOutcome, asJSON bool) error {
	if asJSON {
		return jsonEncode(w, outcome)
	}

	elapsed := outcome.FinishedAt.Sub(outcome.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(w, "%s database %s complete: %d table(s), %s in %s\n",
		green.Render("✓"), outcome.Direction, outcome.Tables,
		humanize.Bytes(uint64(outcome.DumpBytes)), elapsed)

	if outcome.Replacements > 0 {
		fmt.Fprintf(w, "  %s %d cell(s) rewritten to the destination url\n",
			gray.Render("urls"), outcome.Replacements)
	}
	if outcome.BackupPath != "" {
		fmt.Fprintf(w, "  %s %s\n", gray.Render("backup"), outcome.BackupPath)
	}
	printAdvisories(w, outcome.Advisories)
	return nil
}

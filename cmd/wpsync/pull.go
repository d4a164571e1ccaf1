package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wpsync/wpsync/internal/sync"
)

func init() {
	rootCmd.AddCommand(newPullCmd())
}

func newPullCmd() *cobra.Command {
	var from, to string
	var paths []string
	var preview bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pull <site>",
		Short: "Download remote files modified inside a time window",
		Long: `Pull lists the remote under the site's scope paths and downloads every
file whose modification time falls inside the window, inclusive on both
ends. Local files are overwritten; pull never deletes anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}

			site, err := loadSite(args[0])
			if err != nil {
				return err
			}

			store, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			puller := &sync.Puller{
				Store:    store,
				Secrets:  secretsProvider(),
				Dialer:   newDialer(),
				Locks:    newOpLocks(),
				Progress: progressPrinter(),
			}

			if preview {
				plan, err := puller.Preview(cmd.Context(), site, paths, window)
				if err != nil {
					return err
				}
				return renderPullPreview(cmd.OutOrStdout(), site, plan, asJSON)
			}

			res, err := puller.Pull(cmd.Context(), site, paths, window)
			if err != nil {
				return err
			}
			if err := renderPullResult(cmd.OutOrStdout(), res, asJSON); err != nil {
				return err
			}
			return outcomeErr("pull", res.Outcome)
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVar(&from, "from", "", "Window start, RFC 3339 or YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "Window end, RFC 3339 or YYYY-MM-DD (required)")
	cmd.Flags().StringArrayVar(&paths, "path", nil, "Remote scope path (repeatable; default: the profile's scope paths)")
	cmd.Flags().BoolVarP(&preview, "preview", "p", false, "Show the plan without transferring anything")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

// parseWindow builds the closed pull window from the --from/--to flags.
func parseWindow(from, to string) (sync.Window, error) {
	start, err := parseWhen(from, false)
	if err != nil {
		return sync.Window{}, err
	}
	end, err := parseWhen(to, true)
	if err != nil {
		return sync.Window{}, err
	}
	return sync.NewWindow(start, end)
}

// parseWhen accepts RFC 3339 timestamps or bare dates. A bare date
// means start of day; for the window end it stretches to the last
// instant of that day so --to covers the whole date named.
func parseWhen(s string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q; use RFC 3339 (2026-01-02T15:04:05Z) or YYYY-MM-DD",
			sync.ErrConfiguration, s)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

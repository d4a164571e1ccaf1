package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wpsync/wpsync/internal/sync"
)

func init() {
	rootCmd.AddCommand(newPushCmd())
}

func newPushCmd() *cobra.Command {
	var preview bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "push <site>",
		Short: "Upload committed changes to the site's remote",
		Long: `Push plans from version control: everything committed since the last
recorded push is uploaded, minus the site's exclusion rules. The first
push sends every tracked file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			site, err := loadSite(args[0])
			if err != nil {
				return err
			}

			store, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			pusher := &sync.Pusher{
				Store:    store,
				Secrets:  secretsProvider(),
				Dialer:   newDialer(),
				Locks:    newOpLocks(),
				Progress: progressPrinter(),
			}

			if preview {
				plan, err := pusher.Preview(cmd.Context(), site)
				if err != nil {
					return err
				}
				return renderPushPreview(cmd.OutOrStdout(), site, plan, asJSON)
			}

			res, err := pusher.Push(cmd.Context(), site)
			if err != nil {
				return err
			}
			if err := renderPushResult(cmd.OutOrStdout(), res, asJSON); err != nil {
				return err
			}
			return outcomeErr("push", res.Outcome)
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().BoolVarP(&preview, "preview", "p", false, "Show the plan without transferring anything")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

// progressPrinter reports per-item progress on stderr, keeping stdout
// clean for rendered or JSON output.
func progressPrinter() sync.ProgressFunc {
	return func(done, total int, message string) {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			gray.Render(fmt.Sprintf("[%d/%d]", done, total)), message)
	}
}

// outcomeErr turns a partial or aborted outcome into a non-zero exit
// after rendering. The transfer itself already happened and stands.
func outcomeErr(op string, o *sync.Outcome) error {
	switch {
	case o.Cancelled:
		return fmt.Errorf("%s aborted after %d item(s): %w", op, o.ItemsTransferred, context.Canceled)
	case o.ItemsFailed > 0:
		return fmt.Errorf("%s finished with %d failed item(s)", op, o.ItemsFailed)
	default:
		return nil
	}
}

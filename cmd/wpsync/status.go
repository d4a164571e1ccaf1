package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/state"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

// siteStatus is one site's slice of the sync ledger.
type siteStatus struct {
	SiteID   string             `json:"site_id"`
	SiteName string             `json:"site_name"`
	Push     *state.PushRecord  `json:"push,omitempty"`
	Pull     *state.PullRecord  `json:"pull,omitempty"`
	Database *state.DBRecord    `json:"database,omitempty"`
	site     *config.SiteProfile
}

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [site]",
		Short: "Show the last recorded push, pull and database sync",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			var sites []*config.SiteProfile
			if len(args) == 1 {
				site, err := loadSite(args[0])
				if err != nil {
					return err
				}
				sites = []*config.SiteProfile{site}
			} else {
				var err error
				sites, err = sitesStore().List()
				if err != nil {
					return err
				}
			}

			store, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			statuses := make([]*siteStatus, 0, len(sites))
			for _, site := range sites {
				st := &siteStatus{SiteID: site.ID, SiteName: site.Name, site: site}
				if st.Push, err = store.PushRecord(site.ID); err != nil {
					return err
				}
				if st.Pull, err = store.PullRecord(site.ID); err != nil {
					return err
				}
				if st.Database, err = store.DBRecord(site.ID); err != nil {
					return err
				}
				statuses = append(statuses, st)
			}

			return renderStatus(cmd.OutOrStdout(), statuses, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func renderStatus(w io.Writer, statuses []*siteStatus, asJSON bool) error {
	if asJSON {
		return jsonEncode(w, statuses)
	}

	if len(statuses) == 0 {
		fmt.Fprintln(w, "no sites configured; run 'wpsync sites add'")
		return nil
	}

	for i, st := range statuses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		remote := st.site.Remote
		fmt.Fprintf(w, "%s %s\n", cyan.Render(st.SiteName),
			gray.Render(fmt.Sprintf("(%s %s)", remote.Scheme, remote.Host)))

		fmt.Fprintf(w, "  %s %s\n", gray.Render("push"), pushLine(st.Push))
		fmt.Fprintf(w, "  %s %s\n", gray.Render("pull"), pullLine(st.Pull))
		fmt.Fprintf(w, "  %s %s\n", gray.Render("db  "), dbLine(st.Database))
	}
	return nil
}

func pushLine(rec *state.PushRecord) string {
	if rec == nil {
		return lightGray.Render("never")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s — revision %s", humanize.Time(rec.CompletedAt), shortRev(rec.Revision))
	if rec.ItemsTransferred > 0 {
		fmt.Fprintf(&b, ", %d item(s), %s", rec.ItemsTransferred, humanize.Bytes(uint64(rec.BytesTransferred)))
	}
	if rec.ItemsFailed > 0 {
		b.WriteString(" " + red.Render(fmt.Sprintf("[%d failed]", rec.ItemsFailed)))
	}
	return b.String()
}

func pullLine(rec *state.PullRecord) string {
	if rec == nil {
		return lightGray.Render("never")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s — window %s .. %s, %d item(s), %s",
		humanize.Time(rec.CompletedAt),
		rec.WindowStart.Local().Format("2006-01-02 15:04"),
		rec.WindowEnd.Local().Format("2006-01-02 15:04"),
		rec.ItemsTransferred,
		humanize.Bytes(uint64(rec.BytesTransferred)))
	if rec.ItemsFailed > 0 {
		b.WriteString(" " + red.Render(fmt.Sprintf("[%d failed]", rec.ItemsFailed)))
	}
	return b.String()
}

func dbLine(rec *state.DBRecord) string {
	if rec == nil {
		return lightGray.Render("never")
	}
	return fmt.Sprintf("%s — %s, %d table(s), %s",
		humanize.Time(rec.CompletedAt), rec.Direction, rec.TableCount,
		humanize.Bytes(uint64(rec.DumpBytes)))
}

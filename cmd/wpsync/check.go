package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/imroc/req/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/sync"
	"github.com/wpsync/wpsync/internal/transfer"
	"github.com/wpsync/wpsync/internal/version"
)

const checkTimeout = 20 * time.Second

// checkReport is the probe result for one site. Empty strings mean the
// probe did not apply to this site.
type checkReport struct {
	SiteName string `json:"site_name"`

	Channel        string `json:"channel"`
	ChannelError   string `json:"channel_error,omitempty"`
	ChannelLatency string `json:"channel_latency,omitempty"`
	RemoteRoot     string `json:"remote_root,omitempty"`

	Shell      string `json:"shell,omitempty"`
	ShellError string `json:"shell_error,omitempty"`

	URL       string `json:"url,omitempty"`
	URLStatus string `json:"url_status,omitempty"`
	URLError  string `json:"url_error,omitempty"`
}

func init() {
	rootCmd.AddCommand(newCheckCmd())
}

func newCheckCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check [site]",
		Short: "Probe a site's transfer channel, remote shell and public URL",
		Long: `Check dials each site's transfer channel, confirms the remote root
exists, round-trips a command through the remote shell (SFTP sites) and
fetches the public URL. Without a site argument every site is probed;
sites are independent, so the probes run concurrently.`,
		Args: cobra.MaximumNArgs(1),
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
				if len(sites) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no sites configured; run 'wpsync sites add'")
					return nil
				}
			}

			reports := make([]*checkReport, len(sites))
			group, ctx := errgroup.WithContext(cmd.Context())
			for i, site := range sites {
				group.Go(func() error {
					reports[i] = checkSite(ctx, site)
					return nil
				})
			}
			group.Wait()

			if err := renderChecks(cmd.OutOrStdout(), reports, asJSON); err != nil {
				return err
			}
			for _, rep := range reports {
				if rep.ChannelError != "" || rep.ShellError != "" || rep.URLError != "" {
					return fmt.Errorf("%d site(s) probed, some probes failed", len(reports))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

var checkHTTPClient = req.C().
	SetUserAgent("wpsync/" + version.Short()).
	SetTimeout(checkTimeout).
	SetRedirectPolicy(req.MaxRedirectPolicy(5))

// checkSite runs every applicable probe for one site. Probe failures
// land in the report; only the report is returned.
func checkSite(ctx context.Context, site *config.SiteProfile) *checkReport {
	rep := &checkReport{SiteName: site.Name}

	if err := site.Validate(); err != nil {
		rep.Channel = "invalid"
		rep.ChannelError = err.Error()
		return rep
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checkChannel(ctx, site, rep)
	checkURL(ctx, site, rep)
	return rep
}

func checkChannel(ctx context.Context, site *config.SiteProfile, rep *checkReport) {
	creds, err := sync.CredentialsFor(secretsProvider(), site)
	if err != nil {
		rep.Channel = "unconfigured"
		rep.ChannelError = err.Error()
		return
	}

	started := time.Now()
	ch, err := newDialer().Dial(ctx, sync.EndpointFor(site), creds)
	if err != nil {
		rep.Channel = "unreachable"
		rep.ChannelError = err.Error()
		return
	}
	defer ch.Close()

	rep.Channel = "ok"
	rep.ChannelLatency = time.Since(started).Round(time.Millisecond).String()

	exists, err := ch.Exists(site.Remote.Path)
	switch {
	case err != nil:
		rep.RemoteRoot = "unknown"
		rep.ChannelError = err.Error()
	case exists:
		rep.RemoteRoot = "present"
	default:
		rep.RemoteRoot = "missing"
		rep.ChannelError = fmt.Sprintf("remote root %s does not exist", site.Remote.Path)
	}

	if sftpCh, ok := ch.(*transfer.SFTPChannel); ok {
		if err := sftpCh.Runner().TestConnection(ctx); err != nil {
			rep.Shell = "failed"
			rep.ShellError = err.Error()
		} else {
			rep.Shell = "ok"
		}
	}
}

func checkURL(ctx context.Context, site *config.SiteProfile, rep *checkReport) {
	if site.SiteURL == "" {
		return
	}
	rep.URL = site.SiteURL

	resp, err := checkHTTPClient.R().SetContext(ctx).Get(site.SiteURL)
	if err != nil {
		rep.URLStatus = "unreachable"
		rep.URLError = err.Error()
		return
	}
	rep.URLStatus = resp.Status
	if resp.IsErrorState() {
		rep.URLError = fmt.Sprintf("the site answered %s", resp.Status)
	}
}

func renderChecks(w io.Writer, reports []*checkReport, asJSON bool) error {
	if asJSON {
		return jsonEncode(w, reports)
	}

	mark := func(bad string) string {
		if bad != "" {
			return red.Render("✗")
		}
		return green.Render("✓")
	}

	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, cyan.Render(rep.SiteName))

		line := rep.Channel
		if rep.ChannelLatency != "" {
			line += gray.Render(" (" + rep.ChannelLatency + ")")
		}
		if rep.RemoteRoot != "" {
			line += ", remote root " + rep.RemoteRoot
		}
		fmt.Fprintf(w, "  %s %s %s\n", mark(rep.ChannelError), gray.Render("channel"), line)
		if rep.ChannelError != "" {
			fmt.Fprintf(w, "    %s\n", lightGray.Render(rep.ChannelError))
		}

		if rep.Shell != "" {
			fmt.Fprintf(w, "  %s %s %s\n", mark(rep.ShellError), gray.Render("shell  "), rep.Shell)
			if rep.ShellError != "" {
				fmt.Fprintf(w, "    %s\n", lightGray.Render(rep.ShellError))
			}
		}

		if rep.URL != "" {
			fmt.Fprintf(w, "  %s %s %s %s\n", mark(rep.URLError), gray.Render("url    "),
				rep.URL, gray.Render(rep.URLStatus))
			if rep.URLError != "" {
				fmt.Fprintf(w, "    %s\n", lightGray.Render(rep.URLError))
			}
		}
	}
	return nil
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/secrets"
	"github.com/wpsync/wpsync/internal/sync"
	"github.com/wpsync/wpsync/internal/wpconfig"
)

func init() {
	rootCmd.AddCommand(newSitesCmd())
}

func newSitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage site profiles",
	}
	cmd.AddCommand(newSitesListCmd())
	cmd.AddCommand(newSitesShowCmd())
	cmd.AddCommand(newSitesAddCmd())
	cmd.AddCommand(newSitesRemoveCmd())
	return cmd
}

func newSitesListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			sites, err := sitesStore().List()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return jsonEncode(w, sites)
			}

			if len(sites) == 0 {
				fmt.Fprintln(w, "no sites configured; run 'wpsync sites add'")
				return nil
			}
			for _, site := range sites {
				fmt.Fprintf(w, "%s  %s %s %s\n",
					cyan.Render(site.Name),
					site.LocalPath,
					gray.Render("→"),
					remoteLabel(site))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func remoteLabel(site *config.SiteProfile) string {
	r := site.Remote
	if r.Scheme == config.SchemeS3 {
		return fmt.Sprintf("s3://%s/%s", r.Bucket, r.Path)
	}
	return fmt.Sprintf("%s@%s:%s", r.User, r.Host, r.Path)
}

func newSitesShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <site>",
		Short: "Show one site profile in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			site, err := loadSite(args[0])
			if err != nil {
				return err
			}
			return renderSite(cmd.OutOrStdout(), site, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func renderSite(w io.Writer, site *config.SiteProfile, asJSON bool) error {
	if asJSON {
		return jsonEncode(w, site)
	}

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s %s\n", gray.Render(fmt.Sprintf("%-12s", name)), value)
		}
	}

	fmt.Fprintf(w, "%s %s\n", cyan.Render(site.Name), gray.Render("("+site.ID+")"))
	field("local", site.LocalPath)
	if site.RepoPath != "" && site.RepoPath != site.LocalPath {
		field("repository", site.RepoPath)
	}
	field("remote", remoteLabel(site))
	field("url", site.SiteURL)
	if len(site.PullScopePaths) > 0 {
		field("pull scopes", strings.Join(site.PullScopePaths, ", "))
	}
	if site.MirrorDeletions {
		field("deletions", "mirrored to the remote on push")
	}
	if len(site.ExcludeRules) > 0 {
		field("excludes", strings.Join(site.ExcludeRules, ", "))
	}
	if db := site.Database; db != nil {
		field("db urls", fmt.Sprintf("%s ↔ %s", db.LocalURL, db.RemoteURL))
		if db.LocalPrefix != "" || db.RemotePrefix != "" {
			field("db prefixes", fmt.Sprintf("%s ↔ %s", db.LocalPrefix, db.RemotePrefix))
		}
		if len(db.ExcludeTables) > 0 {
			field("db excludes", strings.Join(db.ExcludeTables, ", "))
		}
	}
	return nil
}

func newSitesAddCmd() *cobra.Command {
	var noInput bool
	site := &config.SiteProfile{}
	var scopes, excludes []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a site profile",
		Long: `Add walks through the site settings interactively on a terminal, or
takes everything from flags with --no-input. When the local path holds a
wp-config.php, database settings are pre-filled from it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if len(scopes) > 0 {
				site.PullScopePaths = scopes
			}
			site.ExcludeRules = config.DefaultExcludeRules()
			if len(excludes) > 0 {
				site.ExcludeRules = excludes
			}

			// The form covers the common SFTP shape; S3 remotes are
			// flag-only.
			interactive := !noInput && site.Remote.Scheme != config.SchemeS3 &&
				isatty.IsTerminal(os.Stdin.Fd())
			if interactive {
				done, err := runSiteForm(site)
				if err != nil {
					return err
				}
				if !done {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted; nothing saved")
					return nil
				}
			}

			prefillDatabase(site)

			profile := config.NewSiteProfile(site.Name)
			profile.LocalPath = site.LocalPath
			profile.RepoPath = site.RepoPath
			profile.Remote = site.Remote
			profile.SiteURL = site.SiteURL
			profile.ExcludeRules = site.ExcludeRules
			profile.PullScopePaths = site.PullScopePaths
			profile.MirrorDeletions = site.MirrorDeletions
			profile.Database = site.Database

			if err := sitesStore().Upsert(profile); err != nil {
				return fmt.Errorf("%w: %w", sync.ErrConfiguration, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s site %s saved\n", green.Render("✓"), cyan.Render(profile.Name))
			if profile.Remote.Scheme == config.SchemeSFTP {
				fmt.Fprintf(w, "set %s or %s before the first push\n",
					lightGray.Render(secrets.EnvKey(profile.Name, secrets.KindPassword)),
					lightGray.Render(secrets.EnvKey(profile.Name, secrets.KindKeyFile)))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringVar(&site.Name, "name", "", "Site name")
	f.StringVar(&site.LocalPath, "local", "", "Local tree root")
	f.StringVar(&site.RepoPath, "repo", "", "Git repository root (default: the local root)")
	f.StringVar(&site.Remote.Scheme, "scheme", config.SchemeSFTP, "Remote scheme (sftp or s3)")
	f.StringVar(&site.Remote.Host, "host", "", "Remote host")
	f.IntVar(&site.Remote.Port, "port", 0, "Remote port (default 22)")
	f.StringVar(&site.Remote.User, "user", "", "Remote user")
	f.StringVar(&site.Remote.Path, "remote-path", "", "Remote tree root")
	f.StringVar(&site.Remote.Bucket, "bucket", "", "S3 bucket")
	f.StringVar(&site.Remote.Region, "region", "", "S3 region")
	f.StringVar(&site.Remote.Endpoint, "endpoint", "", "S3 endpoint URL (for non-AWS stores)")
	f.StringVar(&site.SiteURL, "url", "", "Public site URL")
	f.StringArrayVar(&scopes, "scope", nil, "Remote-relative pull scope path (repeatable)")
	f.StringArrayVar(&excludes, "exclude", nil, "Exclusion rule (repeatable; replaces the defaults)")
	f.BoolVar(&site.MirrorDeletions, "mirror-deletions", false, "Delete remote files removed from version control on push")
	f.BoolVar(&noInput, "no-input", false, "Never prompt; take everything from flags")
	return cmd
}

// prefillDatabase seeds database settings from wp-config.php when the
// local tree has one. Only the local side can be read; remote values
// stay for the user to fill in.
func prefillDatabase(site *config.SiteProfile) {
	if site.Database != nil || site.LocalPath == "" {
		return
	}
	path, ok := wpconfig.Locate(site.LocalPath)
	if !ok {
		return
	}
	values, err := wpconfig.ParseFile(path)
	if err != nil {
		return
	}

	db := &config.DatabaseSettings{
		LocalPrefix:  values.TablePrefix,
		RemotePrefix: values.TablePrefix,
		LocalURL:     values.SiteURL,
	}
	if db.LocalURL == "" {
		db.LocalURL = values.HomeURL
	}
	db.RemoteURL = site.SiteURL
	site.Database = db
}

func newSitesRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <site>",
		Short: "Remove a site profile and its sync records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			site, err := loadSite(args[0])
			if err != nil {
				return err
			}

			if !yes && !confirm(cmd, fmt.Sprintf("Remove site %q and forget its sync history?", site.Name)) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted; nothing removed")
				return nil
			}

			if err := sitesStore().Remove(site.ID); err != nil {
				return err
			}

			store, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.ForgetSite(site.ID); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s sync records not removed: %v\n", yellow.Render("warning:"), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s site %s removed\n", green.Render("✓"), cyan.Render(site.Name))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question on the command's input stream. Only
// an explicit y/yes proceeds.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

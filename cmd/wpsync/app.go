package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/secrets"
	"github.com/wpsync/wpsync/internal/state"
	"github.com/wpsync/wpsync/internal/sync"
	"github.com/wpsync/wpsync/internal/transfer"
	"github.com/wpsync/wpsync/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "wpsync",
	Short:         "Sync WordPress files and databases between environments",
	Version:       version.Detailed(),
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		applyVerbosity()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().String("sites", config.DefaultSitesPath, "Site profile store")
	rootCmd.PersistentFlags().String("state", config.DefaultStateDBPath, "Sync state database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug detail to the terminal")
}

func loadConfig(cmd *cobra.Command) error {
	viper.AddConfigPath(config.DefaultConfigDir)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("sites", cmd.Flags().Lookup("sites"))
	viper.BindPFlag("state", cmd.Flags().Lookup("state"))
	viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))

	viper.SetEnvPrefix("WPSYNC")
	viper.AutomaticEnv()

	return nil
}

// sitesStore opens the YAML profile store at the configured path.
func sitesStore() *config.Store {
	return config.NewStore(viper.GetString("sites"))
}

// loadSite resolves a site argument (name or id) against the store.
func loadSite(arg string) (*config.SiteProfile, error) {
	site, err := sitesStore().Get(arg)
	if err != nil {
		if errors.Is(err, config.ErrSiteNotFound) {
			return nil, fmt.Errorf("%w: no site %q; run 'wpsync sites list'", sync.ErrConfiguration, arg)
		}
		return nil, err
	}
	return site, nil
}

// openState opens the durable sync ledger.
func openState() (*state.Store, error) {
	return state.NewStore(viper.GetString("state"))
}

func secretsProvider() secrets.Provider {
	return secrets.NewEnvProvider(config.DefaultCredentialsPath)
}

func newDialer() transfer.Dialer {
	return transfer.NewDialer(config.DefaultKnownHostsPath)
}

func newOpLocks() *sync.OpLocks {
	return sync.NewOpLocks(config.DefaultLockDir)
}

func siteBackupDir(site *config.SiteProfile) string {
	return filepath.Join(config.DefaultBackupDir, site.Name)
}

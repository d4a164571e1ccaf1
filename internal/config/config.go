// Package config holds site profiles and the on-disk layout of the
// wpsync config directory.
package config

import (
	"os"
	"path/filepath"
)

var (
	home, _          = os.UserHomeDir()
	DefaultConfigDir = filepath.Join(home, ".wpsync")

	DefaultSitesPath       = filepath.Join(DefaultConfigDir, "sites.yaml")
	DefaultStateDBPath     = filepath.Join(DefaultConfigDir, "state.db")
	DefaultLogDir          = filepath.Join(DefaultConfigDir, "logs")
	DefaultLockDir         = filepath.Join(DefaultConfigDir, "locks")
	DefaultBackupDir       = filepath.Join(DefaultConfigDir, "backups")
	DefaultKnownHostsPath  = filepath.Join(DefaultConfigDir, "known_hosts")
	DefaultCredentialsPath = filepath.Join(DefaultConfigDir, "credentials.env")
)

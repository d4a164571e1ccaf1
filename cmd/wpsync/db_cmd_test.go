package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/sync"
)

func dbTestSite(t *testing.T) *config.SiteProfile {
	t.Helper()
	return &config.SiteProfile{
		ID:        "site-1",
		Name:      "staging",
		LocalPath: t.TempDir(),
		Remote: config.RemoteConfig{
			Scheme: config.SchemeSFTP,
			Host:   "example.com",
			User:   "deploy",
			Path:   "/var/www/staging",
		},
		Database: &config.DatabaseSettings{
			LocalURL:  "http://localhost:8080",
			RemoteURL: "https://staging.example.com",
		},
	}
}

func TestCheckDBSite(t *testing.T) {
	require.NoError(t, checkDBSite(dbTestSite(t)))
}

func TestCheckDBSite_RequiresDatabaseSettings(t *testing.T) {
	site := dbTestSite(t)
	site.Database = nil

	err := checkDBSite(site)
	require.Error(t, err)
	assert.ErrorIs(t, err, sync.ErrConfiguration)
	assert.Contains(t, err.Error(), "no database settings")
}

func TestCheckDBSite_RequiresSFTPRemote(t *testing.T) {
	site := dbTestSite(t)
	site.Remote = config.RemoteConfig{Scheme: config.SchemeS3, Bucket: "b", Path: "sites/staging"}

	err := checkDBSite(site)
	require.Error(t, err)
	assert.ErrorIs(t, err, sync.ErrConfiguration)
	assert.Contains(t, err.Error(), "sftp")
}

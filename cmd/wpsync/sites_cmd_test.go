package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSites executes one sites subcommand against a fresh cobra tree,
// capturing stdout.
func runSites(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "wpsync"}
	root.AddCommand(newSitesCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"sites"}, args...))

	err := root.Execute()
	return out.String(), err
}

func useTempConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	viper.Set("sites", filepath.Join(dir, "sites.yaml"))
	viper.Set("state", filepath.Join(dir, "state.db"))
	t.Cleanup(func() {
		viper.Set("sites", nil)
		viper.Set("state", nil)
	})
}

func addTestSite(t *testing.T, name string) {
	t.Helper()
	_, err := runSites(t, "add", "--no-input",
		"--name", name,
		"--local", t.TempDir(),
		"--host", "example.com",
		"--user", "deploy",
		"--remote-path", "/var/www/"+name,
		"--url", "https://"+name+".example.com",
		"--scope", "wp-content/uploads",
	)
	require.NoError(t, err)
}

func TestSitesAddAndList(t *testing.T) {
	useTempConfig(t)

	out, err := runSites(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no sites configured")

	addTestSite(t, "staging")

	out, err = runSites(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "staging")
	assert.Contains(t, out, "deploy@example.com:/var/www/staging")
}

func TestSitesAdd_RejectsDuplicateName(t *testing.T) {
	useTempConfig(t)
	addTestSite(t, "prod")

	_, err := runSites(t, "add", "--no-input",
		"--name", "prod",
		"--local", t.TempDir(),
		"--host", "other.example.com",
		"--user", "deploy",
		"--remote-path", "/var/www/prod",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}

func TestSitesAdd_RequiresRemoteDetails(t *testing.T) {
	useTempConfig(t)

	_, err := runSites(t, "add", "--no-input", "--name", "broken", "--local", t.TempDir())
	require.Error(t, err)
}

func TestSitesShow(t *testing.T) {
	useTempConfig(t)
	addTestSite(t, "staging")

	out, err := runSites(t, "show", "staging")
	require.NoError(t, err)
	assert.Contains(t, out, "staging")
	assert.Contains(t, out, "wp-content/uploads")
	assert.Contains(t, out, "https://staging.example.com")

	_, err = runSites(t, "show", "nope")
	require.Error(t, err)
}

func TestSitesRemove(t *testing.T) {
	useTempConfig(t)
	addTestSite(t, "staging")

	out, err := runSites(t, "remove", "staging", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "removed")

	out, err = runSites(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no sites configured")
}

func TestSitesRemove_AbortsWithoutConfirmation(t *testing.T) {
	useTempConfig(t)
	addTestSite(t, "staging")

	// Empty stdin reads as "no".
	out, err := runSites(t, "remove", "staging")
	require.NoError(t, err)
	assert.Contains(t, out, "aborted")

	out, err = runSites(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "staging")
}

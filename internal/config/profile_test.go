package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile(t *testing.T) *SiteProfile {
	t.Helper()
	p := NewSiteProfile("staging")
	p.LocalPath = t.TempDir()
	p.Remote = RemoteConfig{
		Host: "staging.example.com",
		User: "deploy",
		Path: "/var/www/html",
	}
	return p
}

func TestProfile_Validate_NormalizesAndDefaults(t *testing.T) {
	p := validProfile(t)
	p.SiteURL = "https://staging.example.com"

	require.NoError(t, p.Validate())
	assert.True(t, filepath.IsAbs(p.LocalPath))
	assert.Equal(t, SchemeSFTP, p.Remote.Scheme)
	assert.Equal(t, 22, p.Remote.Port)
	assert.NotEmpty(t, p.ID)
}

func TestProfile_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		p := validProfile(t)
		p.Name = ""
		assert.Error(t, p.Validate())
	})

	t.Run("missing local path", func(t *testing.T) {
		p := validProfile(t)
		p.LocalPath = ""
		assert.Error(t, p.Validate())
	})

	t.Run("missing remote host", func(t *testing.T) {
		p := validProfile(t)
		p.Remote.Host = ""
		assert.Error(t, p.Validate())
	})

	t.Run("relative remote path", func(t *testing.T) {
		p := validProfile(t)
		p.Remote.Path = "www/html"
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absolute")
	})

	t.Run("bad site url", func(t *testing.T) {
		p := validProfile(t)
		p.SiteURL = "ftp://bad.example.com"
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "site url")
	})

	t.Run("unknown scheme", func(t *testing.T) {
		p := validProfile(t)
		p.Remote.Scheme = "rsync"
		assert.Error(t, p.Validate())
	})

	t.Run("local path outside repo path", func(t *testing.T) {
		p := validProfile(t)
		p.RepoPath = t.TempDir()
		assert.Error(t, p.Validate())
	})
}

func TestProfile_Validate_S3(t *testing.T) {
	p := NewSiteProfile("media")
	p.LocalPath = t.TempDir()
	p.Remote = RemoteConfig{
		Scheme: SchemeS3,
		Bucket: "site-media",
		Path:   "/uploads",
	}

	require.NoError(t, p.Validate())
	// Key prefixes are stored without the leading slash.
	assert.Equal(t, "uploads", p.Remote.Path)
}

func TestProfile_RepoRoot_DefaultsToLocalPath(t *testing.T) {
	p := validProfile(t)
	require.NoError(t, p.Validate())
	assert.Equal(t, p.LocalPath, p.RepoRoot())

	repo := t.TempDir()
	p.RepoPath = repo
	assert.Equal(t, repo, p.RepoRoot())
}

func TestDefaultExcludeRules_ReturnsCopy(t *testing.T) {
	rules := DefaultExcludeRules()
	require.Contains(t, rules, "wp-config.php")
	require.Contains(t, rules, ".git/")

	rules[0] = "mutated"
	assert.NotContains(t, DefaultExcludeRules(), "mutated")
}

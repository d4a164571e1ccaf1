package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/secrets"
)

type mapSecrets map[secrets.Kind]string

func (m mapSecrets) Resolve(_ string, kind secrets.Kind) (string, error) {
	if v, ok := m[kind]; ok {
		return v, nil
	}
	return "", secrets.ErrNotFound
}

func TestCredentialsForPrefersKeyFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, []byte("fake pem"), 0o600))

	site := &config.SiteProfile{Name: "blog", Remote: config.RemoteConfig{Scheme: config.SchemeSFTP}}
	creds, err := CredentialsFor(mapSecrets{
		secrets.KindKeyFile:  keyPath,
		secrets.KindPassword: "unused",
	}, site)

	require.NoError(t, err)
	assert.Equal(t, []byte("fake pem"), creds.KeyPEM)
	assert.Empty(t, creds.Password)
}

func TestCredentialsForPasswordFallback(t *testing.T) {
	site := &config.SiteProfile{Name: "blog", Remote: config.RemoteConfig{Scheme: config.SchemeSFTP}}
	creds, err := CredentialsFor(mapSecrets{secrets.KindPassword: "pw"}, site)

	require.NoError(t, err)
	assert.Equal(t, "pw", creds.Password)
	assert.Nil(t, creds.KeyPEM)
}

func TestCredentialsForMissingKeyFileIsConfigurationError(t *testing.T) {
	site := &config.SiteProfile{Name: "blog", Remote: config.RemoteConfig{Scheme: config.SchemeSFTP}}
	_, err := CredentialsFor(mapSecrets{
		secrets.KindKeyFile: filepath.Join(t.TempDir(), "absent"),
	}, site)

	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCredentialsForSFTPRequiresASecret(t *testing.T) {
	site := &config.SiteProfile{Name: "my-blog", Remote: config.RemoteConfig{Scheme: config.SchemeSFTP}}
	_, err := CredentialsFor(mapSecrets{}, site)

	require.ErrorIs(t, err, ErrConfiguration)
	// The message must tell the operator which variables to set.
	assert.Contains(t, err.Error(), "WPSYNC_MY_BLOG_PASSWORD")
	assert.Contains(t, err.Error(), "WPSYNC_MY_BLOG_KEY_FILE")
}

func TestCredentialsForS3MayBeEmpty(t *testing.T) {
	site := &config.SiteProfile{Name: "cdn", Remote: config.RemoteConfig{Scheme: config.SchemeS3}}
	creds, err := CredentialsFor(mapSecrets{}, site)

	require.NoError(t, err)
	assert.Empty(t, creds.Password)
	assert.Nil(t, creds.KeyPEM)
}

func TestEndpointForMapsRemoteFields(t *testing.T) {
	site := &config.SiteProfile{
		Remote: config.RemoteConfig{
			Scheme:    config.SchemeS3,
			Bucket:    "media",
			Endpoint:  "https://minio.local:9000",
			Region:    "us-east-1",
			PathStyle: true,
		},
	}

	ep := EndpointFor(site)
	assert.Equal(t, config.SchemeS3, ep.Scheme)
	assert.Equal(t, "media", ep.Bucket)
	assert.Equal(t, "https://minio.local:9000", ep.URL)
	assert.Equal(t, "us-east-1", ep.Region)
	assert.True(t, ep.PathStyle)
}

func TestTreePrefix(t *testing.T) {
	root := t.TempDir()

	cases := []struct {
		name      string
		localPath string
		repoPath  string
		want      string
		wantErr   bool
	}{
		{name: "tree is the repo root", localPath: root, repoPath: root, want: ""},
		{name: "tree under the repo", localPath: filepath.Join(root, "web", "wp"), repoPath: root, want: "web/wp"},
		{name: "tree outside the repo", localPath: filepath.Join(filepath.Dir(root), "elsewhere"), repoPath: root, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			site := &config.SiteProfile{LocalPath: tc.localPath, RepoPath: tc.repoPath}
			got, err := treePrefix(site)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

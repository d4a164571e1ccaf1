package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvKey(t *testing.T) {
	tests := []struct {
		site string
		kind Kind
		want string
	}{
		{"staging", KindPassword, "WPSYNC_STAGING_PASSWORD"},
		{"staging", KindKeyFile, "WPSYNC_STAGING_KEY_FILE"},
		{"my-site", KindPassword, "WPSYNC_MY_SITE_PASSWORD"},
		{"client site 2", KindPassword, "WPSYNC_CLIENT_SITE_2_PASSWORD"},
		{"--odd--", KindPassword, "WPSYNC_ODD_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.site, func(t *testing.T) {
			assert.Equal(t, tt.want, EnvKey(tt.site, tt.kind))
		})
	}
}

func TestEnvProvider_ProcessEnv(t *testing.T) {
	t.Setenv("WPSYNC_STAGING_PASSWORD", "hunter2")

	p := NewEnvProvider(filepath.Join(t.TempDir(), "missing.env"))
	got, err := p.Resolve("staging", KindPassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestEnvProvider_DotenvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "credentials.env")
	require.NoError(t, os.WriteFile(envFile, []byte("WPSYNC_STAGING_KEY_FILE=/home/alice/.ssh/id_ed25519\n"), 0o600))

	p := NewEnvProvider(envFile)
	got, err := p.Resolve("staging", KindKeyFile)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.ssh/id_ed25519", got)
}

func TestEnvProvider_ProcessEnvWinsOverFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "credentials.env")
	require.NoError(t, os.WriteFile(envFile, []byte("WPSYNC_STAGING_PASSWORD=from-file\n"), 0o600))
	t.Setenv("WPSYNC_STAGING_PASSWORD", "from-env")

	p := NewEnvProvider(envFile)
	got, err := p.Resolve("staging", KindPassword)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestEnvProvider_NotFound(t *testing.T) {
	p := NewEnvProvider(filepath.Join(t.TempDir(), "missing.env"))
	_, err := p.Resolve("nosuch", KindPassword)
	assert.ErrorIs(t, err, ErrNotFound)
}

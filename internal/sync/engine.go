package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/secrets"
	"github.com/wpsync/wpsync/internal/state"
	"github.com/wpsync/wpsync/internal/transfer"
	"github.com/wpsync/wpsync/internal/utils"
)

// StateStore is the slice of the durable state layer the orchestrators
// need. *state.Store satisfies it.
type StateStore interface {
	PushRecord(siteID string) (*state.PushRecord, error)
	SavePushRecord(rec *state.PushRecord) error
	SavePullRecord(rec *state.PullRecord) error
}

// EndpointFor maps a site profile onto a dialable transfer endpoint.
func EndpointFor(site *config.SiteProfile) transfer.Endpoint {
	r := site.Remote
	return transfer.Endpoint{
		Scheme:    r.Scheme,
		Host:      r.Host,
		Port:      r.Port,
		User:      r.User,
		Bucket:    r.Bucket,
		URL:       r.Endpoint,
		Region:    r.Region,
		PathStyle: r.PathStyle,
	}
}

// CredentialsFor asks the secret provider for key material first, then
// a password. SFTP requires one of the two; S3 may dial with neither
// and fall back to the ambient AWS credential chain. Secrets pass
// through to the channel and are never logged or persisted.
func CredentialsFor(provider secrets.Provider, site *config.SiteProfile) (transfer.Credentials, error) {
	var creds transfer.Credentials

	keyFile, err := provider.Resolve(site.Name, secrets.KindKeyFile)
	switch {
	case err == nil:
		path, err := utils.ResolvePath(keyFile)
		if err != nil {
			return creds, fmt.Errorf("%w: resolve key file: %w", ErrConfiguration, err)
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return creds, fmt.Errorf("%w: read key file: %w", ErrConfiguration, err)
		}
		creds.KeyPEM = pem
		return creds, nil
	case !errors.Is(err, secrets.ErrNotFound):
		return creds, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	password, err := provider.Resolve(site.Name, secrets.KindPassword)
	switch {
	case err == nil:
		creds.Password = password
		return creds, nil
	case !errors.Is(err, secrets.ErrNotFound):
		return creds, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if site.Remote.Scheme == config.SchemeSFTP {
		return creds, fmt.Errorf("%w: no credentials for site %q; set %s or %s",
			ErrConfiguration, site.Name,
			secrets.EnvKey(site.Name, secrets.KindPassword),
			secrets.EnvKey(site.Name, secrets.KindKeyFile))
	}
	return creds, nil
}

// treePrefix is the repository-relative location of the synced tree,
// "" when the repository root is the tree itself.
func treePrefix(site *config.SiteProfile) (string, error) {
	rel, err := filepath.Rel(site.RepoRoot(), site.LocalPath)
	if err != nil {
		return "", fmt.Errorf("%w: local path %s is not under repository %s",
			ErrConfiguration, site.LocalPath, site.RepoRoot())
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: local path %s is not under repository %s",
			ErrConfiguration, site.LocalPath, site.RepoRoot())
	}
	return rel, nil
}

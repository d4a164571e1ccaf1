package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wpsync/wpsync/internal/utils"
)

const (
	SchemeSFTP = "sftp"
	SchemeS3   = "s3"

	defaultSFTPPort = 22
)

// defaultExcludeRules are seeded into every new profile. Users edit the
// list afterwards; the sync core never re-applies these implicitly.
var defaultExcludeRules = []string{
	"*.log",
	"wp-config.php",
	"wp-config-local.php",
	".git/",
	"node_modules/",
	".DS_Store",
	".htaccess",
	"*.sql",
	"*.sql.gz",
	".env",
	".env.local",
}

// DefaultExcludeRules returns a fresh copy of the seed exclusion list.
func DefaultExcludeRules() []string {
	return slices.Clone(defaultExcludeRules)
}

// RemoteConfig describes the remote end of a site. Scheme selects the
// transfer channel implementation.
type RemoteConfig struct {
	Scheme string `yaml:"scheme,omitempty"`
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	User   string `yaml:"user,omitempty"`
	Path   string `yaml:"path"`

	// S3 only.
	Bucket    string `yaml:"bucket,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// Addr returns "host:port" for dialing.
func (r *RemoteConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DatabaseSettings drive the wp-cli database workflow. Prefixes and URLs
// are usually pre-filled from wp-config.php during `sites add`.
type DatabaseSettings struct {
	LocalURL      string   `yaml:"local_url,omitempty"`
	RemoteURL     string   `yaml:"remote_url,omitempty"`
	LocalPrefix   string   `yaml:"local_prefix,omitempty"`
	RemotePrefix  string   `yaml:"remote_prefix,omitempty"`
	ExcludeTables []string `yaml:"exclude_tables,omitempty"`
	RemoteWPPath  string   `yaml:"remote_wp_path,omitempty"`
}

// SiteProfile is one synchronized site. Profiles are read-only to the
// sync core; only the CLI mutates them through the Store.
type SiteProfile struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	LocalPath       string            `yaml:"local_path"`
	RepoPath        string            `yaml:"repo_path,omitempty"`
	Remote          RemoteConfig      `yaml:"remote"`
	SiteURL         string            `yaml:"site_url,omitempty"`
	ExcludeRules    []string          `yaml:"exclude_rules,omitempty"`
	PullScopePaths  []string          `yaml:"pull_scope_paths,omitempty"`
	MirrorDeletions bool              `yaml:"mirror_deletions,omitempty"`
	Database        *DatabaseSettings `yaml:"database,omitempty"`
	CreatedAt       time.Time         `yaml:"created_at,omitempty"`
	UpdatedAt       time.Time         `yaml:"updated_at,omitempty"`
}

// NewSiteProfile returns a profile with a fresh ID, timestamps and the
// default exclusion list.
func NewSiteProfile(name string) *SiteProfile {
	now := time.Now().UTC()
	return &SiteProfile{
		ID:           uuid.NewString(),
		Name:         name,
		ExcludeRules: DefaultExcludeRules(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// RepoRoot is the version-control root used for push planning. It
// defaults to LocalPath when no separate repository path is configured.
func (p *SiteProfile) RepoRoot() string {
	if p.RepoPath != "" {
		return p.RepoPath
	}
	return p.LocalPath
}

// Validate normalizes the profile in place and reports the first
// configuration problem found.
func (p *SiteProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("site name is required")
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	if p.LocalPath == "" {
		return fmt.Errorf("local path is required")
	}
	localPath, err := utils.ResolvePath(p.LocalPath)
	if err != nil {
		return fmt.Errorf("local path: %w", err)
	}
	p.LocalPath = localPath

	if p.RepoPath != "" {
		repoPath, err := utils.ResolvePath(p.RepoPath)
		if err != nil {
			return fmt.Errorf("repo path: %w", err)
		}
		p.RepoPath = repoPath
		if p.LocalPath != p.RepoPath && !strings.HasPrefix(p.LocalPath+"/", p.RepoPath+"/") {
			return fmt.Errorf("local path %s is not inside repo path %s", p.LocalPath, p.RepoPath)
		}
	}

	if p.Remote.Scheme == "" {
		p.Remote.Scheme = SchemeSFTP
	}

	switch p.Remote.Scheme {
	case SchemeSFTP:
		if p.Remote.Host == "" {
			return fmt.Errorf("remote host is required")
		}
		if p.Remote.User == "" {
			return fmt.Errorf("remote user is required")
		}
		if p.Remote.Port == 0 {
			p.Remote.Port = defaultSFTPPort
		}
		if p.Remote.Path == "" {
			return fmt.Errorf("remote path is required")
		}
		if !strings.HasPrefix(p.Remote.Path, "/") {
			return fmt.Errorf("remote path must be absolute: %s", p.Remote.Path)
		}
	case SchemeS3:
		if p.Remote.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		// Key prefixes never start with a slash.
		p.Remote.Path = strings.TrimPrefix(p.Remote.Path, "/")
	default:
		return fmt.Errorf("unknown remote scheme %q", p.Remote.Scheme)
	}

	if p.SiteURL != "" {
		u, err := url.Parse(p.SiteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("site url must be a http(s) url: %s", p.SiteURL)
		}
	}

	return nil
}

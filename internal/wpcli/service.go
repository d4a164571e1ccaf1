package wpcli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/transfer"
	"github.com/wpsync/wpsync/internal/utils"
)

// Directions a database move can take.
const (
	DirectionPush = "push"
	DirectionPull = "pull"
)

const workflowSteps = 10

// Service moves the WordPress database between the local tree and the
// remote host. Both sides need wp-cli on PATH; dump files travel over
// the Files channel. The caller dials and closes the channel.
type Service struct {
	Local    *Host
	Remote   *Host
	Files    transfer.Channel
	Settings config.DatabaseSettings

	// BackupDir receives a dump of the side about to be overwritten.
	// Empty skips the backup; the outcome carries an advisory instead.
	BackupDir string

	Progress Progress
}

// DBOutcome summarizes one database move.
type DBOutcome struct {
	Direction    string    `json:"direction"`
	Tables       int       `json:"tables"`
	DumpBytes    int64     `json:"dump_bytes"`
	Replacements int       `json:"replacements"`
	BackupPath   string    `json:"backup_path,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Advisories   []string  `json:"advisories,omitempty"`
}

// PushDatabase replaces the remote database with the local one:
// verify both wp-cli installs, back up the remote, export locally,
// rewrite the table prefix when the sides disagree, upload, import,
// repair prefix-dependent rows, then search-replace the site URL.
// extraExclude merges with the profile's exclude_tables.
func (s *Service) PushDatabase(ctx context.Context, extraExclude []string) (*DBOutcome, error) {
	out := &DBOutcome{Direction: DirectionPush, StartedAt: time.Now().UTC()}
	if err := s.checkPrefixes(); err != nil {
		return nil, err
	}

	s.Progress.emit(1, workflowSteps, "checking wp-cli on this machine")
	if _, err := s.Local.Version(ctx); err != nil {
		return nil, fmt.Errorf("local wp-cli: %w", err)
	}

	s.Progress.emit(2, workflowSteps, "checking wp-cli on the remote host")
	if _, err := s.Remote.Version(ctx); err != nil {
		return nil, fmt.Errorf("remote wp-cli: %w", err)
	}

	exclude := s.mergedExcludes(extraExclude)
	tables, err := s.Local.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local tables: %w", err)
	}
	out.Tables = countKept(tables, exclude)

	s.Progress.emit(3, workflowSteps, "backing up the remote database")
	backup, err := s.backupRemote(ctx)
	if err != nil {
		return nil, err
	}
	out.BackupPath = backup
	if backup == "" {
		out.Advisories = append(out.Advisories,
			"no backup directory configured; the remote database will be replaced without a safety dump")
	}

	s.Progress.emit(4, workflowSteps, "exporting the local database")
	localDump := filepath.Join(os.TempDir(), dumpName(DirectionPush))
	if err := s.Local.Export(ctx, localDump, exclude); err != nil {
		return nil, fmt.Errorf("export local database: %w", err)
	}
	defer os.Remove(localDump)

	s.Progress.emit(5, workflowSteps, "rewriting the table prefix")
	if n, err := RewritePrefix(localDump, s.Settings.LocalPrefix, s.Settings.RemotePrefix); err != nil {
		return nil, fmt.Errorf("rewrite prefix: %w", err)
	} else if n > 0 {
		slog.Debug("dump prefix rewritten",
			"statements", n, "from", s.Settings.LocalPrefix, "to", s.Settings.RemotePrefix)
	}

	if info, err := os.Stat(localDump); err == nil {
		out.DumpBytes = info.Size()
	}

	s.Progress.emit(6, workflowSteps, "uploading the dump")
	remoteDump := path.Join(s.Remote.Path, filepath.Base(localDump))
	if _, err := s.Files.Put(ctx, localDump, remoteDump); err != nil {
		return nil, fmt.Errorf("upload dump: %w", err)
	}
	defer s.removeRemote(remoteDump)

	s.Progress.emit(7, workflowSteps, "importing on the remote host")
	if err := s.Remote.Import(ctx, remoteDump); err != nil {
		return nil, fmt.Errorf("import remote database: %w", err)
	}

	s.Progress.emit(8, workflowSteps, "repairing prefix-dependent rows")
	if err := s.fixupPrefix(ctx, s.Remote, s.Settings.LocalPrefix, s.Settings.RemotePrefix); err != nil {
		return nil, err
	}

	s.Progress.emit(9, workflowSteps, "rewriting site urls")
	n, err := s.rewriteURLs(ctx, s.Remote, s.Settings.LocalURL, s.Settings.RemoteURL, out)
	if err != nil {
		return nil, err
	}
	out.Replacements = n

	s.Progress.emit(10, workflowSteps, "cleaning up")
	out.FinishedAt = time.Now().UTC()
	return out, nil
}

// PullDatabase replaces the local database with the remote one. The
// mirror image of PushDatabase: the local side is backed up, the
// remote side is exported and downloaded.
func (s *Service) PullDatabase(ctx context.Context, extraExclude []string) (*DBOutcome, error) {
	out := &DBOutcome{Direction: DirectionPull, StartedAt: time.Now().UTC()}
	if err := s.checkPrefixes(); err != nil {
		return nil, err
	}

	s.Progress.emit(1, workflowSteps, "checking wp-cli on this machine")
	if _, err := s.Local.Version(ctx); err != nil {
		return nil, fmt.Errorf("local wp-cli: %w", err)
	}

	s.Progress.emit(2, workflowSteps, "checking wp-cli on the remote host")
	if _, err := s.Remote.Version(ctx); err != nil {
		return nil, fmt.Errorf("remote wp-cli: %w", err)
	}

	exclude := s.mergedExcludes(extraExclude)
	tables, err := s.Remote.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote tables: %w", err)
	}
	out.Tables = countKept(tables, exclude)

	s.Progress.emit(3, workflowSteps, "backing up the local database")
	backup, err := s.backupLocal(ctx)
	if err != nil {
		return nil, err
	}
	out.BackupPath = backup
	if backup == "" {
		out.Advisories = append(out.Advisories,
			"no backup directory configured; the local database will be replaced without a safety dump")
	}

	s.Progress.emit(4, workflowSteps, "exporting the remote database")
	remoteDump := path.Join(s.Remote.Path, dumpName(DirectionPull))
	if err := s.Remote.Export(ctx, remoteDump, exclude); err != nil {
		return nil, fmt.Errorf("export remote database: %w", err)
	}
	defer s.removeRemote(remoteDump)

	s.Progress.emit(5, workflowSteps, "downloading the dump")
	localDump := filepath.Join(os.TempDir(), path.Base(remoteDump))
	if _, err := s.Files.Get(ctx, remoteDump, localDump); err != nil {
		return nil, fmt.Errorf("download dump: %w", err)
	}
	defer os.Remove(localDump)

	s.Progress.emit(6, workflowSteps, "rewriting the table prefix")
	if n, err := RewritePrefix(localDump, s.Settings.RemotePrefix, s.Settings.LocalPrefix); err != nil {
		return nil, fmt.Errorf("rewrite prefix: %w", err)
	} else if n > 0 {
		slog.Debug("dump prefix rewritten",
			"statements", n, "from", s.Settings.RemotePrefix, "to", s.Settings.LocalPrefix)
	}

	if info, err := os.Stat(localDump); err == nil {
		out.DumpBytes = info.Size()
	}

	s.Progress.emit(7, workflowSteps, "importing locally")
	if err := s.Local.Import(ctx, localDump); err != nil {
		return nil, fmt.Errorf("import local database: %w", err)
	}

	s.Progress.emit(8, workflowSteps, "repairing prefix-dependent rows")
	if err := s.fixupPrefix(ctx, s.Local, s.Settings.RemotePrefix, s.Settings.LocalPrefix); err != nil {
		return nil, err
	}

	s.Progress.emit(9, workflowSteps, "rewriting site urls")
	n, err := s.rewriteURLs(ctx, s.Local, s.Settings.RemoteURL, s.Settings.LocalURL, out)
	if err != nil {
		return nil, err
	}
	out.Replacements = n

	s.Progress.emit(10, workflowSteps, "cleaning up")
	out.FinishedAt = time.Now().UTC()
	return out, nil
}

// checkPrefixes validates both prefixes up front, but only when they
// disagree; equal prefixes never reach SQL or a regexp.
func (s *Service) checkPrefixes() error {
	if s.Settings.LocalPrefix == s.Settings.RemotePrefix {
		return nil
	}
	if err := CheckPrefix(s.Settings.LocalPrefix); err != nil {
		return fmt.Errorf("local prefix: %w", err)
	}
	if err := CheckPrefix(s.Settings.RemotePrefix); err != nil {
		return fmt.Errorf("remote prefix: %w", err)
	}
	return nil
}

// fixupPrefix runs the post-import repair statements on the side that
// just received a dump with a renamed prefix.
func (s *Service) fixupPrefix(ctx context.Context, host *Host, from, to string) error {
	if from == to {
		return nil
	}
	for _, q := range PrefixFixupQueries(from, to) {
		if err := host.Query(ctx, q); err != nil {
			return fmt.Errorf("prefix fixup: %w", err)
		}
	}
	return nil
}

// rewriteURLs search-replaces the source URL with the destination URL
// on the side that just imported. Skipped with an advisory when either
// side has no URL configured.
func (s *Service) rewriteURLs(ctx context.Context, host *Host, from, to string, out *DBOutcome) (int, error) {
	if from == "" || to == "" {
		out.Advisories = append(out.Advisories,
			"site urls are not configured for both sides; skipped the url rewrite")
		return 0, nil
	}
	if from == to {
		return 0, nil
	}
	n, err := host.SearchReplace(ctx, from, to, false)
	if err != nil {
		return 0, fmt.Errorf("rewrite urls: %w", err)
	}
	return n, nil
}

// backupRemote exports the remote database and brings the dump home
// before anything overwrites it. Returns the local backup path, empty
// when no backup directory is configured.
func (s *Service) backupRemote(ctx context.Context) (string, error) {
	if s.BackupDir == "" {
		return "", nil
	}
	if err := utils.EnsureDir(s.BackupDir); err != nil {
		return "", fmt.Errorf("backup dir: %w", err)
	}
	remoteDump := path.Join(s.Remote.Path, dumpName("backup"))
	if err := s.Remote.Export(ctx, remoteDump, nil); err != nil {
		return "", fmt.Errorf("export remote backup: %w", err)
	}
	defer s.removeRemote(remoteDump)

	local := filepath.Join(s.BackupDir, backupName("remote"))
	if _, err := s.Files.Get(ctx, remoteDump, local); err != nil {
		return "", fmt.Errorf("download remote backup: %w", err)
	}
	return local, nil
}

// backupLocal exports the local database into the backup directory.
func (s *Service) backupLocal(ctx context.Context) (string, error) {
	if s.BackupDir == "" {
		return "", nil
	}
	if err := utils.EnsureDir(s.BackupDir); err != nil {
		return "", fmt.Errorf("backup dir: %w", err)
	}
	local := filepath.Join(s.BackupDir, backupName("local"))
	if err := s.Local.Export(ctx, local, nil); err != nil {
		return "", fmt.Errorf("export local backup: %w", err)
	}
	return local, nil
}

// mergedExcludes combines the profile's exclude_tables with the ones
// passed on the command line, deduplicated and sorted.
func (s *Service) mergedExcludes(extra []string) []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, t := range s.Settings.ExcludeTables {
		if t = strings.TrimSpace(t); t != "" {
			set.Add(t)
		}
	}
	for _, t := range extra {
		if t = strings.TrimSpace(t); t != "" {
			set.Add(t)
		}
	}
	if set.Cardinality() == 0 {
		return nil
	}
	merged := set.ToSlice()
	sort.Strings(merged)
	return merged
}

// countKept reports how many tables the dump will carry.
func countKept(tables, exclude []string) int {
	excluded := mapset.NewThreadUnsafeSet(exclude...)
	kept := 0
	for _, t := range tables {
		if !excluded.Contains(t) {
			kept++
		}
	}
	return kept
}

// removeRemote deletes a dump from the remote tree. Dumps sit inside
// the web root while they exist, so leaving one behind is worth a
// warning.
func (s *Service) removeRemote(remotePath string) {
	if err := s.Files.Remove(remotePath); err != nil && !errors.Is(err, transfer.ErrNotExist) {
		slog.Warn("remote dump left behind", "path", remotePath, "error", err)
	}
}

func dumpName(tag string) string {
	token, err := utils.RandBase34(8)
	if err != nil {
		token = strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return fmt.Sprintf("wpsync-%s-%s.sql", tag, strings.ToLower(token))
}

func backupName(side string) string {
	return fmt.Sprintf("%s-%s.sql", time.Now().UTC().Format("20060102-150405"), side)
}

// Package wpcli drives WP-CLI on both ends of a site to move the
// WordPress database between them. Dumps travel over the same
// transfer.Channel the file sync uses; everything else is wp commands
// issued through a command runner.
package wpcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wpsync/wpsync/internal/transfer"
)

// Progress receives one notification per workflow step. Safe to leave
// nil.
type Progress func(step, total int, message string)

func (f Progress) emit(step, total int, message string) {
	if f != nil {
		f(step, total, message)
	}
}

// LocalRunner executes commands through the local POSIX shell. It is
// the local-side counterpart of transfer.SSHRunner.
type LocalRunner struct {
	// Dir is the working directory for every command. Empty means the
	// process working directory.
	Dir string
}

func (r *LocalRunner) Run(ctx context.Context, cmd string) (string, string, error) {
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(),
				fmt.Errorf("local command exited %d: %s", exitErr.ExitCode(), firstLine(stderr.String()))
		}
		return stdout.String(), stderr.String(), fmt.Errorf("local command: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}

// Host is one WordPress installation reachable through a command
// runner. Path is the installation directory handed to every wp call.
type Host struct {
	Runner transfer.Runner
	Path   string
}

// wp runs one WP-CLI command against the host's installation path.
// Arguments must already be shell-quoted where they carry user input.
func (h *Host) wp(ctx context.Context, args ...string) (string, error) {
	cmd := "wp " + strings.Join(args, " ") + " --path=" + shellQuote(h.Path)
	stdout, _, err := h.Runner.Run(ctx, cmd)
	return stdout, err
}

// Version reports the WP-CLI version line, proving the binary is on
// the host's PATH.
func (h *Host) Version(ctx context.Context) (string, error) {
	out, err := h.wp(ctx, "--version")
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// Export dumps the database to file with DROP TABLE statements, minus
// excludeTables when given.
func (h *Host) Export(ctx context.Context, file string, excludeTables []string) error {
	args := []string{"db", "export", shellQuote(file), "--add-drop-table"}
	if len(excludeTables) > 0 {
		args = append(args, "--exclude_tables="+shellQuote(strings.Join(excludeTables, ",")))
	}
	_, err := h.wp(ctx, args...)
	return err
}

// Import replaces the database with the contents of a dump file
// already present on the host.
func (h *Host) Import(ctx context.Context, file string) error {
	_, err := h.wp(ctx, "db", "import", shellQuote(file))
	return err
}

// SearchReplace rewrites old to new across all tables and returns the
// number of cells changed. GUIDs keep their original value so feed
// readers do not re-deliver every post. dryRun counts without writing.
func (h *Host) SearchReplace(ctx context.Context, old, new string, dryRun bool) (int, error) {
	args := []string{
		"search-replace", shellQuote(old), shellQuote(new),
		"--all-tables", "--skip-columns=guid", "--report-changed-only", "--format=count",
	}
	if dryRun {
		args = append(args, "--dry-run")
	}
	out, err := h.wp(ctx, args...)
	if err != nil {
		return 0, err
	}
	count := strings.TrimSpace(firstLine(out))
	n, err := strconv.Atoi(count)
	if err != nil {
		return 0, fmt.Errorf("parse search-replace count %q: %w", count, err)
	}
	return n, nil
}

// Tables lists every table in the host's database.
func (h *Host) Tables(ctx context.Context) ([]string, error) {
	out, err := h.wp(ctx, "db", "tables", "--all-tables", "--format=csv")
	if err != nil {
		return nil, err
	}
	return splitTables(out), nil
}

// Query runs one SQL statement through wp db query.
func (h *Host) Query(ctx context.Context, sql string) error {
	_, err := h.wp(ctx, "db", "query", shellQuote(sql))
	return err
}

// shellQuote single-quotes s so it survives both the local sh and the
// remote login shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// splitTables parses wp db tables csv output, tolerating the one-line
// and one-per-line shapes different wp-cli versions emit.
func splitTables(out string) []string {
	fields := strings.FieldsFunc(out, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	var tables []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tables = append(tables, f)
		}
	}
	return tables
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

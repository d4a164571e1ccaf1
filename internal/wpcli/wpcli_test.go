package wpcli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptRunner records every command and answers with one canned
// response.
type scriptRunner struct {
	cmds   []string
	stdout string
	err    error
}

func (r *scriptRunner) Run(_ context.Context, cmd string) (string, string, error) {
	r.cmds = append(r.cmds, cmd)
	return r.stdout, "", r.err
}

func TestHostCommandShapes(t *testing.T) {
	cases := []struct {
		name string
		call func(ctx context.Context, h *Host) error
		want string
	}{
		{
			name: "version",
			call: func(ctx context.Context, h *Host) error {
				_, err := h.Version(ctx)
				return err
			},
			want: `wp --version --path='/srv/site'`,
		},
		{
			name: "export",
			call: func(ctx context.Context, h *Host) error {
				return h.Export(ctx, "/tmp/d.sql", nil)
			},
			want: `wp db export '/tmp/d.sql' --add-drop-table --path='/srv/site'`,
		},
		{
			name: "export with excluded tables",
			call: func(ctx context.Context, h *Host) error {
				return h.Export(ctx, "/tmp/d.sql", []string{"wp_a", "wp_b"})
			},
			want: `wp db export '/tmp/d.sql' --add-drop-table --exclude_tables='wp_a,wp_b' --path='/srv/site'`,
		},
		{
			name: "import",
			call: func(ctx context.Context, h *Host) error {
				return h.Import(ctx, "/tmp/d.sql")
			},
			want: `wp db import '/tmp/d.sql' --path='/srv/site'`,
		},
		{
			name: "search-replace",
			call: func(ctx context.Context, h *Host) error {
				_, err := h.SearchReplace(ctx, "http://a.test", "https://b.test", false)
				return err
			},
			want: `wp search-replace 'http://a.test' 'https://b.test' --all-tables --skip-columns=guid --report-changed-only --format=count --path='/srv/site'`,
		},
		{
			name: "search-replace dry run",
			call: func(ctx context.Context, h *Host) error {
				_, err := h.SearchReplace(ctx, "http://a.test", "https://b.test", true)
				return err
			},
			want: `wp search-replace 'http://a.test' 'https://b.test' --all-tables --skip-columns=guid --report-changed-only --format=count --dry-run --path='/srv/site'`,
		},
		{
			name: "tables",
			call: func(ctx context.Context, h *Host) error {
				_, err := h.Tables(ctx)
				return err
			},
			want: `wp db tables --all-tables --format=csv --path='/srv/site'`,
		},
		{
			name: "query",
			call: func(ctx context.Context, h *Host) error {
				return h.Query(ctx, "SELECT 1")
			},
			want: `wp db query 'SELECT 1' --path='/srv/site'`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &scriptRunner{stdout: "0"}
			h := &Host{Runner: runner, Path: "/srv/site"}

			require.NoError(t, tc.call(context.Background(), h))
			require.Len(t, runner.cmds, 1)
			assert.Equal(t, tc.want, runner.cmds[0])
		})
	}
}

func TestVersionReturnsFirstLine(t *testing.T) {
	runner := &scriptRunner{stdout: "WP-CLI 2.10.0\nPHP binary: /usr/bin/php\n"}
	h := &Host{Runner: runner, Path: "/srv/site"}

	v, err := h.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "WP-CLI 2.10.0", v)
}

func TestSearchReplaceParsesCount(t *testing.T) {
	runner := &scriptRunner{stdout: "42\n"}
	h := &Host{Runner: runner, Path: "/srv/site"}

	n, err := h.SearchReplace(context.Background(), "a", "b", false)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	runner.stdout = "not a number"
	_, err = h.SearchReplace(context.Background(), "a", "b", false)
	assert.ErrorContains(t, err, "search-replace count")
}

func TestTablesParsing(t *testing.T) {
	cases := []struct {
		name   string
		stdout string
	}{
		{name: "single csv line", stdout: "wp_options,wp_posts,wp_users\n"},
		{name: "one per line", stdout: "wp_options\nwp_posts\nwp_users\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &scriptRunner{stdout: tc.stdout}
			h := &Host{Runner: runner, Path: "/srv/site"}

			tables, err := h.Tables(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"wp_options", "wp_posts", "wp_users"}, tables)
		})
	}
}

func TestShellQuote(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "'plain'"},
		{in: "", want: "''"},
		{in: "with space", want: "'with space'"},
		{in: "it's", want: `'it'\''s'`},
		{in: "$HOME `cmd`", want: "'$HOME `cmd`'"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, shellQuote(tc.in), "quoting %q", tc.in)
	}
}

func TestLocalRunnerCapturesOutput(t *testing.T) {
	r := &LocalRunner{}
	stdout, stderr, err := r.Run(context.Background(), "echo out; echo err >&2")

	require.NoError(t, err)
	assert.Equal(t, "out\n", stdout)
	assert.Equal(t, "err\n", stderr)
}

func TestLocalRunnerReportsExitCode(t *testing.T) {
	r := &LocalRunner{}
	_, _, err := r.Run(context.Background(), "echo broken >&2; exit 3")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 3")
	assert.Contains(t, err.Error(), "broken")
}

func TestLocalRunnerRunsInDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "probe.txt"), []byte("here"), 0o600))

	r := &LocalRunner{Dir: dir}
	stdout, _, err := r.Run(context.Background(), "cat probe.txt")

	require.NoError(t, err)
	assert.Equal(t, "here", stdout)
}

func TestLocalRunnerHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &LocalRunner{}
	_, _, err := r.Run(ctx, "sleep 5")
	assert.Error(t, err)
}

func TestSplitTablesSkipsBlanks(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTables("a,,b,\n"))
	assert.Nil(t, splitTables("\n"))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine("one\ntwo"))
	assert.Equal(t, "only", firstLine("only"))
	assert.Equal(t, "trimmed", firstLine("  trimmed  \n rest"))
	assert.Equal(t, "", firstLine(""))
}

func TestHostPathIsQuoted(t *testing.T) {
	runner := &scriptRunner{stdout: "WP-CLI 2.10.0"}
	h := &Host{Runner: runner, Path: "/srv/it's here"}

	_, err := h.Version(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(runner.cmds[0], `--path='/srv/it'\''s here'`), runner.cmds[0])
}

package wpcli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// validPrefix is the character set a $table_prefix can carry. Prefixes
// are interpolated into SQL and regular expressions, so anything
// outside it is rejected outright.
var validPrefix = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// prefixContexts are the statement heads a table name can follow in a
// wp db export dump. Longer variants come first so they win the
// alternation.
var prefixContexts = []string{
	"CREATE TABLE IF NOT EXISTS",
	"CREATE TABLE",
	"DROP TABLE IF EXISTS",
	"DROP TABLE",
	"INSERT INTO",
	"LOCK TABLES",
	"ALTER TABLE",
	"TRUNCATE TABLE",
	"REFERENCES",
}

// CheckPrefix rejects table prefixes that could not have come from a
// wp-config.php $table_prefix assignment.
func CheckPrefix(prefix string) error {
	if !validPrefix.MatchString(prefix) {
		return fmt.Errorf("invalid table prefix %q", prefix)
	}
	return nil
}

// prefixPattern matches oldPrefix where it opens a table name: after a
// statement head and the opening backtick or double quote.
func prefixPattern(oldPrefix string) *regexp.Regexp {
	alts := make([]string, len(prefixContexts))
	for i, c := range prefixContexts {
		alts[i] = regexp.QuoteMeta(c)
	}
	pat := "(" + strings.Join(alts, "|") + ")(\\s+)([\x60\"])" + regexp.QuoteMeta(oldPrefix)
	return regexp.MustCompile(pat)
}

// RewritePrefix renames the table prefix throughout a dump file,
// in place, and returns the number of statements touched. The file is
// streamed line by line; wp db export writes one statement per line,
// however long.
func RewritePrefix(path, oldPrefix, newPrefix string) (int, error) {
	if oldPrefix == newPrefix {
		return 0, nil
	}
	if err := CheckPrefix(oldPrefix); err != nil {
		return 0, err
	}
	if err := CheckPrefix(newPrefix); err != nil {
		return 0, err
	}

	in, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open dump: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".rewrite-*")
	if err != nil {
		return 0, fmt.Errorf("stage rewritten dump: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name()) // no-op once the rename has happened
	}()

	re := prefixPattern(oldPrefix)
	repl := "${1}${2}${3}" + newPrefix

	r := bufio.NewReader(in)
	w := bufio.NewWriter(tmp)
	rewritten := 0
	for {
		line, readErr := r.ReadString('\n')
		if len(line) > 0 {
			if n := len(re.FindAllStringIndex(line, -1)); n > 0 {
				rewritten += n
				line = re.ReplaceAllString(line, repl)
			}
			if _, err := w.WriteString(line); err != nil {
				return 0, fmt.Errorf("write rewritten dump: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, fmt.Errorf("read dump: %w", readErr)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("flush rewritten dump: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close rewritten dump: %w", err)
	}
	in.Close()

	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("replace dump: %w", err)
	}
	return rewritten, nil
}

// PrefixFixupQueries returns the statements that repair the two
// prefix-dependent rows WordPress keeps inside the database itself:
// the user_roles option and the per-user capability meta keys. Both
// prefixes must have passed CheckPrefix.
func PrefixFixupQueries(oldPrefix, newPrefix string) []string {
	return []string{
		fmt.Sprintf(
			"UPDATE `%soptions` SET option_name = '%suser_roles' WHERE option_name = '%suser_roles';",
			newPrefix, newPrefix, oldPrefix),
		fmt.Sprintf(
			"UPDATE `%susermeta` SET meta_key = REPLACE(meta_key, '%s', '%s') WHERE meta_key LIKE '%s%%';",
			newPrefix, oldPrefix, newPrefix, oldPrefix),
	}
}

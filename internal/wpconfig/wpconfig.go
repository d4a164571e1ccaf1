// Package wpconfig extracts settings from wp-config.php without
// executing PHP. The parse never fails; values that cannot be found
// stay empty. Used to pre-fill site profiles during setup.
package wpconfig

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/wpsync/wpsync/internal/utils"
)

// Values are the settings wpsync cares about. DBPassword is held in
// memory for completeness only; nothing logs or persists it.
type Values struct {
	DBName      string
	DBUser      string
	DBPassword  string
	DBHost      string
	TablePrefix string
	SiteURL     string
	HomeURL     string
}

var (
	defineRe = regexp.MustCompile(`define\s*\(\s*['"]([A-Z_]+)['"]\s*,\s*['"]([^'"]*)['"]\s*\)`)
	prefixRe = regexp.MustCompile(`\$table_prefix\s*=\s*['"]([^'"]+)['"]`)
)

// Parse scans raw wp-config.php content. The first definition of each
// constant wins, matching how PHP treats redefines.
func Parse(src []byte) *Values {
	v := &Values{}

	for _, m := range defineRe.FindAllSubmatch(src, -1) {
		key, val := string(m[1]), string(m[2])
		switch key {
		case "DB_NAME":
			if v.DBName == "" {
				v.DBName = val
			}
		case "DB_USER":
			if v.DBUser == "" {
				v.DBUser = val
			}
		case "DB_PASSWORD":
			if v.DBPassword == "" {
				v.DBPassword = val
			}
		case "DB_HOST":
			if v.DBHost == "" {
				v.DBHost = val
			}
		case "WP_SITEURL":
			if v.SiteURL == "" {
				v.SiteURL = val
			}
		case "WP_HOME":
			if v.HomeURL == "" {
				v.HomeURL = val
			}
		}
	}

	if m := prefixRe.FindSubmatch(src); m != nil {
		v.TablePrefix = string(m[1])
	}
	return v
}

// ParseFile reads and parses a wp-config.php from disk.
func ParseFile(path string) (*Values, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(src), nil
}

// Locate looks for wp-config.php at root and one directory above it,
// the two places WordPress itself checks.
func Locate(root string) (string, bool) {
	for _, dir := range []string{root, filepath.Dir(root)} {
		p := filepath.Join(dir, "wp-config.php")
		if utils.FileExists(p) {
			return p, true
		}
	}
	return "", false
}

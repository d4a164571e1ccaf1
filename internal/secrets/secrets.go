// Package secrets resolves per-site credentials. Credentials live in
// the process environment or in an optional dotenv file; they are never
// written to logs or to the state store.
package secrets

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
)

type Kind string

const (
	KindPassword Kind = "password"
	KindKeyFile  Kind = "key_file"
)

var ErrNotFound = errors.New("credential not found")

// Provider resolves one credential for a site. The site argument is the
// profile name, the user-facing handle.
type Provider interface {
	Resolve(site string, kind Kind) (string, error)
}

// EnvProvider resolves credentials from WPSYNC_<SITE>_PASSWORD and
// WPSYNC_<SITE>_KEY_FILE variables. The process environment wins over
// the dotenv file.
type EnvProvider struct {
	fileVars map[string]string
}

// NewEnvProvider loads the dotenv file at envFile when it exists. A
// missing file is fine; a world-readable one gets a warning.
func NewEnvProvider(envFile string) *EnvProvider {
	p := &EnvProvider{}

	info, err := os.Stat(envFile)
	if err != nil {
		return p
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		slog.Warn("credentials file is readable by other users", "path", envFile, "mode", info.Mode().Perm())
	}

	vars, err := godotenv.Read(envFile)
	if err != nil {
		slog.Warn("failed to read credentials file", "path", envFile, "error", err)
		return p
	}
	p.fileVars = vars
	return p
}

func (p *EnvProvider) Resolve(site string, kind Kind) (string, error) {
	key := EnvKey(site, kind)

	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	if v, ok := p.fileVars[key]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// EnvKey maps a site handle and credential kind to its variable name:
// upper-cased, with every non-alphanumeric run collapsed to "_".
func EnvKey(site string, kind Kind) string {
	var b strings.Builder
	prev := byte('_')
	for i := 0; i < len(site); i++ {
		c := site[i]
		switch {
		case c >= 'a' && c <= 'z':
			c -= 'a' - 'A'
			fallthrough
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
			prev = c
		default:
			if prev != '_' {
				b.WriteByte('_')
				prev = '_'
			}
		}
	}

	suffix := "_PASSWORD"
	if kind == KindKeyFile {
		suffix = "_KEY_FILE"
	}
	return "WPSYNC_" + strings.Trim(b.String(), "_") + suffix
}

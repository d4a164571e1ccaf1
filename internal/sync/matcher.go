// Package sync plans and executes file synchronization between a local
// working copy and a remote tree: push plans from version-control
// diffs, pull plans from remote listings filtered by a closed time
// window, both executed sequentially over an abstract channel.
package sync

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a relative path is excluded from transfer.
// A path is excluded when any rule matches its full slash-relative
// path, or — for rules ending in "/" — any of its path segments equals
// the bare rule name, or the rule matches its final component alone.
// Exclusion is a union; rule order never matters.
type Matcher struct {
	rules     []exclusionRule
	malformed []string
}

type exclusionRule struct {
	pattern string
	dirName string // set for "name/" style rules
	literal bool   // malformed glob, compare as plain string
}

// NewMatcher compiles a rule set. Malformed globs are kept as literal
// string comparisons rather than dropped; they are reported by
// Malformed so callers can surface an advisory.
func NewMatcher(rules []string) *Matcher {
	m := &Matcher{}
	for _, raw := range rules {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		if strings.HasSuffix(trimmed, "/") {
			name := strings.TrimSuffix(trimmed, "/")
			if name != "" {
				m.rules = append(m.rules, exclusionRule{dirName: name})
			}
			continue
		}

		rule := exclusionRule{pattern: trimmed}
		if !doublestar.ValidatePattern(trimmed) {
			rule.literal = true
			m.malformed = append(m.malformed, trimmed)
		}
		m.rules = append(m.rules, rule)
	}
	return m
}

// Malformed returns the rules that failed glob compilation and were
// downgraded to literal comparisons.
func (m *Matcher) Malformed() []string {
	return m.malformed
}

// Excluded reports whether relPath matches any rule. Pure; never
// errors.
func (m *Matcher) Excluded(relPath string) bool {
	relPath = strings.TrimPrefix(path.Clean(strings.ReplaceAll(relPath, "\\", "/")), "/")
	if relPath == "" || relPath == "." {
		return false
	}

	base := path.Base(relPath)
	var segments []string // split lazily, only when a dir rule exists

	for _, rule := range m.rules {
		if rule.dirName != "" {
			if segments == nil {
				segments = strings.Split(relPath, "/")
			}
			for _, seg := range segments {
				if seg == rule.dirName {
					return true
				}
			}
			continue
		}

		if rule.literal {
			if relPath == rule.pattern || base == rule.pattern {
				return true
			}
			continue
		}

		if ok, _ := doublestar.Match(rule.pattern, relPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(rule.pattern, base); ok {
			return true
		}
	}
	return false
}

package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

func DetectContentType(key string) string {
	if isTextLike(key) {
		return "text/plain; charset=utf-8"
	} else if mimeType := mime.TypeByExtension(filepath.Ext(key)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

// isTextLike covers extensions common in a WordPress tree that
// mime.TypeByExtension does not know about.
func isTextLike(key string) bool {
	return strings.HasSuffix(key, ".php") ||
		strings.HasSuffix(key, ".twig") ||
		strings.HasSuffix(key, ".yaml") ||
		strings.HasSuffix(key, ".yml") ||
		strings.HasSuffix(key, ".toml") ||
		strings.HasSuffix(key, ".md") ||
		strings.HasSuffix(key, ".htaccess")
}

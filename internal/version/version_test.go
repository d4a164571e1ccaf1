package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	origVersion, origRevision := Version, Revision
	t.Cleanup(func() { Version, Revision = origVersion, origRevision })

	Version, Revision = "1.2.3", ""
	assert.Equal(t, "1.2.3", Short())

	Revision = "abcdef123456"
	assert.Equal(t, "1.2.3 (abcdef123456)", Short())
}

func TestDetailed(t *testing.T) {
	detailed := Detailed()
	assert.Contains(t, detailed, Version)
	assert.Contains(t, detailed, "go1")
	assert.Contains(t, detailed, "/") // GOOS/GOARCH
}

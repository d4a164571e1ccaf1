package sync

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpLocksOnePerSite(t *testing.T) {
	locks := NewOpLocks(filepath.Join(t.TempDir(), "locks"))

	release, err := locks.Acquire("site-1")
	require.NoError(t, err)

	_, err = locks.Acquire("site-1")
	assert.ErrorIs(t, err, ErrSiteBusy)

	release()

	release2, err := locks.Acquire("site-1")
	require.NoError(t, err)
	release2()
}

func TestOpLocksSitesAreIndependent(t *testing.T) {
	locks := NewOpLocks(filepath.Join(t.TempDir(), "locks"))

	releaseA, err := locks.Acquire("site-a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := locks.Acquire("site-b")
	require.NoError(t, err)
	defer releaseB()
}

func TestOpLocksReleaseIsIdempotent(t *testing.T) {
	locks := NewOpLocks(filepath.Join(t.TempDir(), "locks"))

	release, err := locks.Acquire("site-1")
	require.NoError(t, err)

	release()
	release()

	release2, err := locks.Acquire("site-1")
	require.NoError(t, err)
	release2()
}

func TestOpLocksExcludeAcrossInstances(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")

	first := NewOpLocks(dir)
	second := NewOpLocks(dir)

	release, err := first.Acquire("site-1")
	require.NoError(t, err)
	defer release()

	_, err = second.Acquire("site-1")
	assert.ErrorIs(t, err, ErrSiteBusy, "the file lock holds even across lock registries")
}

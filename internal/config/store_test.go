package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "sites.yaml"))
}

func TestStore_List_MissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)
	sites, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestStore_UpsertGetRemove_Roundtrip(t *testing.T) {
	store := newTestStore(t)

	p := validProfile(t)
	require.NoError(t, store.Upsert(p))

	byName, err := store.Get("staging")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)
	assert.Equal(t, p.Remote.Host, byName.Remote.Host)
	assert.Equal(t, DefaultExcludeRules(), byName.ExcludeRules)

	byID, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "staging", byID.Name)

	require.NoError(t, store.Remove("staging"))
	_, err = store.Get("staging")
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

func TestStore_Upsert_ReplacesById(t *testing.T) {
	store := newTestStore(t)

	p := validProfile(t)
	require.NoError(t, store.Upsert(p))

	p.Remote.Host = "new.example.com"
	require.NoError(t, store.Upsert(p))

	sites, err := store.List()
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "new.example.com", sites[0].Remote.Host)
}

func TestStore_Upsert_RejectsDuplicateName(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Upsert(validProfile(t)))

	dup := validProfile(t)
	err := store.Upsert(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}

func TestStore_Write_PrivatePerms(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	store := newTestStore(t)
	require.NoError(t, store.Upsert(validProfile(t)))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_Remove_Missing(t *testing.T) {
	store := newTestStore(t)
	err := store.Remove("nope")
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

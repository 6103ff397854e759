package datastore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerFileMissingIsEmpty(t *testing.T) {
	f := NewLedgerFile(filepath.Join(t.TempDir(), "admin_updates.json"))
	l, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, l.Added)
	assert.Empty(t, l.Deleted)

	raw, err := f.Raw()
	require.NoError(t, err)
	assert.JSONEq(t, `{"added":[],"deleted":[]}`, string(raw))
}

func TestLedgerFileUpdatePersists(t *testing.T) {
	dir := t.TempDir()
	f := NewLedgerFile(filepath.Join(dir, "admin_updates.json"))

	_, err := f.Update(func(l *model.Ledger) {
		l.Upsert(model.College{ID: "a", Name: "A"})
		l.Tombstone("b")
	})
	require.NoError(t, err)

	reloaded, err := NewLedgerFile(f.Path()).Load()
	require.NoError(t, err)
	require.Len(t, reloaded.Added, 1)
	assert.Equal(t, "a", reloaded.Added[0].ID)
	assert.Equal(t, []string{"b"}, reloaded.Deleted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLedgerFileConcurrentUpdates(t *testing.T) {
	f := NewLedgerFile(filepath.Join(t.TempDir(), "admin_updates.json"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.Update(func(l *model.Ledger) {
				l.Tombstone(string(rune('a' + n)))
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	l, err := f.Load()
	require.NoError(t, err)
	assert.Len(t, l.Deleted, 20)
}

func TestLedgerFileRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "admin_updates.json", `{"added": [`)
	_, err := NewLedgerFile(filepath.Join(dir, "admin_updates.json")).Load()
	assert.Error(t, err)
}

func TestLedgerSemantics(t *testing.T) {
	l := &model.Ledger{}
	l.Tombstone("x")
	l.Tombstone("x")
	assert.Equal(t, []string{"x"}, l.Deleted)

	l.Upsert(model.College{ID: "x", Name: "Back"})
	assert.False(t, l.IsDeleted("x"))
	require.Len(t, l.Added, 1)

	l.Upsert(model.College{ID: "x", Name: "Edited"})
	require.Len(t, l.Added, 1)
	assert.Equal(t, "Edited", l.Added[0].Name)

	base := []model.College{
		{ID: "x", Name: "Disk"},
		{ID: "y", Name: "Y"},
		{ID: "z", Name: "Z"},
	}
	l.Tombstone("z")
	merged := l.Apply(base)
	require.Len(t, merged, 2)
	assert.Equal(t, "Edited", merged[0].Name)
	assert.Equal(t, "Y", merged[1].Name)
	assert.Equal(t, "Disk", base[0].Name)
}

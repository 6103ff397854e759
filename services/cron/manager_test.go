package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWarmer struct {
	calls int
	force []bool
	err   error
}

func (f *fakeWarmer) Hydrate(_ context.Context, force bool) error {
	f.calls++
	f.force = append(f.force, force)
	return f.err
}

type fakeBackup struct {
	calls int
	err   error
}

func (f *fakeBackup) Backup(context.Context) (string, error) {
	f.calls++
	return "ledger/admin_updates-test.json", f.err
}

func TestRegisterJobs(t *testing.T) {
	t.Run("with backups", func(t *testing.T) {
		m := NewCronManager(&fakeWarmer{}, &fakeBackup{}, nil)
		require.NoError(t, m.Start())
		defer m.Stop()
		assert.Len(t, m.cron.Entries(), 2)
	})

	t.Run("without backups", func(t *testing.T) {
		m := NewCronManager(&fakeWarmer{}, nil, nil)
		require.NoError(t, m.Start())
		defer m.Stop()
		assert.Len(t, m.cron.Entries(), 1)
	})
}

func TestWarmCacheDoesNotForce(t *testing.T) {
	w := &fakeWarmer{}
	m := NewCronManager(w, nil, nil)
	m.WarmCache()
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, []bool{false}, w.force)

	w.err = errors.New("redis down")
	assert.NotPanics(t, m.WarmCache)
	assert.Equal(t, 2, w.calls)
}

func TestBackupLedger(t *testing.T) {
	b := &fakeBackup{}
	m := NewCronManager(&fakeWarmer{}, b, nil)
	m.BackupLedger()
	assert.Equal(t, 1, b.calls)

	b.err = errors.New("bucket gone")
	assert.NotPanics(t, m.BackupLedger)
}

package cron

import (
	"context"
	"time"
)

// WarmCache hydrates the cache when no instance has done so within the TTL.
// It is a no-op while the cache is hot.
func (m *CronManager) WarmCache() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	run := m.logJobStart("warm_cache")
	if err := m.warmer.Hydrate(ctx, false); err != nil {
		m.logJobError(run, err)
		return
	}
	m.logJobComplete(run, "cache is hot")
}

// BackupLedger uploads the override ledger to object storage.
func (m *CronManager) BackupLedger() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	run := m.logJobStart("backup_ledger")
	key, err := m.backup.Backup(ctx)
	if err != nil {
		m.logJobError(run, err)
		return
	}
	m.logJobComplete(run, "uploaded "+key)
}

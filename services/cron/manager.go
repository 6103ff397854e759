package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"gorm.io/gorm"
)

// Job schedules, seconds precision.
const (
	WarmCacheSchedule    = "0 */5 * * * *"
	LedgerBackupSchedule = "0 0 2 * * *"
)

// Warmer re-hydrates the shared cache when it has gone cold.
type Warmer interface {
	Hydrate(ctx context.Context, force bool) error
}

// Backuper uploads a ledger snapshot and returns its object key.
type Backuper interface {
	Backup(ctx context.Context) (string, error)
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron   *cron.Cron
	warmer Warmer
	backup Backuper
	// optional; job runs are only logged when a database is configured
	db *gorm.DB
}

// NewCronManager creates a new cron manager. backup and db may be nil.
func NewCronManager(warmer Warmer, backup Backuper, db *gorm.DB) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:   c,
		warmer: warmer,
		backup: backup,
		db:     db,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	logger.Info().Msg("starting cron jobs")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	logger.Info().Int("jobs", len(m.cron.Entries())).Msg("cron jobs started")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (m *CronManager) Stop() {
	logger.Info().Msg("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// Every 5 minutes: hydrate again once the sentinel has expired
	_, err := m.cron.AddFunc(WarmCacheSchedule, func() {
		m.WarmCache()
	})
	if err != nil {
		return err
	}

	// Daily at 2 AM: snapshot the override ledger
	if m.backup != nil {
		_, err = m.cron.AddFunc(LedgerBackupSchedule, func() {
			m.BackupLedger()
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// jobRun tracks one execution for logging.
type jobRun struct {
	name    string
	started time.Time
	log     *model.CronJobLog
}

func (m *CronManager) logJobStart(jobName string) *jobRun {
	run := &jobRun{name: jobName, started: time.Now()}
	logger.Info().Str("job", jobName).Msg("[CRON] starting job")

	if m.db != nil {
		run.log = &model.CronJobLog{
			JobName:   jobName,
			Status:    "running",
			StartedAt: run.started,
		}
		if err := m.db.Create(run.log).Error; err != nil {
			logger.Warn().Err(err).Str("job", jobName).Msg("[CRON] failed to record job start")
			run.log = nil
		}
	}
	return run
}

func (m *CronManager) logJobComplete(run *jobRun, message string) {
	logger.Info().Str("job", run.name).Dur("took", time.Since(run.started)).Msg("[CRON] completed job: " + message)
	m.finish(run, map[string]interface{}{"status": "completed", "message": message})
}

func (m *CronManager) logJobError(run *jobRun, err error) {
	logger.Error().Err(err).Str("job", run.name).Msg("[CRON] job failed")
	m.finish(run, map[string]interface{}{"status": "failed", "error_msg": err.Error()})
}

func (m *CronManager) finish(run *jobRun, updates map[string]interface{}) {
	if m.db == nil || run.log == nil {
		return
	}
	now := time.Now()
	updates["completed_at"] = now
	updates["duration"] = now.Sub(run.started).Milliseconds()
	m.db.Model(run.log).Updates(updates)
}

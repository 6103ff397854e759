package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahilchouksey/college-explorer-api/api"
	"github.com/sahilchouksey/college-explorer-api/config"
	"github.com/sahilchouksey/college-explorer-api/database"
	"github.com/sahilchouksey/college-explorer-api/router"
	"github.com/sahilchouksey/college-explorer-api/services/backup"
	"github.com/sahilchouksey/college-explorer-api/services/cron"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/services/watcher"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

const (
	warmupTimeout   = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	env, err := config.Get()
	if err != nil {
		return err
	}

	logger.Configure(logger.Config{
		Level:  logger.LogLevel(env.LOG_LEVEL),
		Pretty: !env.IsProduction(),
	})

	provider := cache.NewClientProvider(env.REDIS_URL)
	store := datastore.NewStore(provider, datastore.Options{
		DataDir: env.DATA_DIR,
		TTL:     time.Duration(env.CACHE_TTL_SECONDS) * time.Second,
	})

	// Optional Postgres for reviews and the audit log
	gormStore, err := database.StartGORM(env)
	switch {
	case errors.Is(err, database.ErrUnavailable):
		logger.Info().Msg("database not configured; reviews and audit log are disabled")
		gormStore = nil
	case err != nil:
		logger.Error().Err(err).Msg("check whether Postgres is running and the DB_* variables are correct")
		return err
	default:
		if err := gormStore.Init(); err != nil {
			logger.Error().Err(err).Msg("failed to initialize database tables")
			return err
		}
	}

	// Optional ledger backups
	var ledgerBackup *backup.LedgerBackup
	if env.BackupConfigured() {
		spaces, err := backup.NewSpacesClient(backup.SpacesConfig{
			AccessKey: env.DO_SPACES_ACCESS_KEY,
			SecretKey: env.DO_SPACES_SECRET_KEY,
			Bucket:    env.DO_SPACES_BUCKET,
			Region:    env.DO_SPACES_REGION,
			Endpoint:  env.DO_SPACES_ENDPOINT,
		})
		if err != nil {
			return fmt.Errorf("failed to configure ledger backups: %w", err)
		}
		ledgerBackup = backup.NewLedgerBackup(spaces, store.Ledger())
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Warm the cache without holding up the listener; the read path hydrates
	// on demand if this has not finished.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
		defer cancel()
		if err := store.Hydrate(warmCtx, false); err != nil {
			logger.Warn().Err(err).Msg("startup hydration failed; will hydrate on first request")
		}
	}()

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if env.CRON_ENABLED {
		var backuper cron.Backuper
		if ledgerBackup != nil {
			backuper = ledgerBackup
		}
		cronManager = cron.NewCronManager(store, backuper, gormStore.DB())
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			logger.Warn().Err(err).Msg("failed to start cron jobs")
			cronManager = nil
		}
	}

	responses := cache.NewStore(provider)
	var dataWatcher *watcher.DataWatcher
	if env.WATCH_DATA_DIR {
		dataWatcher, err = watcher.NewDataWatcher(env.DATA_DIR, func(ctx context.Context) error {
			if err := store.Invalidate(ctx); err != nil {
				return err
			}
			_, err := responses.PurgeResponses(ctx)
			return err
		})
		if err == nil {
			err = dataWatcher.Start(ctx)
		}
		if err != nil {
			logger.Warn().Err(err).Str("dir", env.DATA_DIR).Msg("data directory watcher disabled")
			dataWatcher = nil
		}
	}

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", env.PORT))
	router.SetupRoutes(server.GetEngine(), router.Dependencies{
		Env:      env,
		Provider: provider,
		Store:    store,
		DB:       gormStore,
		Backup:   ledgerBackup,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Run()
	}()

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(osSignals)

	var runErr error
	select {
	case runErr = <-serverErrors:
	case sig := <-osSignals:
		logger.Info().Str("signal", sig.String()).Msg("received OS signal, initiating shutdown")
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if runErr == nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown failed")
		}
	}
	if dataWatcher != nil {
		dataWatcher.Stop()
	}
	if cronManager != nil {
		cronManager.Stop()
	}
	if gormStore != nil {
		if err := gormStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close database")
		}
	}
	if err := provider.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close redis")
	}

	logger.Info().Msg("shutdown complete")
	return runErr
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sahilchouksey/college-explorer-api/config"
	"github.com/sahilchouksey/college-explorer-api/services/apikey"
	"github.com/sahilchouksey/college-explorer-api/services/backup"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/spf13/cobra"
)

const commandTimeout = 5 * time.Minute

// runtime is the service graph one command works against.
type runtime struct {
	env      *config.EnviornmentVariable
	provider *cache.ClientProvider
	store    *datastore.Store
}

func newRuntime() (*runtime, error) {
	if err := config.LoadENV(); err != nil {
		return nil, err
	}
	env, err := config.Get()
	if err != nil {
		return nil, err
	}
	provider := cache.NewClientProvider(env.REDIS_URL)
	return &runtime{
		env:      env,
		provider: provider,
		store: datastore.NewStore(provider, datastore.Options{
			DataDir: env.DATA_DIR,
			TTL:     time.Duration(env.CACHE_TTL_SECONDS) * time.Second,
		}),
	}, nil
}

func (r *runtime) Close() {
	_ = r.provider.Close()
}

// withRuntime builds the runtime, applies the command timeout and closes
// Redis afterwards.
func withRuntime(fn func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		return fn(ctx, rt, cmd, args)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Maintain the college explorer Redis cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logger.WarnLevel
			if verbose {
				level = logger.DebugLevel
			}
			logger.Configure(logger.Config{Level: level, Pretty: true, Output: cmd.ErrOrStderr()})
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newHydrateCmd(),
		newInvalidateCmd(),
		newFlushCmd(),
		newStatusCmd(),
		newKeygenCmd(),
		newKeysCmd(),
		newBackupCmd(),
	)
	return root
}

func newHydrateCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Load the data directory into Redis if the cache is cold",
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			if err := rt.store.Hydrate(ctx, force); err != nil {
				return err
			}
			return printStatus(ctx, cmd.OutOrStdout(), rt.store)
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "hydrate even when the cache is hot")
	return cmd
}

func newInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate",
		Short: "Drop the college and exam hashes and memoized responses, then hydrate",
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			if err := rt.store.Invalidate(ctx); err != nil {
				return err
			}
			n, err := cache.NewStore(rt.provider).PurgeResponses(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d memoized responses\n", n)
			return printStatus(ctx, cmd.OutOrStdout(), rt.store)
		}),
	}
}

func newFlushCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "FLUSHDB the Redis database and hydrate again",
		Long: `Flush removes every key in the configured Redis database, including API keys,
usage counters and saved user lists, then hydrates colleges and exams from disk.`,
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("flush deletes API keys and user data; pass --yes to continue")
			}
			client, err := rt.provider.Client()
			if err != nil {
				return err
			}
			if err := client.FlushDB(ctx).Err(); err != nil {
				return fmt.Errorf("failed to flush redis: %w", err)
			}
			if err := rt.store.Hydrate(ctx, true); err != nil {
				return err
			}
			return printStatus(ctx, cmd.OutOrStdout(), rt.store)
		}),
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the flush")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show hash sizes, the shared timestamp and the sentinel TTL",
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			return printStatus(ctx, cmd.OutOrStdout(), rt.store)
		}),
	}
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen [tier]",
		Short: "Register a new API key (free, pro or enterprise)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			tier := ""
			if len(args) == 1 {
				tier = args[0]
			}
			key, err := apikey.NewService(rt.provider).Generate(ctx, tier)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key.Key, key.Tier)
			return nil
		}),
	}
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List registered API keys",
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			keys, err := apikey.NewService(rt.provider).List(ctx)
			if err != nil {
				return err
			}
			for _, k := range keys {
				state := "active"
				if !k.Active {
					state = "inactive"
				}
				created := time.UnixMilli(k.Created).UTC().Format(time.RFC3339)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", k.Key, k.Tier, state, created)
			}
			return nil
		}),
	}
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload the override ledger to object storage",
		RunE: withRuntime(func(ctx context.Context, rt *runtime, cmd *cobra.Command, _ []string) error {
			if !rt.env.BackupConfigured() {
				return errors.New("DO_SPACES_* variables are not set")
			}
			spaces, err := backup.NewSpacesClient(backup.SpacesConfig{
				AccessKey: rt.env.DO_SPACES_ACCESS_KEY,
				SecretKey: rt.env.DO_SPACES_SECRET_KEY,
				Bucket:    rt.env.DO_SPACES_BUCKET,
				Region:    rt.env.DO_SPACES_REGION,
				Endpoint:  rt.env.DO_SPACES_ENDPOINT,
			})
			if err != nil {
				return err
			}
			key, err := backup.NewLedgerBackup(spaces, rt.store.Ledger()).Backup(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		}),
	}
}

func printStatus(ctx context.Context, w io.Writer, store *datastore.Store) error {
	status, err := store.Status(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

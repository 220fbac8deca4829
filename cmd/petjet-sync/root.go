package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petjet/petjet-sync/internal/config"
)

// rootOptions holds state shared by every command.
type rootOptions struct {
	v          *viper.Viper
	configFile string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

// commandFlagKeys maps subcommand flags to configuration keys.
var commandFlagKeys = map[string]string{
	"port":          config.KeyPort,
	"concurrency":   config.KeyWorkerConcurrency,
	"functions-url": config.KeyFunctionsURL,
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "petjet-sync",
		Short: "Resumable batch synchronization engine",
		Long: `petjet-sync keeps airline, airport and pet travel policy data in sync.

Every invocation processes one bounded chunk and persists its progress, so a
run survives restarts and can be continued from the returned offset.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Subcommands share keys, so only the running command's flags are bound.
			for name, key := range commandFlagKeys {
				if f := cmd.Flags().Lookup(name); f != nil {
					if err := opts.v.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logCloser != nil {
				_ = opts.logCloser.Close()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("database-url", "", "PostgreSQL connection string (env DATABASE_URL)")
	flags.String("redis-url", "", "Redis URL; enables the Redis queue, lock and progress store (env REDIS_URL)")
	flags.String("progress-backend", "", "progress store: postgres or redis (env PROGRESS_BACKEND)")
	flags.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	flags.String("log-format", "", "text or json (env LOG_FORMAT)")
	flags.String("log-file", "", "also write logs to this rotated file (env LOG_FILE)")
	flags.Int("chunk-size", 0, "items per invocation (env SYNC_CHUNK_SIZE)")

	_ = opts.v.BindPFlag(config.KeyDatabaseURL, flags.Lookup("database-url"))
	_ = opts.v.BindPFlag(config.KeyRedisURL, flags.Lookup("redis-url"))
	_ = opts.v.BindPFlag(config.KeyProgressBackend, flags.Lookup("progress-backend"))
	_ = opts.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = opts.v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = opts.v.BindPFlag(config.KeyLogFile, flags.Lookup("log-file"))
	_ = opts.v.BindPFlag(config.KeyChunkSize, flags.Lookup("chunk-size"))

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newAllCommand(opts))
	cmd.AddCommand(newDriveCommand(opts))
	cmd.AddCommand(newResetCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))

	return cmd
}

// load reads the config file, builds the configuration and the root logger.
func (o *rootOptions) load() error {
	if o.configFile != "" {
		o.v.SetConfigFile(o.configFile)
		if err := o.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := config.Load(o.v)
	if err != nil {
		return err
	}
	logger, closer, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	o.logger = logger
	o.logCloser = closer
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

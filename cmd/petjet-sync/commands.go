package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petjet/petjet-sync/internal/adapters/driven/functions"
	"github.com/petjet/petjet-sync/internal/adapters/driving/http"
	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driving"
	"github.com/petjet/petjet-sync/internal/core/services"
	"github.com/petjet/petjet-sync/internal/worker"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, true, false, false)
		},
	}
	addServerFlags(cmd)
	return cmd
}

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued sync chunks and run the scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
			return run(cmd.Context(), opts, false, true, !noScheduler)
		},
	}
	addWorkerFlags(cmd)
	return cmd
}

func newAllCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run the HTTP API and the worker in one process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
			return run(cmd.Context(), opts, true, true, !noScheduler)
		},
	}
	addServerFlags(cmd)
	addWorkerFlags(cmd)
	return cmd
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 0, "HTTP port (env PORT)")
}

func addWorkerFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "concurrent task processors (env WORKER_CONCURRENCY)")
	cmd.Flags().Bool("no-scheduler", false, "do not run the scheduler in this process")
}

// run starts the API, the worker or both, and blocks until a signal arrives.
func run(parent context.Context, opts *rootOptions, api, work, schedule bool) error {
	ctx, stop := signalContext(parent)
	defer stop()

	cfg, logger := opts.cfg, opts.logger
	logger.Info("petjet-sync starting", "version", version, "api", api, "worker", work)

	a, err := newApp(ctx, cfg, logger, work && schedule)
	if err != nil {
		return err
	}
	defer a.Close()

	// A nil *Scheduler must not become a non-nil interface.
	var scheduler driving.Scheduler
	if a.scheduler != nil {
		scheduler = a.scheduler
	}

	g, ctx := errgroup.WithContext(ctx)

	if work {
		w := worker.NewWorker(worker.WorkerConfig{
			TaskQueue:      a.taskQueue,
			Invoker:        a.syncService,
			Scheduler:      scheduler,
			Retrier:        a.retrier,
			Logger:         logger,
			Concurrency:    cfg.Worker.Concurrency,
			DequeueTimeout: cfg.Worker.DequeueTimeout,
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("stopping worker")
			w.Stop()
			return nil
		})
	}

	if api {
		server := http.NewServer(http.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			Version:        version,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
		}, a.syncService, scheduler, a.checks)
		g.Go(func() error {
			return server.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("petjet-sync stopped")
	return nil
}

func newDriveCommand(opts *rootOptions) *cobra.Command {
	var (
		offset         int
		mode           string
		resumeToken    string
		force          bool
		remote         bool
		maxInvocations int
	)

	cmd := &cobra.Command{
		Use:   "drive <sync-type>",
		Short: "Invoke a sync type repeatedly until the run completes",
		Long: `Invoke a sync type chunk by chunk, following next_offset until the
response no longer asks for continuation.

The sync type may be given by name (airlines, airports, petPolicies,
countryPolicies) or by function name (sync-airlines, analyze-pet-policies).

With --remote the chunks are invoked against a deployment at FUNCTIONS_URL
instead of in this process.

Example:
  petjet-sync drive airports
  petjet-sync drive petPolicies --mode resume
  petjet-sync drive sync-airlines --remote --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			syncType, err := parseSyncType(args[0])
			if err != nil {
				return err
			}
			req := domain.InvocationRequest{
				Mode:        domain.InvocationMode(mode),
				ResumeToken: resumeToken,
				ForceUpdate: force,
			}
			if cmd.Flags().Changed("offset") {
				req.Offset = &offset
			}
			if !req.Mode.Valid() {
				return fmt.Errorf("%w: unsupported mode %q", domain.ErrInvalidInput, mode)
			}

			var invoker driving.SyncInvoker
			if remote {
				client, err := functions.NewClient(functions.Config{
					BaseURL: opts.cfg.Functions.URL,
					APIKey:  opts.cfg.Functions.APIKey,
				})
				if err != nil {
					return err
				}
				invoker = client
			} else {
				a, err := newApp(ctx, opts.cfg, opts.logger, false)
				if err != nil {
					return err
				}
				defer a.Close()
				invoker = a.syncService
			}

			limit := maxInvocations
			if limit == 0 {
				limit = opts.cfg.Sync.MaxInvocations
			}
			driver := services.NewDriver(services.DriverConfig{
				Invoker:        invoker,
				MaxInvocations: limit,
				Logger:         opts.logger,
			})
			summary, runErr := driver.Run(ctx, syncType, req)
			if summary != nil {
				if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			}
			if runErr != nil {
				return &exitError{code: 2, err: runErr}
			}
			if summary != nil && summary.Failed > 0 {
				return &exitError{code: 3, err: fmt.Errorf("%d items failed", summary.Failed)}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "start offset; omitted continues from stored progress")
	cmd.Flags().StringVar(&mode, "mode", "", "invocation mode: clear or resume")
	cmd.Flags().StringVar(&resumeToken, "resume-token", "", "resume token from a previous response")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess items that are still fresh")
	cmd.Flags().BoolVar(&remote, "remote", false, "invoke a remote deployment at FUNCTIONS_URL")
	cmd.Flags().IntVar(&maxInvocations, "max-invocations", 0, "stop after this many chunks (0 = until done)")
	cmd.Flags().String("functions-url", "", "base URL of the remote deployment (env FUNCTIONS_URL)")

	return cmd
}

func newResetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <sync-type>",
		Short: "Delete the progress record so the next invocation starts a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncType, err := parseSyncType(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.syncService.Reset(cmd.Context(), syncType); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "progress for %s reset\n", syncType)
			return nil
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [sync-type]",
		Short: "Print progress records as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				states, err := a.syncService.ListProgress(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), states)
			}

			syncType, err := parseSyncType(args[0])
			if err != nil {
				return err
			}
			state, err := a.syncService.GetProgress(cmd.Context(), syncType)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), state)
		},
	}
}

// parseSyncType accepts a sync type or its function name.
func parseSyncType(s string) (domain.SyncType, error) {
	if t := domain.SyncType(s); t.Valid() {
		return t, nil
	}
	if t, ok := domain.SyncTypeForFunction(s); ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownSyncType, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

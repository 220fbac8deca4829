package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driving"
)

// DriveSummary totals a driven run.
type DriveSummary struct {
	SyncType    domain.SyncType    `json:"sync_type"`
	Invocations int                `json:"invocations"`
	Processed   int                `json:"processed"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Skipped     int                `json:"skipped"`
	Errors      []domain.ItemError `json:"errors,omitempty"`
}

// Driver re-invokes a sync type until no continuation is needed.
type Driver struct {
	invoker        driving.SyncInvoker
	maxInvocations int
	logger         *slog.Logger
}

// DriverConfig holds dependencies for Driver.
type DriverConfig struct {
	Invoker        driving.SyncInvoker
	MaxInvocations int // Optional: stop after this many invocations (0 = unbounded)
	Logger         *slog.Logger
}

// NewDriver creates a continuation driver.
func NewDriver(cfg DriverConfig) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		invoker:        cfg.Invoker,
		maxInvocations: cfg.MaxInvocations,
		logger:         logger,
	}
}

// Run invokes syncType starting with req and follows next_offset until the
// response stops asking for continuation.
//
// A response that asks for continuation without an offset is an integration
// error and returns domain.ErrContinuationContract.
func (d *Driver) Run(ctx context.Context, syncType domain.SyncType, req domain.InvocationRequest) (*DriveSummary, error) {
	summary := &DriveSummary{SyncType: syncType}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if d.maxInvocations > 0 && summary.Invocations >= d.maxInvocations {
			return summary, fmt.Errorf("%s: stopped after %d invocations", syncType, summary.Invocations)
		}

		resp, err := d.invoker.Invoke(ctx, syncType, req)
		summary.Invocations++
		if err != nil {
			return summary, fmt.Errorf("invocation %d of %s: %w", summary.Invocations, syncType, err)
		}
		if !resp.Success {
			return summary, fmt.Errorf("invocation %d of %s failed: %s", summary.Invocations, syncType, resp.Error)
		}

		summary.Succeeded += len(resp.Results)
		summary.Failed += len(resp.Errors)
		summary.Errors = append(summary.Errors, resp.Errors...)
		if resp.ChunkMetrics != nil {
			summary.Processed += resp.ChunkMetrics.Processed
			summary.Skipped += resp.ChunkMetrics.Skipped
		}

		if !resp.Progress.NeedsContinuation {
			d.logger.Info("sync finished",
				"sync_type", syncType,
				"invocations", summary.Invocations,
				"processed", summary.Processed,
				"failed", summary.Failed,
			)
			return summary, nil
		}
		if err := resp.Progress.Validate(); err != nil {
			return summary, fmt.Errorf("invocation %d of %s: %w", summary.Invocations, syncType, err)
		}

		next := *resp.Progress.NextOffset
		d.logger.Debug("continuing sync", "sync_type", syncType, "next_offset", next)
		req = domain.InvocationRequest{
			Offset:      &next,
			ResumeToken: resp.Progress.ResumeToken,
			ForceUpdate: req.ForceUpdate,
		}
	}
}

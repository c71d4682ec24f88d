// Package backfill replays directories of JSON payload dumps through the
// same processor the webhook uses, either once at startup or on a cron.
package backfill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adhocore/gronx"

	"chatsink/pkg/config"
	"chatsink/pkg/ingest"
	"chatsink/pkg/logger"
	"chatsink/pkg/normalize"
)

// Stats summarizes one replay run.
type Stats struct {
	Files   int
	Applied int
	Dropped int
	Skipped int
	Failed  int
}

// RunOnce replays every *.json file in dir in name order. One bad file is
// logged and counted, never aborts the run; replay is idempotent so
// re-running a directory is safe.
func RunOnce(ctx context.Context, proc *ingest.Processor, dir string) (Stats, error) {
	var st Stats
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return st, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Files++
		raw, err := os.ReadFile(p)
		if err != nil {
			logger.Error("backfill_read_failed", "file", p, "error", err)
			st.Failed++
			continue
		}
		res, err := proc.Process(ctx, raw, normalize.ModeBatch)
		if err != nil {
			logger.Error("backfill_file_failed", "file", p, "error", err)
			st.Failed++
			continue
		}
		st.Applied += res.Applied
		st.Dropped += res.Dropped
		st.Skipped += res.Skipped
		logger.Debug("backfill_file_done", "file", p, "applied", res.Applied)
	}
	logger.Info("backfill_run_done", "dir", dir,
		"files", st.Files, "applied", st.Applied, "dropped", st.Dropped,
		"skipped", st.Skipped, "failed", st.Failed)
	return st, nil
}

// Start runs an initial replay and, when a cron expression is configured,
// keeps re-running on schedule. Returns a cancel func for the scheduler.
func Start(ctx context.Context, proc *ingest.Processor, cfg config.BackfillConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("backfill_disabled")
		return func() {}, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backfill enabled but no directory configured")
	}
	if cfg.Cron != "" && !gronx.IsValid(cfg.Cron) {
		logger.Error("backfill_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid backfill cron expression: %s", cfg.Cron)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go func() {
		if _, err := RunOnce(ctx2, proc, cfg.Dir); err != nil {
			logger.Error("backfill_run_error", "error", err)
		}
		if cfg.Cron == "" {
			return
		}
		runScheduler(ctx2, proc, cfg)
	}()
	logger.Info("backfill_started", "dir", cfg.Dir, "cron", cfg.Cron)
	return cancel, nil
}

// runScheduler computes the next cron tick and sleeps until it.
func runScheduler(ctx context.Context, proc *ingest.Processor, cfg config.BackfillConfig) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("backfill_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cfg.Cron, now, false)
		if err != nil {
			logger.Error("backfill_nexttick_failed", "cron", cfg.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if _, err := RunOnce(ctx, proc, cfg.Dir); err != nil {
				logger.Error("backfill_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("backfill_scheduler_stopping")
			return
		}
	}
}

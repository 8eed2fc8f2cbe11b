package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	paymentsApp "github.com/felixgeelhaar/coachpay/internal/payments/application"
	"github.com/robfig/cron/v3"
)

// sweepTimeout bounds a single compliance sweep.
const sweepTimeout = 10 * time.Minute

// Worker runs the background side of coachpay: outbox delivery, the
// scheduled compliance sweep and retention cleanup.
type Worker struct {
	c        *Container
	logger   *slog.Logger
	schedule cron.Schedule
}

// NewWorker validates the sweep schedule and creates a worker over the
// container.
func NewWorker(c *Container) (*Worker, error) {
	schedule, err := cron.ParseStandard(c.Config.ComplianceSweepSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid compliance sweep schedule %q: %w", c.Config.ComplianceSweepSchedule, err)
	}
	return &Worker{
		c:        c,
		logger:   c.Logger.With("component", "worker"),
		schedule: schedule,
	}, nil
}

// Run starts every background job and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.c.Config

	if cfg.OutboxProcessorEnabled {
		w.logger.Info("starting outbox processor",
			"poll_interval", cfg.OutboxPollInterval,
			"batch_size", cfg.OutboxBatchSize,
			"max_retries", cfg.OutboxMaxRetries,
		)
		if err := w.c.OutboxProcessor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start outbox processor: %w", err)
		}
		defer w.c.OutboxProcessor.Stop()
	} else {
		w.logger.Info("outbox processor disabled")
	}

	scheduler := cron.New()
	scheduler.Schedule(w.schedule, cron.FuncJob(func() {
		sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()
		_, _ = w.RunSweep(sweepCtx)
	}))
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()
	w.logger.Info("compliance sweep scheduled", "schedule", cfg.ComplianceSweepSchedule)

	if cfg.WorkerHealthAddr != "" {
		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           w.HealthHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			w.logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				w.logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	cleanupTicker := time.NewTicker(positive(cfg.OutboxCleanupInterval, 24*time.Hour))
	defer cleanupTicker.Stop()
	statsTicker := time.NewTicker(positive(cfg.OutboxStatsInterval, 30*time.Second))
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down worker")
			return nil
		case <-cleanupTicker.C:
			if err := w.Cleanup(ctx); err != nil {
				w.logger.Error("cleanup failed", "error", err)
			}
		case <-statsTicker.C:
			w.logStats()
		}
	}
}

// RunSweep runs one compliance sweep.
func (w *Worker) RunSweep(ctx context.Context) (paymentsApp.SweepReport, error) {
	start := time.Now()
	report, err := w.c.Sweep.Run(ctx)
	if err != nil {
		w.logger.Error("compliance sweep failed", "error", err)
		return report, err
	}
	w.logger.Info("compliance sweep completed",
		"synced", report.Synced,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// Cleanup deletes published outbox messages and ledger rows past their
// retention.
func (w *Worker) Cleanup(ctx context.Context) error {
	cfg := w.c.Config

	cutoff := time.Now().AddDate(0, 0, -cfg.OutboxRetentionDays)
	deleted, err := w.c.OutboxRepo.DeleteOld(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbox cleanup: %w", err)
	}
	if deleted > 0 {
		w.logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
	}

	if cfg.LedgerRetention <= 0 {
		return nil
	}
	pruned, err := w.c.Deduplicator.Prune(ctx, cfg.LedgerRetention)
	if err != nil {
		return fmt.Errorf("ledger prune: %w", err)
	}
	if pruned > 0 {
		w.logger.Info("event ledger pruned", "deleted", pruned, "retention", cfg.LedgerRetention)
	}
	return nil
}

// HealthHandler serves /healthz with processor stats and /readyz with a
// database ping.
func (w *Worker) HealthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		stats := w.c.OutboxProcessor.GetStats()
		response := map[string]any{
			"status":            "ok",
			"running":           stats.IsRunning,
			"published":         stats.PublishedCount,
			"failed":            stats.FailedCount,
			"dead":              stats.DeadCount,
			"last_processed_at": stats.LastProcessedAt,
			"last_error_at":     stats.LastErrorAt,
			"last_error":        stats.LastError,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(response)
	})

	mux.HandleFunc("/readyz", func(rw http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		rw.Header().Set("Content-Type", "application/json")
		if err := w.c.DBConn.Ping(checkCtx); err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"status": "ready"})
	})
	return mux
}

func (w *Worker) logStats() {
	stats := w.c.OutboxProcessor.GetStats()
	w.logger.Info("outbox stats",
		"running", stats.IsRunning,
		"published", stats.PublishedCount,
		"failed", stats.FailedCount,
		"dead", stats.DeadCount,
		"lag_seconds", stats.LagSeconds,
		"oldest_message_at", stats.OldestMessageAt,
		"last_processed_at", stats.LastProcessedAt,
		"last_error_at", stats.LastErrorAt,
		"last_error", stats.LastError,
	)
}

func positive(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/observability/metrics"
	"github.com/surelog/surelog/internal/reliability/retry"
	"github.com/surelog/surelog/internal/session"
)

// ReconcileWorker periodically repairs drift between the denormalized
// user_count column on tenants and the actual membership edges, and refreshes
// the active-session gauge.
type ReconcileWorker struct {
	tenantRepository domain.TenantRepository
	sessions         *session.Store
	logger           *slog.Logger
	interval         time.Duration
	retryConfig      *retry.Config
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(
	tenantRepo domain.TenantRepository,
	sessions *session.Store,
	logger *slog.Logger,
	interval time.Duration,
) *ReconcileWorker {
	return &ReconcileWorker{
		tenantRepository: tenantRepo,
		sessions:         sessions,
		logger:           logger,
		interval:         interval,
		retryConfig:      retry.DefaultConfig(),
	}
}

// Start begins the reconcile loop. It runs until the context is cancelled.
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reconcile worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			w.reconcileUserCounts(ctx)
			w.refreshSessionGauge(ctx)
		}
	}
}

// reconcileUserCounts rewrites user_count for every tenant whose stored
// count disagrees with its membership edges.
func (w *ReconcileWorker) reconcileUserCounts(ctx context.Context) {
	repaired, err := retry.Do(ctx, w.retryConfig, w.logger, "reconcile_user_counts",
		func(ctx context.Context) (int64, error) {
			return w.tenantRepository.ReconcileUserCounts(ctx)
		})
	if err != nil {
		w.logger.Error("user count reconciliation failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if repaired > 0 {
		metrics.ObserveUserCountRepairs(repaired)
		w.logger.Warn("repaired drifted user counts",
			slog.Int64("tenants_repaired", repaired),
		)
	}
}

// refreshSessionGauge republishes the number of live sessions. The store may
// be degraded; a failed count leaves the gauge at its last value.
func (w *ReconcileWorker) refreshSessionGauge(ctx context.Context) {
	count, err := w.sessions.Count(ctx)
	if err != nil {
		w.logger.Debug("session count unavailable",
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.SetActiveSessions(count)
}

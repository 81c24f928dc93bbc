package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/propertyhub/maintenance-service/internal/repository"
)

// DebtReconciler re-applies accrual rows whose inline application
// failed. Apply is idempotent (it claims the row inside its own
// transaction), so overlapping runs and inline racers are harmless.
type DebtReconciler struct {
	debts    repository.DebtRepository
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

// NewDebtReconciler constructs the reconciler.
func NewDebtReconciler(debts repository.DebtRepository, interval time.Duration, logger *zap.Logger) *DebtReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DebtReconciler{debts: debts, interval: interval, batch: 100, logger: logger}
}

// Run blocks until ctx is done, reconciling on every tick.
func (w *DebtReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.ReconcileOnce(ctx); err != nil {
				w.logger.Warn("debt reconciliation pass failed", zap.Error(err))
			} else if n > 0 {
				w.logger.Info("debt accruals reconciled", zap.Int("count", n))
			}
		}
	}
}

// ReconcileOnce applies one batch of unapplied accruals and returns how
// many were posted.
func (w *DebtReconciler) ReconcileOnce(ctx context.Context) (int, error) {
	pending, err := w.debts.ListUnapplied(ctx, w.batch)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, accrual := range pending {
		ok, err := w.debts.Apply(ctx, accrual.IssueID)
		if err != nil {
			w.logger.Warn("accrual apply failed",
				zap.String("issue_id", accrual.IssueID),
				zap.String("tenant_id", accrual.TenantID),
				zap.Error(err))
			continue
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

package workers

import (
	"context"
	"time"

	"pocketlegal-backend/internal/common/logger"
	"pocketlegal-backend/internal/features/payment/service"
)

// Reconciler periodically settles pending transactions and repairs missing
// access grants. It is the only writer besides the purchase orchestrator and
// only moves pending rows to a terminal status or adds idempotent grants.
type Reconciler struct {
	payments     service.PaymentService
	interval     time.Duration
	abandonAfter time.Duration
}

func NewReconciler(payments service.PaymentService, interval, abandonAfter time.Duration) *Reconciler {
	return &Reconciler{
		payments:     payments,
		interval:     interval,
		abandonAfter: abandonAfter,
	}
}

// Start blocks until ctx is cancelled. Run it in its own goroutine.
func (w *Reconciler) Start(ctx context.Context) {
	log := logger.With("reconciler")
	log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping payment reconciler")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Reconciler) runOnce(ctx context.Context) {
	log := logger.With("reconciler")

	if err := w.payments.ReconcilePending(ctx, w.abandonAfter); err != nil {
		log.Error().Err(err).Msg("reconcile pass failed")
	}
	if err := w.payments.RepairGrants(ctx); err != nil {
		log.Error().Err(err).Msg("grant repair pass failed")
	}
}

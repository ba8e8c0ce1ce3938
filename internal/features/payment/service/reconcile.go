package service

import (
	"context"
	"errors"
	"time"

	"pocketlegal-backend/internal/common/logger"
	"pocketlegal-backend/internal/features/payment/models"
	"pocketlegal-backend/internal/platform/wallet"
)

// ReconcilePending settles transactions left pending by a crash or a
// timed-out submission. A pending row with a recorded reference is settled
// by querying the chain; one without a reference is expired to failed after
// the abandon window. The payment call itself is never replayed.
func (s *paymentService) ReconcilePending(ctx context.Context, abandonAfter time.Duration) error {
	pending, err := s.transactions.ListPendingOlderThan(ctx, 0)
	if err != nil {
		return err
	}

	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		if tx.TxHash != "" {
			s.settleByReceipt(ctx, tx)
			continue
		}

		if time.Since(tx.CreatedAt) > abandonAfter {
			if err := s.transactions.MarkFailed(ctx, tx.ID, "abandoned"); err != nil {
				logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to expire abandoned transaction")
				continue
			}
			logger.Info().Str("transaction_id", tx.ID).Msg("expired abandoned pending transaction")
		}
	}

	return nil
}

func (s *paymentService) settleByReceipt(ctx context.Context, tx *models.Transaction) {
	ok, err := s.wallet.VerifyPayment(ctx, tx.TxHash, tx.AmountCents, s.opts.RecipientAddress)
	if err != nil {
		// A reverted or mismatched transfer is a definitive failure; an RPC
		// error just means we look again next tick.
		if !errors.Is(err, wallet.ErrPaymentInvalid) {
			logger.Warn().Err(err).Str("transaction_id", tx.ID).Msg("receipt check failed, will retry")
			return
		}
		if markErr := s.transactions.MarkFailed(ctx, tx.ID, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Str("transaction_id", tx.ID).Msg("failed to mark reconciled transaction failed")
			return
		}
		logger.Info().Str("transaction_id", tx.ID).Str("tx_hash", tx.TxHash).Msg("reconciled pending transaction to failed")
		return
	}
	if !ok {
		// Not yet confirmed.
		return
	}

	if err := s.transactions.MarkCompleted(ctx, tx.ID, tx.TxHash); err != nil {
		logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to complete reconciled transaction")
		return
	}
	if err := s.GrantAccess(ctx, tx.UserID, tx.ID, tx.Item()); err != nil {
		logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to grant access for reconciled transaction")
		return
	}

	logger.Info().
		Str("transaction_id", tx.ID).
		Str("tx_hash", tx.TxHash).
		Msg("reconciled pending transaction to completed")
}

// RepairGrants re-runs the grant step for completed transactions whose
// grant creation was interrupted. The upsert is idempotent, so repeated
// repairs are harmless and the user is never re-charged.
func (s *paymentService) RepairGrants(ctx context.Context) error {
	missing, err := s.transactions.ListCompletedWithoutGrant(ctx)
	if err != nil {
		return err
	}

	for _, tx := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.GrantAccess(ctx, tx.UserID, tx.ID, tx.Item()); err != nil {
			logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to repair missing access grant")
			continue
		}
		logger.Info().Str("transaction_id", tx.ID).Msg("repaired missing access grant")
	}

	return nil
}

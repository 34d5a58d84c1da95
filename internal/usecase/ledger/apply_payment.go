package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	txndto "github.com/finlane/ledger-service/internal/usecase/dto/transaction"
)

// ApplyPayment credits a confirmed settlement amount against an order. It is
// idempotent under at-least-once delivery: once a row is fully paid, every
// further report is a no-op, so duplicate settlement confirmations can never
// double-credit downstream accounts. Concurrent reports for the same order
// are serialized by the version check; on conflict the whole read-compute-
// write cycle is re-run against the fresh row.
func (uc *DefaultLedgerUsecase) ApplyPayment(ctx context.Context, orderID string, settledAmount float64) (*txndto.ApplyPaymentOutput, error) {
	if settledAmount <= 0 {
		return nil, fmt.Errorf("settled amount must be positive, got %g", settledAmount)
	}

	for attempt := 1; ; attempt++ {
		var txn *domain.Transaction
		if err := uc.Access.Read(ctx, "apply_payment:lookup", func(ctx context.Context) error {
			var err error
			txn, err = uc.Repo.GetByOrderID(ctx, orderID)
			return err
		}); err != nil {
			return nil, err
		}

		if txn.Status == domain.StatusFailed || txn.Status == domain.StatusCanceled {
			if uc.Metrics != nil {
				uc.Metrics.PaymentsAppliedTotal.WithLabelValues("terminal_conflict").Inc()
			}
			return nil, fmt.Errorf("%w: order %s is %s", domain.ErrTerminalState, orderID, txn.Status)
		}

		if txn.IsComplete() || txn.Status == domain.StatusCompleted {
			if uc.Metrics != nil {
				uc.Metrics.PaymentsAppliedTotal.WithLabelValues("already_complete").Inc()
			}
			return &txndto.ApplyPaymentOutput{
				AlreadyComplete: true,
				Transaction:     txn,
			}, nil
		}

		oldStatus := txn.Status
		newPaid := txn.PaidAmount + settledAmount
		newUnpaid := txn.Amount - newPaid
		if newUnpaid < 0 {
			newUnpaid = 0
		}
		isComplete := newPaid >= txn.Amount

		txn.PaidAmount = newPaid
		txn.UnpaidAmount = newUnpaid
		if isComplete {
			txn.Status = domain.StatusCompleted
		}
		now := time.Now()
		txn.LastPaymentAt = &now

		err := uc.Access.Write(ctx, "apply_payment:commit", func(ctx context.Context) error {
			return uc.Repo.UpdateChecked(ctx, txn)
		})
		if errors.Is(err, domain.ErrVersionConflict) {
			if uc.Metrics != nil {
				uc.Metrics.VersionConflictsTotal.Inc()
			}
			if attempt >= uc.opts.ApplyMaxAttempts {
				return nil, fmt.Errorf("apply payment for order %s: %w after %d attempts", orderID, err, attempt)
			}
			slog.Warn("payment application conflicted, re-reading", "order_id", orderID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		uc.invalidateFor(txn, oldStatus, txn.Status)
		if uc.Metrics != nil {
			uc.Metrics.PaymentsAppliedTotal.WithLabelValues("applied").Inc()
			uc.Metrics.PaymentsAppliedAmountTotal.WithLabelValues(string(txn.Type)).Add(settledAmount)
		}

		if isComplete {
			// Completion side effects run after the ledger write commits and
			// are best-effort; their failure never rolls the payment back.
			uc.runCompletionSideEffectsAsync(txn)
		}

		return &txndto.ApplyPaymentOutput{
			Applied:     true,
			Completed:   isComplete,
			Transaction: txn,
		}, nil
	}
}

func (uc *DefaultLedgerUsecase) runCompletionSideEffectsAsync(txn *domain.Transaction) {
	snapshot := *txn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		uc.completionSideEffects(ctx, &snapshot)
	}()
}

// completionSideEffects credits/debits the counterpart accounts, marks the
// row eligible for callback delivery, and hands the event to the dispatcher
// queue. Every step is logged on failure and the rest still run.
func (uc *DefaultLedgerUsecase) completionSideEffects(ctx context.Context, txn *domain.Transaction) {
	if uc.Accounts != nil {
		if txn.PositiveAccount != "" {
			if err := uc.Accounts.CreditBalance(ctx, txn.PositiveAccount, txn.Amount); err != nil {
				slog.Error("failed to credit account on completion",
					"order_id", txn.OrderID, "account", txn.PositiveAccount, "error", err.Error())
			}
		}
		if txn.NegativeAccount != "" {
			if err := uc.Accounts.DebitBalance(ctx, txn.NegativeAccount, txn.Amount); err != nil {
				slog.Error("failed to debit account on completion",
					"order_id", txn.OrderID, "account", txn.NegativeAccount, "error", err.Error())
			}
		}
	}

	uc.markCallbackPending(ctx, txn)

	if uc.Metrics != nil {
		uc.Metrics.TransactionsCompletedTotal.WithLabelValues(string(txn.Type)).Inc()
	}
	uc.publishEvent(txn)
}

// markCallbackPending flips the tri-state notification flag to "delivery
// pending" so the external dispatcher picks the row up. Retried through the
// same version check as any other write.
func (uc *DefaultLedgerUsecase) markCallbackPending(ctx context.Context, txn *domain.Transaction) {
	for attempt := 1; attempt <= uc.opts.ApplyMaxAttempts; attempt++ {
		pending := false
		txn.CallbackNotified = &pending
		err := uc.Repo.UpdateChecked(ctx, txn)
		if err == nil {
			return
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			fresh, readErr := uc.Repo.GetByID(ctx, txn.ID)
			if readErr != nil {
				slog.Error("failed to re-read transaction for callback marking",
					"order_id", txn.OrderID, "error", readErr.Error())
				return
			}
			if fresh.CallbackNotified != nil {
				return
			}
			*txn = *fresh
			continue
		}
		slog.Error("failed to mark transaction for callback delivery",
			"order_id", txn.OrderID, "error", err.Error())
		return
	}
}

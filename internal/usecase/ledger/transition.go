package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finlane/ledger-service/internal/domain"
)

// Transition moves a transaction to target and runs the side effects the
// state machine attaches to the move:
//
//	pending|processing -> completed   credit/debit accounts, mark callback
//	pending|processing -> failed      release payout reservation, mark callback
//	pending (withdraw) -> canceled    release payout reservation, mark callback
//	processing         -> pending     none (expiry demotion)
//	pending            -> processing  re-register deposit expiry
//
// Terminal states have no outgoing transitions. A transition into the
// current status returns the row unchanged together with ErrNoOpTransition,
// which callers treat as success.
func (uc *DefaultLedgerUsecase) Transition(ctx context.Context, recordID string, target domain.TransactionStatus) (*domain.Transaction, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, target)
	}

	for attempt := 1; ; attempt++ {
		var txn *domain.Transaction
		if err := uc.Access.Read(ctx, "transition:lookup", func(ctx context.Context) error {
			var err error
			txn, err = uc.Repo.GetByID(ctx, recordID)
			return err
		}); err != nil {
			return nil, err
		}

		if txn.Status == target {
			return txn, domain.ErrNoOpTransition
		}

		if err := uc.checkTransition(txn, target); err != nil {
			if uc.Metrics != nil {
				reason := "invalid"
				if errors.Is(err, domain.ErrTerminalState) {
					reason = "terminal"
				}
				uc.Metrics.TransitionErrorsTotal.WithLabelValues(reason).Inc()
			}
			return nil, err
		}

		oldStatus := txn.Status
		txn.Status = target
		if target == domain.StatusCompleted {
			// Manual override settles the full amount.
			txn.PaidAmount = txn.Amount
			txn.UnpaidAmount = 0
		}

		err := uc.Access.Write(ctx, "transition:commit", func(ctx context.Context) error {
			return uc.Repo.UpdateChecked(ctx, txn)
		})
		if errors.Is(err, domain.ErrVersionConflict) {
			if uc.Metrics != nil {
				uc.Metrics.VersionConflictsTotal.Inc()
			}
			if attempt >= uc.opts.ApplyMaxAttempts {
				return nil, fmt.Errorf("transition of %s to %s: %w after %d attempts", recordID, target, err, attempt)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		uc.invalidateFor(txn, oldStatus, target)
		if uc.Metrics != nil {
			uc.Metrics.TransitionsTotal.WithLabelValues(string(oldStatus), string(target)).Inc()
		}

		uc.runTransitionSideEffects(ctx, txn, oldStatus)

		return txn, nil
	}
}

func (uc *DefaultLedgerUsecase) checkTransition(txn *domain.Transaction, target domain.TransactionStatus) error {
	if txn.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", domain.ErrTerminalState, txn.OrderID, txn.Status)
	}

	switch target {
	case domain.StatusCompleted, domain.StatusFailed:
		return nil
	case domain.StatusCanceled:
		if txn.Status == domain.StatusPending && txn.Type == domain.TypeWithdraw {
			return nil
		}
		return fmt.Errorf("%w: only pending withdrawals can be canceled, %s is a %s %s",
			domain.ErrInvalidTransition, txn.OrderID, txn.Status, txn.Type)
	case domain.StatusPending:
		if txn.Status == domain.StatusProcessing {
			return nil
		}
	case domain.StatusProcessing:
		if txn.Status == domain.StatusPending {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, txn.Status, target)
}

func (uc *DefaultLedgerUsecase) runTransitionSideEffects(ctx context.Context, txn *domain.Transaction, oldStatus domain.TransactionStatus) {
	switch txn.Status {
	case domain.StatusCompleted:
		uc.completionSideEffects(ctx, txn)

	case domain.StatusFailed, domain.StatusCanceled:
		if txn.Type == domain.TypeWithdraw && oldStatus == domain.StatusPending {
			uc.releaseReservation(ctx, txn)
		}
		uc.markCallbackPending(ctx, txn)
		uc.publishEvent(txn)

	case domain.StatusProcessing:
		if txn.Type == domain.TypeDeposit {
			uc.scheduleExpiry(ctx, txn)
		}
	}
}

func (uc *DefaultLedgerUsecase) releaseReservation(ctx context.Context, txn *domain.Transaction) {
	if uc.Accounts == nil || txn.NegativeAccount == "" {
		return
	}
	if err := uc.Accounts.ReleaseReserved(ctx, txn.NegativeAccount, txn.Amount); err != nil {
		slog.Error("failed to release payout reservation",
			"order_id", txn.OrderID, "account", txn.NegativeAccount, "error", err.Error())
	}
}

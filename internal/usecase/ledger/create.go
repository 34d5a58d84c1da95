package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	txndto "github.com/finlane/ledger-service/internal/usecase/dto/transaction"
	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
)

// CreateTransaction opens a ledger row. Deposits start processing inside a
// payment window and get registered with the expiry scheduler; withdrawals
// start pending with the payout amount reserved on the debited account.
func (uc *DefaultLedgerUsecase) CreateTransaction(ctx context.Context, input *txndto.CreateTransactionInput) (*domain.Transaction, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("unknown transaction type: %q", input.Type)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %g", input.Amount)
	}

	if input.MerchantTxID != "" {
		existing, err := uc.Repo.GetByMerchantTxID(ctx, input.MerchantTxID)
		if err == nil && existing != nil {
			return nil, domain.ErrDuplicateOrder
		}
	}

	orderIDGen, err := nanoid.Standard(15)
	if err != nil {
		return nil, fmt.Errorf("failed to init order id generator: %w", err)
	}

	initialStatus := domain.StatusPending
	if input.Type == domain.TypeDeposit {
		initialStatus = domain.StatusProcessing
	}

	txn := &domain.Transaction{
		ID:              uuid.New().String(),
		OrderID:         orderIDGen(),
		MerchantTxID:    input.MerchantTxID,
		Type:            input.Type,
		Status:          initialStatus,
		Amount:          input.Amount,
		PaidAmount:      0,
		UnpaidAmount:    input.Amount,
		PositiveAccount: input.PositiveAccount,
		NegativeAccount: input.NegativeAccount,
		BankID:          input.BankID,
		QRCode:          input.QRCode,
		CallbackURL:     input.CallbackURL,
		SuccessURL:      input.SuccessURL,
		FailedURL:       input.FailedURL,
		CanceledURL:     input.CanceledURL,
		CreatedAt:       time.Now(),
	}

	if input.Type == domain.TypeWithdraw && uc.Accounts != nil && txn.NegativeAccount != "" {
		if err := uc.Accounts.ReserveBalance(ctx, txn.NegativeAccount, txn.Amount); err != nil {
			return nil, fmt.Errorf("failed to reserve payout balance: %w", err)
		}
	}

	if err := uc.Access.Write(ctx, "create_transaction:insert", func(ctx context.Context) error {
		return uc.Repo.Create(ctx, txn)
	}); err != nil {
		if input.Type == domain.TypeWithdraw && uc.Accounts != nil && txn.NegativeAccount != "" {
			if relErr := uc.Accounts.ReleaseReserved(ctx, txn.NegativeAccount, txn.Amount); relErr != nil {
				slog.Error("failed to release reservation after create failure",
					"order_id", txn.OrderID, "error", relErr.Error())
			}
		}
		return nil, err
	}

	if txn.Type == domain.TypeDeposit && txn.Status == domain.StatusProcessing {
		uc.scheduleExpiry(ctx, txn)
	}

	uc.invalidateFor(txn, txn.Status)
	if uc.Metrics != nil {
		uc.Metrics.TransactionsCreatedTotal.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	}

	uc.publishEvent(txn)

	return txn, nil
}

// scheduleExpiry is fire-and-forget: a lost registration is caught by the
// periodic sweep anyway.
func (uc *DefaultLedgerUsecase) scheduleExpiry(ctx context.Context, txn *domain.Transaction) {
	if uc.Scheduler == nil {
		return
	}
	if err := uc.Scheduler.Schedule(ctx, txn.ID, txn.OrderID, txn.CreatedAt); err != nil {
		slog.Error("failed to register expiry job", "order_id", txn.OrderID, "error", err.Error())
	}
}

func (uc *DefaultLedgerUsecase) publishEvent(txn *domain.Transaction) {
	if uc.Publisher == nil {
		return
	}
	event := domain.TransactionEvent{
		TransactionID: txn.ID,
		OrderID:       txn.OrderID,
		MerchantTxID:  txn.MerchantTxID,
		Type:          string(txn.Type),
		Status:        string(txn.Status),
		Amount:        txn.Amount,
		PaidAmount:    txn.PaidAmount,
		CallbackURL:   txn.CallbackURL,
	}
	go func() {
		if err := uc.Publisher.PublishTransaction(event); err != nil {
			slog.Error("failed to publish transaction event",
				"order_id", event.OrderID, "status", event.Status, "error", err.Error())
		}
	}()
}

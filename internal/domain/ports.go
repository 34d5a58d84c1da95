package domain

import (
	"context"
	"time"
)

// AccountLedger is the external account balance service. Completion credits
// and debits, cancellation of a pending withdrawal releases its reservation.
type AccountLedger interface {
	CreditBalance(ctx context.Context, accountID string, amount float64) error
	DebitBalance(ctx context.Context, accountID string, amount float64) error
	ReserveBalance(ctx context.Context, accountID string, amount float64) error
	ReleaseReserved(ctx context.Context, accountID string, amount float64) error
}

// ExpiryScheduler registers a deposit order with the external expiry job
// scheduler. Fire-and-forget: registration failures are logged, not fatal.
type ExpiryScheduler interface {
	Schedule(ctx context.Context, recordID, orderID string, createdAt time.Time) error
}

// TransactionEvent is published on every lifecycle change. The external
// notification dispatcher consumes these and delivers merchant callbacks.
type TransactionEvent struct {
	TransactionID string  `json:"transaction_id"`
	OrderID       string  `json:"order_id"`
	MerchantTxID  string  `json:"merchant_tx_id,omitempty"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	PaidAmount    float64 `json:"paid_amount"`
	CallbackURL   string  `json:"callback_url,omitempty"`
}

type EventPublisher interface {
	PublishTransaction(event TransactionEvent) error
}

package domain

import "time"

type TransactionType string

const (
	TypeDeposit  TransactionType = "deposit"
	TypeWithdraw TransactionType = "withdraw"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusCanceled   TransactionStatus = "canceled"
)

// Transaction is one ledger row: a deposit or withdrawal order tracked from
// creation to its terminal state. Amount and Type are immutable after
// creation; PaidAmount + UnpaidAmount always equals Amount.
type Transaction struct {
	ID           string
	OrderID      string
	MerchantTxID string

	Type   TransactionType
	Status TransactionStatus

	Amount       float64
	PaidAmount   float64
	UnpaidAmount float64

	PositiveAccount string
	NegativeAccount string

	BankID string
	QRCode string

	CallbackURL string
	SuccessURL  string
	FailedURL   string
	CanceledURL string

	// nil = never eligible, false = delivery pending, true = delivered.
	CallbackNotified *bool

	// Optimistic concurrency token, bumped on every committed write.
	Version int64

	LastPaymentAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == TypeDeposit || t == TypeWithdraw
}

func (t *Transaction) IsComplete() bool {
	return t.PaidAmount >= t.Amount
}

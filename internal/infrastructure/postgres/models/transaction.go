package models

import (
	"time"

	"github.com/finlane/ledger-service/internal/domain"
)

type TransactionModel struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	OrderID      string `gorm:"uniqueIndex:idx_order_id"`
	MerchantTxID string `gorm:"index:idx_merchant_tx_id"`

	Type   domain.TransactionType   `gorm:"index:idx_type"`
	Status domain.TransactionStatus `gorm:"index:idx_status_created"`

	Amount       float64
	PaidAmount   float64
	UnpaidAmount float64

	PositiveAccount string `gorm:"index:idx_positive_account"`
	NegativeAccount string `gorm:"index:idx_negative_account"`

	BankID string
	QRCode string

	CallbackURL string
	SuccessURL  string
	FailedURL   string
	CanceledURL string

	CallbackNotified *bool

	Version int64 `gorm:"not null;default:0"`

	LastPaymentAt *time.Time
	CreatedAt     time.Time `gorm:"index:idx_status_created;index:idx_created_at"`
	UpdatedAt     time.Time
}

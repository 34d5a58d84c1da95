package transaction

import (
	"github.com/finlane/ledger-service/internal/domain"
)

type CreateTransactionInput struct {
	MerchantTxID    string
	Type            domain.TransactionType
	Amount          float64
	PositiveAccount string
	NegativeAccount string
	BankID          string
	QRCode          string
	CallbackURL     string
	SuccessURL      string
	FailedURL       string
	CanceledURL     string
}

type ListTransactionsInput struct {
	Filter    domain.TransactionFilter
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

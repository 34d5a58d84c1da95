package transaction

import "github.com/finlane/ledger-service/internal/domain"

type ApplyPaymentOutput struct {
	Applied         bool
	AlreadyComplete bool
	Completed       bool
	Transaction     *domain.Transaction
}

type SweepReport struct {
	Processed int
	Failed    int
	Errors    []string
}

type ExportReport struct {
	Mode    string
	Rows    int
	Batches int
}

type Pagination struct {
	CurrentPage  int
	TotalPages   int
	TotalItems   int64
	ItemsPerPage int
}

type ListTransactionsOutput struct {
	Transactions []*domain.Transaction
	Pagination   Pagination
}

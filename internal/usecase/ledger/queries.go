package ledger

import (
	"context"

	"github.com/finlane/ledger-service/internal/domain"
	txndto "github.com/finlane/ledger-service/internal/usecase/dto/transaction"
)

func (uc *DefaultLedgerUsecase) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := uc.Access.Read(ctx, "queries:get_by_order_id", func(ctx context.Context) error {
		var err error
		txn, err = uc.Repo.GetByOrderID(ctx, orderID)
		return err
	})
	return txn, err
}

func (uc *DefaultLedgerUsecase) ListTransactions(ctx context.Context, input *txndto.ListTransactionsInput) (*txndto.ListTransactionsOutput, error) {
	if input.Page < 1 {
		input.Page = 1
	}
	if input.Limit < 1 || input.Limit > 100 {
		input.Limit = 50
	}

	var (
		txns  []*domain.Transaction
		total int64
	)
	if err := uc.Access.Read(ctx, "queries:list", func(ctx context.Context) error {
		var err error
		txns, total, err = uc.Repo.List(ctx, input.Filter, input.SortBy, input.SortOrder, input.Page, input.Limit)
		return err
	}); err != nil {
		return nil, err
	}

	totalPages := int(total) / input.Limit
	if int(total)%input.Limit > 0 {
		totalPages++
	}

	return &txndto.ListTransactionsOutput{
		Transactions: txns,
		Pagination: txndto.Pagination{
			CurrentPage:  input.Page,
			TotalPages:   totalPages,
			TotalItems:   total,
			ItemsPerPage: input.Limit,
		},
	}, nil
}

package domain

import (
	"context"
	"time"
)

// TransactionFilter narrows enumeration queries. Zero values mean "any".
type TransactionFilter struct {
	Type            TransactionType
	Status          TransactionStatus
	PositiveAccount string
	NegativeAccount string
	BankID          string
	CreatedFrom     time.Time
	CreatedTo       time.Time
	AmountMin       float64
	AmountMax       float64
}

// CursorKey is both the id-only projection the counting walk scans and the
// cursor position itself. CreatedAt alone is not strictly ordered (rows
// created in the same store-precision instant tie), so the id breaks ties
// and the pair forms the strictly-ordered paging key.
type CursorKey struct {
	ID        string
	CreatedAt time.Time
}

func (k CursorKey) IsZero() bool {
	return k.ID == "" && k.CreatedAt.IsZero()
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*Transaction, error)
	GetByMerchantTxID(ctx context.Context, merchantTxID string) (*Transaction, error)

	// UpdateChecked commits txn only if the stored version still matches
	// txn.Version, then bumps it. Returns ErrVersionConflict otherwise.
	UpdateChecked(ctx context.Context, txn *Transaction) error

	FindExpiredProcessing(ctx context.Context, txnType TransactionType, cutoff time.Time, limit int) ([]*Transaction, error)

	List(ctx context.Context, filter TransactionFilter, sortBy, sortOrder string, page, limit int) ([]*Transaction, int64, error)

	// CursorKeys returns up to limit keys matching filter that sort strictly
	// after the cursor in (created_at DESC, id DESC) order. A zero cursor
	// means "from the top".
	CursorKeys(ctx context.Context, filter TransactionFilter, after CursorKey, limit int) ([]CursorKey, error)

	// CursorBatch is CursorKeys materializing full rows.
	CursorBatch(ctx context.Context, filter TransactionFilter, after CursorKey, limit int) ([]*Transaction, error)

	// RangeBatch fetches a small offset-addressed sub-range, newest first.
	// Only ever called with offsets inside a bounded standard-mode export.
	RangeBatch(ctx context.Context, filter TransactionFilter, offset, limit int) ([]*Transaction, error)
}

package ledger

import (
	"context"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	"github.com/finlane/ledger-service/internal/infrastructure/metrics"
	"github.com/finlane/ledger-service/internal/infrastructure/resilient"
	txndto "github.com/finlane/ledger-service/internal/usecase/dto/transaction"
)

type LedgerUsecase interface {
	CreateTransaction(ctx context.Context, input *txndto.CreateTransactionInput) (*domain.Transaction, error)
	ApplyPayment(ctx context.Context, orderID string, settledAmount float64) (*txndto.ApplyPaymentOutput, error)
	Transition(ctx context.Context, recordID string, target domain.TransactionStatus) (*domain.Transaction, error)
	SweepExpired(ctx context.Context) (*txndto.SweepReport, error)

	GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, input *txndto.ListTransactionsInput) (*txndto.ListTransactionsOutput, error)
	CountMatching(ctx context.Context, filter domain.TransactionFilter) (int64, error)
	ExportMatching(ctx context.Context, filter domain.TransactionFilter, sink func(*domain.Transaction) error) (*txndto.ExportReport, error)
}

// Options tune batch sizes and windows. Zero values fall back to production
// defaults; tests shrink them to keep suites fast.
type Options struct {
	PaymentWindow time.Duration
	SweepLimit    int
	SweepBatch    int
	SweepPause    time.Duration

	CountFastLimit int
	CountBatchSize int
	LargeThreshold int
	StandardBatch  int
	LargeBatch     int
	Parallelism    int
	BatchPause     time.Duration

	CacheTTL           time.Duration
	MemoryCeilingBytes uint64

	ApplyMaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.PaymentWindow <= 0 {
		o.PaymentWindow = 30 * time.Minute
	}
	if o.SweepLimit <= 0 {
		o.SweepLimit = 100
	}
	if o.SweepBatch <= 0 {
		o.SweepBatch = 10
	}
	if o.SweepPause <= 0 {
		o.SweepPause = 100 * time.Millisecond
	}
	if o.CountFastLimit <= 0 {
		o.CountFastLimit = 500
	}
	if o.CountBatchSize <= 0 {
		o.CountBatchSize = 1000
	}
	if o.LargeThreshold <= 0 {
		o.LargeThreshold = 25000
	}
	if o.StandardBatch <= 0 {
		o.StandardBatch = 2000
	}
	if o.LargeBatch <= 0 {
		o.LargeBatch = 500
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 4
	}
	if o.BatchPause < 0 {
		o.BatchPause = 0
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 30 * time.Second
	}
	if o.MemoryCeilingBytes == 0 {
		o.MemoryCeilingBytes = 768 << 20
	}
	if o.ApplyMaxAttempts <= 0 {
		o.ApplyMaxAttempts = 3
	}
	return o
}

type DefaultLedgerUsecase struct {
	Repo      domain.TransactionRepository
	Accounts  domain.AccountLedger
	Scheduler domain.ExpiryScheduler
	Publisher domain.EventPublisher
	Access    *resilient.Access
	Metrics   *metrics.LedgerMetrics

	opts   Options
	counts *countCache
}

func NewDefaultLedgerUsecase(
	repo domain.TransactionRepository,
	accounts domain.AccountLedger,
	scheduler domain.ExpiryScheduler,
	publisher domain.EventPublisher,
	access *resilient.Access,
	ledgerMetrics *metrics.LedgerMetrics,
	opts Options,
) *DefaultLedgerUsecase {
	opts = opts.withDefaults()
	return &DefaultLedgerUsecase{
		Repo:      repo,
		Accounts:  accounts,
		Scheduler: scheduler,
		Publisher: publisher,
		Access:    access,
		Metrics:   ledgerMetrics,
		opts:      opts,
		counts:    newCountCache(opts.CacheTTL),
	}
}

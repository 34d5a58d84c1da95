package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	txndto "github.com/finlane/ledger-service/internal/usecase/dto/transaction"
)

// SweepExpired demotes deposit orders that sat in processing past the
// payment window back to pending, leaving them for manual review. It runs
// the demotions in small concurrent sub-batches with a pause in between to
// bound store load; per-item failures are collected, the sweep never aborts
// on one bad row. The next scheduled run re-scans the same filter, so a
// partial sweep loses nothing.
func (uc *DefaultLedgerUsecase) SweepExpired(ctx context.Context) (*txndto.SweepReport, error) {
	start := time.Now()
	cutoff := start.Add(-uc.opts.PaymentWindow)

	var expired []*domain.Transaction
	if err := uc.Access.Read(ctx, "expiry_sweep:find", func(ctx context.Context) error {
		var err error
		expired, err = uc.Repo.FindExpiredProcessing(ctx, domain.TypeDeposit, cutoff, uc.opts.SweepLimit)
		return err
	}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &txndto.SweepReport{}, nil
		}
		return nil, err
	}

	report := &txndto.SweepReport{}
	var mu sync.Mutex

	for batchStart := 0; batchStart < len(expired); batchStart += uc.opts.SweepBatch {
		batchEnd := batchStart + uc.opts.SweepBatch
		if batchEnd > len(expired) {
			batchEnd = len(expired)
		}

		var wg sync.WaitGroup
		for _, txn := range expired[batchStart:batchEnd] {
			wg.Add(1)
			go func(txn *domain.Transaction) {
				defer wg.Done()
				_, err := uc.Transition(ctx, txn.ID, domain.StatusPending)
				mu.Lock()
				defer mu.Unlock()
				if err != nil && !errors.Is(err, domain.ErrNoOpTransition) {
					report.Failed++
					report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", txn.OrderID, err))
					return
				}
				report.Processed++
			}(txn)
		}
		wg.Wait()

		if batchEnd < len(expired) {
			time.Sleep(uc.opts.SweepPause)
		}
	}

	if uc.Metrics != nil {
		uc.Metrics.SweepProcessedTotal.Add(float64(report.Processed))
		uc.Metrics.SweepFailedTotal.Add(float64(report.Failed))
		uc.Metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}

	if report.Processed > 0 || report.Failed > 0 {
		slog.Info("expiry sweep finished",
			"processed", report.Processed, "failed", report.Failed, "took", time.Since(start).String())
	}

	return report, nil
}

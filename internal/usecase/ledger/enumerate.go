package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	txndto "github.com/finlane/ledger-service/internal/usecase/dto/transaction"
)

// CountMatching returns the exact number of rows matching filter without
// ever using a large offset. Small result sets are answered by a single
// bounded id-only query; beyond that the count walks backward on the
// creation timestamp, so it scales to unbounded collections at the cost of
// one round trip per batch. Results are cached for a short TTL to absorb
// dashboard polling.
func (uc *DefaultLedgerUsecase) CountMatching(ctx context.Context, filter domain.TransactionFilter) (int64, error) {
	key := filterKey(filter)
	if cached, ok := uc.counts.Get(key); ok {
		uc.recordCountPath("cache")
		return cached, nil
	}

	keys, err := uc.cursorKeys(ctx, filter, domain.CursorKey{}, uc.opts.CountFastLimit)
	if err != nil {
		return 0, err
	}
	if len(keys) < uc.opts.CountFastLimit {
		total := int64(len(keys))
		uc.counts.Set(key, total, filterBuckets(filter))
		uc.recordCountPath("fast")
		return total, nil
	}

	// Slow path: strictly-decreasing cursor walk, no offsets.
	total := int64(0)
	after := domain.CursorKey{}
	for {
		batch, err := uc.cursorKeys(ctx, filter, after, uc.opts.CountBatchSize)
		if err != nil {
			return 0, err
		}
		total += int64(len(batch))
		if len(batch) < uc.opts.CountBatchSize {
			break
		}
		after = batch[len(batch)-1]
	}

	uc.counts.Set(key, total, filterBuckets(filter))
	uc.recordCountPath("cursor")
	return total, nil
}

const (
	exportModeStandard = "standard"
	exportModeLarge    = "large"
)

// ExportMatching streams every row matching filter into sink. Below the
// large threshold it fans a bounded number of small offset sub-ranges out in
// parallel; at or above it, parallel offset queries against the store both
// time out and can miss or duplicate rows when writes land mid-export, so it
// degrades to a strictly sequential cursor walk with a smaller batch, an
// inter-batch pause and a process-memory guard.
func (uc *DefaultLedgerUsecase) ExportMatching(
	ctx context.Context,
	filter domain.TransactionFilter,
	sink func(*domain.Transaction) error,
) (*txndto.ExportReport, error) {
	start := time.Now()

	estimated, err := uc.CountMatching(ctx, filter)
	if err != nil {
		return nil, err
	}

	var report *txndto.ExportReport
	if estimated < int64(uc.opts.LargeThreshold) {
		report, err = uc.exportStandard(ctx, filter, int(estimated), sink)
	} else {
		report, err = uc.exportLarge(ctx, filter, sink)
	}
	if err != nil {
		return nil, err
	}

	if uc.Metrics != nil {
		uc.Metrics.ExportRowsTotal.WithLabelValues(report.Mode).Add(float64(report.Rows))
		uc.Metrics.ExportBatchesTotal.WithLabelValues(report.Mode).Add(float64(report.Batches))
		uc.Metrics.ExportDuration.WithLabelValues(report.Mode).Observe(time.Since(start).Seconds())
	}
	slog.Info("export finished", "mode", report.Mode, "rows", report.Rows,
		"batches", report.Batches, "took", time.Since(start).String())

	return report, nil
}

// exportStandard fetches offset sub-ranges with bounded parallelism, then
// emits them in order. Sub-ranges are individually small, so the offsets
// stay inside what the store handles well.
func (uc *DefaultLedgerUsecase) exportStandard(
	ctx context.Context,
	filter domain.TransactionFilter,
	estimated int,
	sink func(*domain.Transaction) error,
) (*txndto.ExportReport, error) {
	batchSize := uc.opts.StandardBatch
	numBatches := (estimated + batchSize - 1) / batchSize
	if numBatches == 0 {
		numBatches = 1
	}

	batches := make([][]*domain.Transaction, numBatches)
	sem := make(chan struct{}, uc.opts.Parallelism)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < numBatches; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var rows []*domain.Transaction
			err := uc.Access.Read(ctx, fmt.Sprintf("export:range_batch:%d", i), func(ctx context.Context) error {
				var err error
				rows, err = uc.Repo.RangeBatch(ctx, filter, i*batchSize, batchSize)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
				return
			}
			batches[i] = rows
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	report := &txndto.ExportReport{Mode: exportModeStandard, Batches: numBatches}
	var lastSeen domain.CursorKey
	lastBatchFull := false
	for _, batch := range batches {
		for _, txn := range batch {
			if err := sink(txn); err != nil {
				return nil, err
			}
			report.Rows++
			lastSeen = domain.CursorKey{ID: txn.ID, CreatedAt: txn.CreatedAt}
		}
		lastBatchFull = len(batch) == batchSize
	}

	// Rows inserted since the estimate can extend past the last sub-range;
	// drain the tail sequentially by cursor from the last emitted row.
	for lastBatchFull {
		var rows []*domain.Transaction
		if err := uc.Access.Read(ctx, "export:range_tail", func(ctx context.Context) error {
			var err error
			rows, err = uc.Repo.CursorBatch(ctx, filter, lastSeen, batchSize)
			return err
		}); err != nil {
			return nil, err
		}
		report.Batches++
		for _, txn := range rows {
			if err := sink(txn); err != nil {
				return nil, err
			}
			report.Rows++
			lastSeen = domain.CursorKey{ID: txn.ID, CreatedAt: txn.CreatedAt}
		}
		lastBatchFull = len(rows) == batchSize
	}

	return report, nil
}

// exportLarge is the sequential cursor walk: one outstanding batch at a
// time, which guarantees cursor monotonicity and thus no missed or
// duplicated rows over a static dataset.
func (uc *DefaultLedgerUsecase) exportLarge(
	ctx context.Context,
	filter domain.TransactionFilter,
	sink func(*domain.Transaction) error,
) (*txndto.ExportReport, error) {
	report := &txndto.ExportReport{Mode: exportModeLarge}
	after := domain.CursorKey{}

	for {
		if err := uc.checkMemoryCeiling(); err != nil {
			return nil, err
		}

		var rows []*domain.Transaction
		if err := uc.Access.Read(ctx, "export:cursor_batch", func(ctx context.Context) error {
			var err error
			rows, err = uc.Repo.CursorBatch(ctx, filter, after, uc.opts.LargeBatch)
			return err
		}); err != nil {
			return nil, err
		}
		report.Batches++

		for _, txn := range rows {
			if err := sink(txn); err != nil {
				return nil, err
			}
			report.Rows++
		}

		if len(rows) < uc.opts.LargeBatch {
			return report, nil
		}
		last := rows[len(rows)-1]
		after = domain.CursorKey{ID: last.ID, CreatedAt: last.CreatedAt}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uc.opts.BatchPause):
		}
	}
}

func (uc *DefaultLedgerUsecase) checkMemoryCeiling() error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Alloc > uc.opts.MemoryCeilingBytes {
		return fmt.Errorf("%w: heap %dMB over ceiling %dMB",
			domain.ErrResourceExhausted, m.Alloc>>20, uc.opts.MemoryCeilingBytes>>20)
	}
	return nil
}

func (uc *DefaultLedgerUsecase) cursorKeys(ctx context.Context, filter domain.TransactionFilter, after domain.CursorKey, limit int) ([]domain.CursorKey, error) {
	var keys []domain.CursorKey
	err := uc.Access.Read(ctx, "count:cursor_keys", func(ctx context.Context) error {
		var err error
		keys, err = uc.Repo.CursorKeys(ctx, filter, after, limit)
		return err
	})
	return keys, err
}

func (uc *DefaultLedgerUsecase) recordCountPath(path string) {
	if uc.Metrics != nil {
		uc.Metrics.CountQueriesTotal.WithLabelValues(path).Inc()
	}
}

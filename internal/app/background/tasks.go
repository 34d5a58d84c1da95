package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/finlane/ledger-service/internal/usecase/ledger"
)

type BackgroundTasks struct {
	LedgerUsecase ledger.LedgerUsecase
	SweepInterval time.Duration
}

func NewBackgroundTasks(ledgerUC ledger.LedgerUsecase, sweepInterval time.Duration) *BackgroundTasks {
	return &BackgroundTasks{
		LedgerUsecase: ledgerUC,
		SweepInterval: sweepInterval,
	}
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	go bt.startExpirySweep(ctx)
}

func (bt *BackgroundTasks) startExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(bt.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := bt.LedgerUsecase.SweepExpired(ctx)
			if err != nil {
				slog.Error("expiry sweep failed", "error", err.Error())
				continue
			}
			for _, itemErr := range report.Errors {
				slog.Warn("expiry sweep item failed", "detail", itemErr)
			}
		}
	}
}

package ledger_test

import (
	"context"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/finlane/ledger-service/internal/domain"
	"github.com/finlane/ledger-service/internal/usecase/ledger"
	"github.com/google/uuid"
)

var _ = ginkgo.Describe("Transition", func() {
	var (
		env *testEnv
		ctx context.Context
	)

	seed := func(txnType domain.TransactionType, status domain.TransactionStatus) *domain.Transaction {
		txn := &domain.Transaction{
			ID:              uuid.New().String(),
			OrderID:         "ord-" + uuid.New().String()[:8],
			Type:            txnType,
			Status:          status,
			Amount:          75000,
			PaidAmount:      0,
			UnpaidAmount:    75000,
			PositiveAccount: "acc-merchant",
			NegativeAccount: "acc-trader",
			CreatedAt:       time.Now(),
		}
		env.repo.put(txn)
		return txn
	}

	ginkgo.BeforeEach(func() {
		env = newTestEnv(ledger.Options{})
		ctx = context.Background()
	})

	ginkgo.Describe("manual completion", func() {
		ginkgo.It("settles the full amount and credits the accounts", func() {
			txn := seed(domain.TypeDeposit, domain.StatusProcessing)

			updated, err := env.uc.Transition(ctx, txn.ID, domain.StatusCompleted)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.Status).To(gomega.Equal(domain.StatusCompleted))
			gomega.Expect(updated.PaidAmount).To(gomega.Equal(75000.0))
			gomega.Expect(updated.UnpaidAmount).To(gomega.Equal(0.0))

			gomega.Expect(env.accounts.Calls()).To(gomega.ContainElements(
				accountCall{Op: "credit", AccountID: "acc-merchant", Amount: 75000},
				accountCall{Op: "debit", AccountID: "acc-trader", Amount: 75000},
			))
		})
	})

	ginkgo.Describe("failure and cancellation", func() {
		ginkgo.It("releases the payout reservation of a pending withdrawal on cancel", func() {
			txn := seed(domain.TypeWithdraw, domain.StatusPending)

			updated, err := env.uc.Transition(ctx, txn.ID, domain.StatusCanceled)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.Status).To(gomega.Equal(domain.StatusCanceled))

			gomega.Expect(env.accounts.Calls()).To(gomega.ContainElement(
				accountCall{Op: "release", AccountID: "acc-trader", Amount: 75000},
			))
		})

		ginkgo.It("releases the reservation when a pending withdrawal fails", func() {
			txn := seed(domain.TypeWithdraw, domain.StatusPending)

			_, err := env.uc.Transition(ctx, txn.ID, domain.StatusFailed)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(env.accounts.Calls()).To(gomega.ContainElement(
				accountCall{Op: "release", AccountID: "acc-trader", Amount: 75000},
			))
		})

		ginkgo.It("does not touch accounts when a processing deposit fails", func() {
			txn := seed(domain.TypeDeposit, domain.StatusProcessing)

			_, err := env.uc.Transition(ctx, txn.ID, domain.StatusFailed)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(env.accounts.Calls()).To(gomega.BeEmpty())
		})

		ginkgo.It("marks failed rows for callback delivery", func() {
			txn := seed(domain.TypeDeposit, domain.StatusProcessing)

			_, err := env.uc.Transition(ctx, txn.ID, domain.StatusFailed)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			stored := env.repo.get(txn.ID)
			gomega.Expect(stored.CallbackNotified).ToNot(gomega.BeNil())
			gomega.Expect(*stored.CallbackNotified).To(gomega.BeFalse())
		})

		ginkgo.It("refuses to cancel anything but a pending withdrawal", func() {
			deposit := seed(domain.TypeDeposit, domain.StatusPending)
			processing := seed(domain.TypeWithdraw, domain.StatusProcessing)

			_, err := env.uc.Transition(ctx, deposit.ID, domain.StatusCanceled)
			gomega.Expect(err).To(gomega.MatchError(domain.ErrInvalidTransition))

			_, err = env.uc.Transition(ctx, processing.ID, domain.StatusCanceled)
			gomega.Expect(err).To(gomega.MatchError(domain.ErrInvalidTransition))
		})
	})

	ginkgo.Describe("pending and processing moves", func() {
		ginkgo.It("demotes processing back to pending without side effects", func() {
			txn := seed(domain.TypeDeposit, domain.StatusProcessing)

			updated, err := env.uc.Transition(ctx, txn.ID, domain.StatusPending)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.Status).To(gomega.Equal(domain.StatusPending))
			gomega.Expect(env.accounts.Calls()).To(gomega.BeEmpty())
			gomega.Expect(env.scheduler.Scheduled()).To(gomega.BeEmpty())
		})

		ginkgo.It("re-registers the expiry job when a deposit re-enters processing", func() {
			txn := seed(domain.TypeDeposit, domain.StatusPending)

			_, err := env.uc.Transition(ctx, txn.ID, domain.StatusProcessing)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(env.scheduler.Scheduled()).To(gomega.ContainElement(txn.OrderID))
		})

		ginkgo.It("does not register expiry for a withdrawal entering processing", func() {
			txn := seed(domain.TypeWithdraw, domain.StatusPending)

			_, err := env.uc.Transition(ctx, txn.ID, domain.StatusProcessing)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(env.scheduler.Scheduled()).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("terminal and no-op rules", func() {
		ginkgo.It("returns the row unchanged on a transition into the current status", func() {
			txn := seed(domain.TypeDeposit, domain.StatusProcessing)
			before := env.repo.get(txn.ID)

			same, err := env.uc.Transition(ctx, txn.ID, domain.StatusProcessing)
			gomega.Expect(err).To(gomega.MatchError(domain.ErrNoOpTransition))
			gomega.Expect(same.Status).To(gomega.Equal(domain.StatusProcessing))
			gomega.Expect(env.repo.get(txn.ID).Version).To(gomega.Equal(before.Version))
		})

		ginkgo.It("rejects every move out of a terminal state", func() {
			for _, terminal := range []domain.TransactionStatus{
				domain.StatusCompleted, domain.StatusFailed, domain.StatusCanceled,
			} {
				txn := seed(domain.TypeDeposit, terminal)
				for _, target := range []domain.TransactionStatus{
					domain.StatusPending, domain.StatusProcessing,
					domain.StatusCompleted, domain.StatusFailed, domain.StatusCanceled,
				} {
					if target == terminal {
						continue
					}
					_, err := env.uc.Transition(ctx, txn.ID, target)
					gomega.Expect(err).To(gomega.MatchError(domain.ErrTerminalState),
						"%s -> %s must be rejected", terminal, target)
				}
			}
		})

		ginkgo.It("rejects an unknown target status", func() {
			txn := seed(domain.TypeDeposit, domain.StatusPending)

			_, err := env.uc.Transition(ctx, txn.ID, domain.TransactionStatus("archived"))
			gomega.Expect(err).To(gomega.MatchError(domain.ErrInvalidTransition))
		})
	})
})

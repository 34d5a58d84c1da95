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

var _ = ginkgo.Describe("ApplyPayment", func() {
	var (
		env *testEnv
		ctx context.Context
	)

	seed := func(orderID string, status domain.TransactionStatus, amount, paid float64) *domain.Transaction {
		txn := &domain.Transaction{
			ID:              uuid.New().String(),
			OrderID:         orderID,
			Type:            domain.TypeDeposit,
			Status:          status,
			Amount:          amount,
			PaidAmount:      paid,
			UnpaidAmount:    amount - paid,
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

	ginkgo.It("accumulates a partial settlement without completing", func() {
		txn := seed("ord-1", domain.StatusProcessing, 100000, 0)

		out, err := env.uc.ApplyPayment(ctx, "ord-1", 60000)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(out.Applied).To(gomega.BeTrue())
		gomega.Expect(out.Completed).To(gomega.BeFalse())

		stored := env.repo.get(txn.ID)
		gomega.Expect(stored.PaidAmount).To(gomega.Equal(60000.0))
		gomega.Expect(stored.UnpaidAmount).To(gomega.Equal(40000.0))
		gomega.Expect(stored.Status).To(gomega.Equal(domain.StatusProcessing))
		gomega.Expect(stored.LastPaymentAt).ToNot(gomega.BeNil())
		gomega.Expect(stored.PaidAmount + stored.UnpaidAmount).To(gomega.Equal(stored.Amount))
	})

	ginkgo.It("completes on the settlement that covers the remainder", func() {
		txn := seed("ord-2", domain.StatusProcessing, 100000, 60000)

		out, err := env.uc.ApplyPayment(ctx, "ord-2", 40000)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(out.Completed).To(gomega.BeTrue())

		stored := env.repo.get(txn.ID)
		gomega.Expect(stored.Status).To(gomega.Equal(domain.StatusCompleted))
		gomega.Expect(stored.PaidAmount).To(gomega.Equal(100000.0))
		gomega.Expect(stored.UnpaidAmount).To(gomega.Equal(0.0))
	})

	ginkgo.It("runs completion side effects against both accounts", func() {
		seed("ord-3", domain.StatusProcessing, 50000, 0)

		_, err := env.uc.ApplyPayment(ctx, "ord-3", 50000)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		gomega.Eventually(env.accounts.Calls).Should(gomega.ContainElements(
			accountCall{Op: "credit", AccountID: "acc-merchant", Amount: 50000},
			accountCall{Op: "debit", AccountID: "acc-trader", Amount: 50000},
		))
		gomega.Eventually(func() []domain.TransactionEvent {
			return env.publisher.Events()
		}).ShouldNot(gomega.BeEmpty())
	})

	ginkgo.It("marks a completed row pending for callback delivery", func() {
		txn := seed("ord-4", domain.StatusProcessing, 20000, 0)

		_, err := env.uc.ApplyPayment(ctx, "ord-4", 20000)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		gomega.Eventually(func() *bool {
			return env.repo.get(txn.ID).CallbackNotified
		}).ShouldNot(gomega.BeNil())
		gomega.Expect(*env.repo.get(txn.ID).CallbackNotified).To(gomega.BeFalse())
	})

	ginkgo.It("clamps an overpaying settlement to zero unpaid", func() {
		txn := seed("ord-5", domain.StatusProcessing, 100000, 0)

		out, err := env.uc.ApplyPayment(ctx, "ord-5", 130000)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(out.Completed).To(gomega.BeTrue())

		stored := env.repo.get(txn.ID)
		gomega.Expect(stored.UnpaidAmount).To(gomega.Equal(0.0))
		gomega.Expect(stored.PaidAmount).To(gomega.Equal(130000.0))
	})

	ginkgo.It("treats a duplicate report on a fully paid row as a no-op", func() {
		txn := seed("ord-6", domain.StatusCompleted, 100000, 100000)
		before := env.repo.get(txn.ID)

		out, err := env.uc.ApplyPayment(ctx, "ord-6", 100000)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(out.AlreadyComplete).To(gomega.BeTrue())
		gomega.Expect(out.Applied).To(gomega.BeFalse())

		after := env.repo.get(txn.ID)
		gomega.Expect(after.PaidAmount).To(gomega.Equal(before.PaidAmount))
		gomega.Expect(after.Version).To(gomega.Equal(before.Version))
		gomega.Expect(env.accounts.Calls()).To(gomega.BeEmpty())
	})

	ginkgo.It("rejects settlements against failed and canceled rows", func() {
		seed("ord-7", domain.StatusFailed, 100000, 0)
		seed("ord-8", domain.StatusCanceled, 100000, 0)

		_, err := env.uc.ApplyPayment(ctx, "ord-7", 10000)
		gomega.Expect(err).To(gomega.MatchError(domain.ErrTerminalState))

		_, err = env.uc.ApplyPayment(ctx, "ord-8", 10000)
		gomega.Expect(err).To(gomega.MatchError(domain.ErrTerminalState))
	})

	ginkgo.It("rejects non-positive settlement amounts", func() {
		seed("ord-9", domain.StatusProcessing, 100000, 0)

		_, err := env.uc.ApplyPayment(ctx, "ord-9", 0)
		gomega.Expect(err).To(gomega.HaveOccurred())

		_, err = env.uc.ApplyPayment(ctx, "ord-9", -5)
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("re-reads and reapplies after a concurrent writer bumps the row", func() {
		txn := seed("ord-10", domain.StatusProcessing, 100000, 0)

		// A competing settlement of 30000 lands between this call's read and
		// its write, once.
		interfered := false
		env.repo.beforeUpdate = func(stored *domain.Transaction) {
			if interfered {
				return
			}
			interfered = true
			stored.PaidAmount += 30000
			stored.UnpaidAmount -= 30000
			stored.Version++
		}

		out, err := env.uc.ApplyPayment(ctx, "ord-10", 20000)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(out.Applied).To(gomega.BeTrue())

		stored := env.repo.get(txn.ID)
		gomega.Expect(stored.PaidAmount).To(gomega.Equal(50000.0))
		gomega.Expect(stored.UnpaidAmount).To(gomega.Equal(50000.0))
	})

	ginkgo.It("gives up after exhausting conflict retries", func() {
		seed("ord-11", domain.StatusProcessing, 100000, 0)

		env.repo.beforeUpdate = func(stored *domain.Transaction) {
			stored.Version++
		}

		_, err := env.uc.ApplyPayment(ctx, "ord-11", 20000)
		gomega.Expect(err).To(gomega.MatchError(domain.ErrVersionConflict))
	})

	ginkgo.It("fails when no row matches the order id", func() {
		_, err := env.uc.ApplyPayment(ctx, "ord-missing", 10000)
		gomega.Expect(err).To(gomega.MatchError(domain.ErrNotFound))
	})
})

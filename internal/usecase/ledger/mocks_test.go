package ledger_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
)

// mockTransactionRepo is a map-backed repository with the same version CAS
// semantics as the real one. beforeUpdate lets a test splice a "concurrent
// writer" in between the usecase's read and its write.
type mockTransactionRepo struct {
	mu           sync.Mutex
	byID         map[string]domain.Transaction
	beforeUpdate func(stored *domain.Transaction)

	createErr error
	getErrs   []error
}

func newMockTransactionRepo() *mockTransactionRepo {
	return &mockTransactionRepo{byID: map[string]domain.Transaction{}}
}

func (m *mockTransactionRepo) put(txn *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[txn.ID] = *txn
}

func (m *mockTransactionRepo) get(id string) *domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.byID[id]
	if !ok {
		return nil
	}
	copy := txn
	return &copy
}

func (m *mockTransactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.OrderID == txn.OrderID {
			return domain.ErrDuplicateOrder
		}
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	m.byID[txn.ID] = *txn
	return nil
}

func (m *mockTransactionRepo) nextGetErr() error {
	if len(m.getErrs) == 0 {
		return nil
	}
	err := m.getErrs[0]
	m.getErrs = m.getErrs[1:]
	return err
}

func (m *mockTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.Lock()
	if err := m.nextGetErr(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	txn, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := txn
	return &copy, nil
}

func (m *mockTransactionRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	m.mu.Lock()
	if err := m.nextGetErr(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	for _, txn := range m.byID {
		if txn.OrderID == orderID {
			copy := txn
			return &copy, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTransactionRepo) GetByMerchantTxID(ctx context.Context, merchantTxID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range m.byID {
		if txn.MerchantTxID == merchantTxID {
			copy := txn
			return &copy, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTransactionRepo) UpdateChecked(ctx context.Context, txn *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[txn.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(&stored)
		m.byID[txn.ID] = stored
	}
	if stored.Version != txn.Version {
		return domain.ErrVersionConflict
	}

	stored.Status = txn.Status
	stored.PaidAmount = txn.PaidAmount
	stored.UnpaidAmount = txn.UnpaidAmount
	stored.CallbackNotified = txn.CallbackNotified
	stored.LastPaymentAt = txn.LastPaymentAt
	stored.Version++
	stored.UpdatedAt = time.Now()
	m.byID[txn.ID] = stored

	txn.Version = stored.Version
	return nil
}

func (m *mockTransactionRepo) matching(filter domain.TransactionFilter) []domain.Transaction {
	var out []domain.Transaction
	for _, txn := range m.byID {
		if filter.Status != "" && txn.Status != filter.Status {
			continue
		}
		if filter.Type != "" && txn.Type != filter.Type {
			continue
		}
		out = append(out, txn)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cursorAfter(txn domain.Transaction, after domain.CursorKey) bool {
	if after.IsZero() {
		return true
	}
	if txn.CreatedAt.Before(after.CreatedAt) {
		return true
	}
	return txn.CreatedAt.Equal(after.CreatedAt) && txn.ID < after.ID
}

func (m *mockTransactionRepo) FindExpiredProcessing(ctx context.Context, txnType domain.TransactionType, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transaction
	for _, txn := range m.matching(domain.TransactionFilter{Status: domain.StatusProcessing, Type: txnType}) {
		if txn.CreatedAt.Before(cutoff) && len(out) < limit {
			copy := txn
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *mockTransactionRepo) List(ctx context.Context, filter domain.TransactionFilter, sortBy, sortOrder string, page, limit int) ([]*domain.Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.matching(filter)
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, int64(len(rows)), nil
}

func (m *mockTransactionRepo) CursorKeys(ctx context.Context, filter domain.TransactionFilter, after domain.CursorKey, limit int) ([]domain.CursorKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []domain.CursorKey
	for _, txn := range m.matching(filter) {
		if !cursorAfter(txn, after) {
			continue
		}
		keys = append(keys, domain.CursorKey{ID: txn.ID, CreatedAt: txn.CreatedAt})
		if len(keys) == limit {
			break
		}
	}
	return keys, nil
}

func (m *mockTransactionRepo) CursorBatch(ctx context.Context, filter domain.TransactionFilter, after domain.CursorKey, limit int) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transaction
	for _, txn := range m.matching(filter) {
		if !cursorAfter(txn, after) {
			continue
		}
		copy := txn
		out = append(out, &copy)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockTransactionRepo) RangeBatch(ctx context.Context, filter domain.TransactionFilter, offset, limit int) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.matching(filter)
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	out := make([]*domain.Transaction, 0, end-offset)
	for i := offset; i < end; i++ {
		copy := rows[i]
		out = append(out, &copy)
	}
	return out, nil
}

type accountCall struct {
	Op        string
	AccountID string
	Amount    float64
}

type mockAccountLedger struct {
	mu    sync.Mutex
	calls []accountCall

	reserveErr error
}

func (m *mockAccountLedger) record(op, accountID string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, accountCall{Op: op, AccountID: accountID, Amount: amount})
}

func (m *mockAccountLedger) Calls() []accountCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]accountCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockAccountLedger) CreditBalance(ctx context.Context, accountID string, amount float64) error {
	m.record("credit", accountID, amount)
	return nil
}

func (m *mockAccountLedger) DebitBalance(ctx context.Context, accountID string, amount float64) error {
	m.record("debit", accountID, amount)
	return nil
}

func (m *mockAccountLedger) ReserveBalance(ctx context.Context, accountID string, amount float64) error {
	if m.reserveErr != nil {
		return m.reserveErr
	}
	m.record("reserve", accountID, amount)
	return nil
}

func (m *mockAccountLedger) ReleaseReserved(ctx context.Context, accountID string, amount float64) error {
	m.record("release", accountID, amount)
	return nil
}

type mockScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (m *mockScheduler) Schedule(ctx context.Context, recordID, orderID string, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled = append(m.scheduled, orderID)
	return nil
}

func (m *mockScheduler) Scheduled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.scheduled))
	copy(out, m.scheduled)
	return out
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.TransactionEvent
}

func (m *mockPublisher) PublishTransaction(event domain.TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) Events() []domain.TransactionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TransactionEvent, len(m.events))
	copy(out, m.events)
	return out
}

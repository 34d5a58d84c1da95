package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	"github.com/finlane/ledger-service/internal/infrastructure/postgres/mappers"
	"github.com/finlane/ledger-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultTransactionRepository struct {
	DB *gorm.DB
}

func NewDefaultTransactionRepository(db *gorm.DB) *DefaultTransactionRepository {
	return &DefaultTransactionRepository{DB: db}
}

func (r *DefaultTransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	model := mappers.ToGORMTransaction(txn)
	if err := r.DB.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOrder
		}
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	txn.CreatedAt = model.CreatedAt
	txn.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *DefaultTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *DefaultTransactionRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	return r.getOne(ctx, "order_id = ?", orderID)
}

func (r *DefaultTransactionRepository) GetByMerchantTxID(ctx context.Context, merchantTxID string) (*domain.Transaction, error) {
	return r.getOne(ctx, "merchant_tx_id = ?", merchantTxID)
}

func (r *DefaultTransactionRepository) getOne(ctx context.Context, query string, arg string) (*domain.Transaction, error) {
	var model models.TransactionModel
	if err := r.DB.WithContext(ctx).First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return mappers.ToDomainTransaction(&model), nil
}

// UpdateChecked writes the mutable columns with a compare-and-swap on the
// version column. Amount, Type and CreatedAt are never written back.
func (r *DefaultTransactionRepository) UpdateChecked(ctx context.Context, txn *domain.Transaction) error {
	res := r.DB.WithContext(ctx).
		Model(&models.TransactionModel{}).
		Where("id = ? AND version = ?", txn.ID, txn.Version).
		Updates(map[string]interface{}{
			"status":            txn.Status,
			"paid_amount":       txn.PaidAmount,
			"unpaid_amount":     txn.UnpaidAmount,
			"callback_notified": txn.CallbackNotified,
			"last_payment_at":   txn.LastPaymentAt,
			"version":           txn.Version + 1,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, res.Error)
	}
	if res.RowsAffected == 0 {
		// Row gone or version moved under us; disambiguate for the caller.
		var count int64
		if err := r.DB.WithContext(ctx).Model(&models.TransactionModel{}).
			Where("id = ?", txn.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStore, err)
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}
	txn.Version++
	return nil
}

func (r *DefaultTransactionRepository) FindExpiredProcessing(
	ctx context.Context,
	txnType domain.TransactionType,
	cutoff time.Time,
	limit int,
) ([]*domain.Transaction, error) {
	var txnModels []models.TransactionModel
	if err := r.DB.WithContext(ctx).
		Where("status = ?", domain.StatusProcessing).
		Where("type = ?", txnType).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&txnModels).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return toDomainSlice(txnModels), nil
}

func (r *DefaultTransactionRepository) List(
	ctx context.Context,
	filter domain.TransactionFilter,
	sortBy, sortOrder string,
	page, limit int,
) ([]*domain.Transaction, int64, error) {
	safeSortBy := "created_at"
	switch sortBy {
	case "amount":
		safeSortBy = "amount"
	case "updated_at":
		safeSortBy = "updated_at"
	case "created_at":
		safeSortBy = "created_at"
	}

	safeSortOrder := "DESC"
	if strings.ToUpper(sortOrder) == "ASC" {
		safeSortOrder = "ASC"
	}

	var total int64
	if err := applyFilter(r.DB.WithContext(ctx).Model(&models.TransactionModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count transactions: %v", domain.ErrStore, err)
	}

	offset := (page - 1) * limit
	var txnModels []models.TransactionModel
	if err := applyFilter(r.DB.WithContext(ctx).Model(&models.TransactionModel{}), filter).
		Order(fmt.Sprintf("%s %s", safeSortBy, safeSortOrder)).
		Offset(offset).
		Limit(limit).
		Find(&txnModels).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: failed to find transactions: %v", domain.ErrStore, err)
	}

	return toDomainSlice(txnModels), total, nil
}

// cursorOrder is the strictly-ordered walk key. created_at alone ties for
// rows created in the same instant; id breaks the tie.
const cursorOrder = "created_at DESC, id DESC"

func afterCursor(query *gorm.DB, after domain.CursorKey) *gorm.DB {
	if after.IsZero() {
		return query
	}
	return query.Where(
		"created_at < ? OR (created_at = ? AND id < ?)",
		after.CreatedAt, after.CreatedAt, after.ID,
	)
}

func (r *DefaultTransactionRepository) CursorKeys(
	ctx context.Context,
	filter domain.TransactionFilter,
	after domain.CursorKey,
	limit int,
) ([]domain.CursorKey, error) {
	query := afterCursor(applyFilter(r.DB.WithContext(ctx).Model(&models.TransactionModel{}), filter), after)

	var keys []domain.CursorKey
	if err := query.
		Select("id", "created_at").
		Order(cursorOrder).
		Limit(limit).
		Scan(&keys).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return keys, nil
}

func (r *DefaultTransactionRepository) CursorBatch(
	ctx context.Context,
	filter domain.TransactionFilter,
	after domain.CursorKey,
	limit int,
) ([]*domain.Transaction, error) {
	query := afterCursor(applyFilter(r.DB.WithContext(ctx).Model(&models.TransactionModel{}), filter), after)

	var txnModels []models.TransactionModel
	if err := query.
		Order(cursorOrder).
		Limit(limit).
		Find(&txnModels).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return toDomainSlice(txnModels), nil
}

func (r *DefaultTransactionRepository) RangeBatch(
	ctx context.Context,
	filter domain.TransactionFilter,
	offset, limit int,
) ([]*domain.Transaction, error) {
	var txnModels []models.TransactionModel
	if err := applyFilter(r.DB.WithContext(ctx).Model(&models.TransactionModel{}), filter).
		Order(cursorOrder).
		Offset(offset).
		Limit(limit).
		Find(&txnModels).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return toDomainSlice(txnModels), nil
}

func applyFilter(query *gorm.DB, filter domain.TransactionFilter) *gorm.DB {
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PositiveAccount != "" {
		query = query.Where("positive_account = ?", filter.PositiveAccount)
	}
	if filter.NegativeAccount != "" {
		query = query.Where("negative_account = ?", filter.NegativeAccount)
	}
	if filter.BankID != "" {
		query = query.Where("bank_id = ?", filter.BankID)
	}
	if !filter.CreatedFrom.IsZero() {
		query = query.Where("created_at >= ?", filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		query = query.Where("created_at <= ?", filter.CreatedTo)
	}
	if filter.AmountMin > 0 {
		query = query.Where("amount >= ?", filter.AmountMin)
	}
	if filter.AmountMax > 0 {
		query = query.Where("amount <= ?", filter.AmountMax)
	}
	return query
}

func toDomainSlice(txnModels []models.TransactionModel) []*domain.Transaction {
	txns := make([]*domain.Transaction, len(txnModels))
	for i := range txnModels {
		txns[i] = mappers.ToDomainTransaction(&txnModels[i])
	}
	return txns
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

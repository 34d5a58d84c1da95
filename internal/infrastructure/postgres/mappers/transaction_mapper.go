package mappers

import (
	"github.com/finlane/ledger-service/internal/domain"
	"github.com/finlane/ledger-service/internal/infrastructure/postgres/models"
)

func ToDomainTransaction(model *models.TransactionModel) *domain.Transaction {
	return &domain.Transaction{
		ID:               model.ID,
		OrderID:          model.OrderID,
		MerchantTxID:     model.MerchantTxID,
		Type:             model.Type,
		Status:           model.Status,
		Amount:           model.Amount,
		PaidAmount:       model.PaidAmount,
		UnpaidAmount:     model.UnpaidAmount,
		PositiveAccount:  model.PositiveAccount,
		NegativeAccount:  model.NegativeAccount,
		BankID:           model.BankID,
		QRCode:           model.QRCode,
		CallbackURL:      model.CallbackURL,
		SuccessURL:       model.SuccessURL,
		FailedURL:        model.FailedURL,
		CanceledURL:      model.CanceledURL,
		CallbackNotified: model.CallbackNotified,
		Version:          model.Version,
		LastPaymentAt:    model.LastPaymentAt,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func ToGORMTransaction(txn *domain.Transaction) *models.TransactionModel {
	return &models.TransactionModel{
		ID:               txn.ID,
		OrderID:          txn.OrderID,
		MerchantTxID:     txn.MerchantTxID,
		Type:             txn.Type,
		Status:           txn.Status,
		Amount:           txn.Amount,
		PaidAmount:       txn.PaidAmount,
		UnpaidAmount:     txn.UnpaidAmount,
		PositiveAccount:  txn.PositiveAccount,
		NegativeAccount:  txn.NegativeAccount,
		BankID:           txn.BankID,
		QRCode:           txn.QRCode,
		CallbackURL:      txn.CallbackURL,
		SuccessURL:       txn.SuccessURL,
		FailedURL:        txn.FailedURL,
		CanceledURL:      txn.CanceledURL,
		CallbackNotified: txn.CallbackNotified,
		Version:          txn.Version,
		LastPaymentAt:    txn.LastPaymentAt,
		CreatedAt:        txn.CreatedAt,
		UpdatedAt:        txn.UpdatedAt,
	}
}

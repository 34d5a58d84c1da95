package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	"github.com/finlane/ledger-service/internal/usecase/ledger"
	txndto "github.com/finlane/ledger-service/internal/usecase/dto/transaction"
	"github.com/go-chi/chi"
)

type TransactionHandler struct {
	UC ledger.LedgerUsecase
}

func NewTransactionHandler(uc ledger.LedgerUsecase) *TransactionHandler {
	return &TransactionHandler{UC: uc}
}

type transactionResponse struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"order_id"`
	MerchantTxID     string     `json:"merchant_tx_id,omitempty"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	Amount           float64    `json:"amount"`
	PaidAmount       float64    `json:"paid_amount"`
	UnpaidAmount     float64    `json:"unpaid_amount"`
	PositiveAccount  string     `json:"positive_account,omitempty"`
	NegativeAccount  string     `json:"negative_account,omitempty"`
	BankID           string     `json:"bank_id,omitempty"`
	QRCode           string     `json:"qr_code,omitempty"`
	CallbackURL      string     `json:"callback_url,omitempty"`
	CallbackNotified *bool      `json:"callback_notified,omitempty"`
	LastPaymentAt    *time.Time `json:"last_payment_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toResponse(txn *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:               txn.ID,
		OrderID:          txn.OrderID,
		MerchantTxID:     txn.MerchantTxID,
		Type:             string(txn.Type),
		Status:           string(txn.Status),
		Amount:           txn.Amount,
		PaidAmount:       txn.PaidAmount,
		UnpaidAmount:     txn.UnpaidAmount,
		PositiveAccount:  txn.PositiveAccount,
		NegativeAccount:  txn.NegativeAccount,
		BankID:           txn.BankID,
		QRCode:           txn.QRCode,
		CallbackURL:      txn.CallbackURL,
		CallbackNotified: txn.CallbackNotified,
		LastPaymentAt:    txn.LastPaymentAt,
		CreatedAt:        txn.CreatedAt,
		UpdatedAt:        txn.UpdatedAt,
	}
}

type createTransactionRequest struct {
	MerchantTxID    string  `json:"merchant_tx_id"`
	Type            string  `json:"type"`
	Amount          float64 `json:"amount"`
	PositiveAccount string  `json:"positive_account"`
	NegativeAccount string  `json:"negative_account"`
	BankID          string  `json:"bank_id"`
	QRCode          string  `json:"qr_code"`
	CallbackURL     string  `json:"callback_url"`
	SuccessURL      string  `json:"success_url"`
	FailedURL       string  `json:"failed_url"`
	CanceledURL     string  `json:"canceled_url"`
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	txn, err := h.UC.CreateTransaction(r.Context(), &txndto.CreateTransactionInput{
		MerchantTxID:    req.MerchantTxID,
		Type:            domain.TransactionType(req.Type),
		Amount:          req.Amount,
		PositiveAccount: req.PositiveAccount,
		NegativeAccount: req.NegativeAccount,
		BankID:          req.BankID,
		QRCode:          req.QRCode,
		CallbackURL:     req.CallbackURL,
		SuccessURL:      req.SuccessURL,
		FailedURL:       req.FailedURL,
		CanceledURL:     req.CanceledURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"transaction": toResponse(txn),
	})
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	txn, err := h.UC.GetByOrderID(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"transaction": toResponse(txn),
	})
}

type applyPaymentRequest struct {
	Amount float64 `json:"amount"`
}

func (h *TransactionHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req applyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}

	result, err := h.UC.ApplyPayment(r.Context(), orderID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"applied":          result.Applied,
		"already_complete": result.AlreadyComplete,
		"completed":        result.Completed,
		"transaction":      toResponse(result.Transaction),
	})
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *TransactionHandler) Transition(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "id")

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	txn, err := h.UC.Transition(r.Context(), recordID, domain.TransactionStatus(req.Status))
	if errors.Is(err, domain.ErrNoOpTransition) {
		// Already there; callers treat this as success.
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"no_op":       true,
			"transaction": toResponse(txn),
		})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"transaction": toResponse(txn),
	})
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	input := &txndto.ListTransactionsInput{
		Filter:    parseFilter(r),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 50),
	}

	out, err := h.UC.ListTransactions(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]transactionResponse, len(out.Transactions))
	for i, txn := range out.Transactions {
		items[i] = toResponse(txn)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": items,
		"pagination": map[string]interface{}{
			"current_page":   out.Pagination.CurrentPage,
			"total_pages":    out.Pagination.TotalPages,
			"total_items":    out.Pagination.TotalItems,
			"items_per_page": out.Pagination.ItemsPerPage,
		},
	})
}

func (h *TransactionHandler) Count(w http.ResponseWriter, r *http.Request) {
	total, err := h.UC.CountMatching(r.Context(), parseFilter(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   total,
	})
}

// Export streams matching rows as NDJSON so the response size never has to
// fit in memory on either side.
func (h *TransactionHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")

	flusher, _ := w.(http.Flusher)
	encoder := json.NewEncoder(w)
	rows := 0

	_, err := h.UC.ExportMatching(r.Context(), parseFilter(r), func(txn *domain.Transaction) error {
		if err := encoder.Encode(toResponse(txn)); err != nil {
			return err
		}
		rows++
		if flusher != nil && rows%500 == 0 {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		if rows == 0 {
			writeDomainError(w, err)
			return
		}
		// Rows are already on the wire; an error body here would corrupt the
		// stream. Cut it short and let the client detect the truncation.
		slog.Error("export aborted mid-stream", "rows", rows, "error", err.Error())
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}

func (h *TransactionHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.UC.SweepExpired(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processed": report.Processed,
		"failed":    report.Failed,
		"errors":    report.Errors,
	})
}

func parseFilter(r *http.Request) domain.TransactionFilter {
	q := r.URL.Query()
	filter := domain.TransactionFilter{
		Type:            domain.TransactionType(q.Get("type")),
		Status:          domain.TransactionStatus(q.Get("status")),
		PositiveAccount: q.Get("positive_account"),
		NegativeAccount: q.Get("negative_account"),
		BankID:          q.Get("bank_id"),
	}
	if v := q.Get("created_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedFrom = t
		}
	}
	if v := q.Get("created_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedTo = t
		}
	}
	if v := q.Get("amount_min"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.AmountMin = f
		}
	}
	if v := q.Get("amount_max"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.AmountMax = f
		}
	}
	return filter
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"kind":    kind,
		"error":   message,
	})
}

// writeDomainError keeps financial-state conflicts distinguishable from
// infrastructure failures so the dashboard can decide whether to offer a
// retry.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrTerminalState):
		writeError(w, http.StatusConflict, "terminal_conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrDuplicateOrder):
		writeError(w, http.StatusConflict, "duplicate_order", err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, domain.ErrResourceExhausted):
		writeError(w, http.StatusInsufficientStorage, "resource_exhausted", err.Error())
	case errors.Is(err, domain.ErrStore):
		writeError(w, http.StatusServiceUnavailable, "store_error", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	}
}

package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"ledger-service/internal/domain"
	"ledger-service/internal/errors"
	"ledger-service/internal/service"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
}

func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

type TransactionRequest struct {
	Amount    *decimal.Decimal `json:"amount"`
	Type      string           `json:"type"`
	AccountID *int64           `json:"accountId"`
}

func (req TransactionRequest) toService() (service.TransactionRequest, error) {
	if req.Amount == nil {
		return service.TransactionRequest{}, errors.NewAppError(errors.InvalidAmount, "amount cannot be null")
	}
	return service.TransactionRequest{
		Amount:    *req.Amount,
		Type:      req.Type,
		AccountID: req.AccountID,
	}, nil
}

func (h *TransactionHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	rows, err := h.transactionService.ListSummaries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Fetched all transactions", rows)
}

func (h *TransactionHandler) ListByType(w http.ResponseWriter, r *http.Request) {
	rows, err := h.transactionService.ListByType(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Fetched transactions by type", rows)
}

// Projection serves the dynamic projection: ?amount=<decimal>&type=summary|with_account.
func (h *TransactionHandler) Projection(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var amount *decimal.Decimal
	if raw := strings.TrimSpace(query.Get("amount")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
			return
		}
		amount = &parsed
	}

	result, err := h.transactionService.ListByAmountGreaterThan(r.Context(), amount, query.Get("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Dynamic projection fetched", result)
}

func (h *TransactionHandler) Paged(w http.ResponseWriter, r *http.Request) {
	req, err := parsePageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.transactionService.PageSummaries(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Fetched all transactions", page)
}

func parsePageRequest(r *http.Request) (domain.PageRequest, error) {
	page, err := queryInt(r, "page", domain.DefaultPage)
	if err != nil {
		return domain.PageRequest{}, err
	}
	size, err := queryInt(r, "size", domain.DefaultPageSize)
	if err != nil {
		return domain.PageRequest{}, err
	}
	direction, err := domain.ParseSortDirection(r.URL.Query().Get("direction"))
	if err != nil {
		return domain.PageRequest{}, err
	}
	sortBy, err := domain.ParseSortField(r.URL.Query().Get("sortBy"))
	if err != nil {
		return domain.PageRequest{}, err
	}
	return domain.PageRequest{
		Page:      page,
		Size:      size,
		Direction: direction,
		SortBy:    sortBy,
	}, nil
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var body TransactionRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.transactionService.CreateTransaction(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Transaction created", tx)
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.transactionService.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Transaction found", tx)
}

func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body TransactionRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.transactionService.UpdateTransaction(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Transaction updated", tx)
}

func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Transaction deleted", fmt.Sprintf("Deleted transaction ID = %d", id))
}

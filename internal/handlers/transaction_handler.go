package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/peerpay/backend/internal/models"
	"github.com/peerpay/backend/internal/services"
	"github.com/shopspring/decimal"
)

const maxIdempotencyKeyLength = 255

// CreateTransactionRequest is the body of POST /transactions. Card fields
// are only required for live-mode senders.
// @Description Transfer request structure
type CreateTransactionRequest struct {
	ReceiverID     int64           `json:"receiver_id" example:"2"`                          // Receiver user id
	Amount         decimal.Decimal `json:"amount" swaggertype:"string" example:"25.00"`      // Amount, at most two decimals
	CardNumber     string          `json:"card_number,omitempty" example:"4242424242424242"` // Live mode only
	Expiry         string          `json:"expiry,omitempty" example:"12/30"`                 // MM/YY
	CVV            string          `json:"cvv,omitempty" example:"123"`                      // 3 or 4 digits
	IdempotencyKey string          `json:"idempotency_key,omitempty" example:"7f9c2b"`       // Alternative to the Idempotency-Key header
}

type TransactionHandler struct {
	transfers Transferrer
	history   HistoryReader
	receipts  ReceiptBuilder
}

func NewTransactionHandler(transfers Transferrer, history HistoryReader, receipts ReceiptBuilder) *TransactionHandler {
	return &TransactionHandler{
		transfers: transfers,
		history:   history,
		receipts:  receipts,
	}
}

// CreateTransaction sends money to another user
// @Summary Send money
// @Description Transfer funds to another user. Live-mode senders must include card details.
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body CreateTransactionRequest true "Transfer request"
// @Success 201 {object} models.TransactionRecord
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /transactions [post]
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	key, err := idempotencyKey(r, req.IdempotencyKey)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	log.Printf("[TRANSFER] Request from user %d to user %d", userID, req.ReceiverID)
	rec, err := h.transfers.Transfer(r.Context(), services.TransferRequest{
		SenderID:       userID,
		ReceiverID:     req.ReceiverID,
		Amount:         req.Amount,
		Instrument:     models.NewFundingInstrument(req.CardNumber, req.Expiry, req.CVV),
		IdempotencyKey: key,
	})
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusCreated, rec)
}

// ListTransactions returns the caller's history, newest first
// @Summary List transactions
// @Description Keyset-paginated history of transfers and fundings the caller is party to
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param cursor query string false "Cursor from the previous page"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} models.TransactionPage
// @Failure 400 {object} services.ErrorResponse
// @Router /transactions [get]
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	page, err := h.history.ListTransactions(r.Context(), userID, services.Pagination{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, page)
}

// GetTransaction returns one record by reference
// @Summary Get transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Transaction reference"
// @Success 200 {object} models.TransactionRecord
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{reference} [get]
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	rec, err := h.history.GetTransaction(r.Context(), userID, chi.URLParam(r, "reference"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, rec)
}

// GetReceipt exports a record as ISO 20022 XML
// @Summary ISO 20022 receipt
// @Description pacs.008 for completed transfers (default) or a pacs.002 status report
// @Tags transactions
// @Produce xml
// @Security BearerAuth
// @Param reference path string true "Transaction reference"
// @Param message query string false "pacs.008.001.08 or pacs.002.001.08"
// @Success 200 {string} string "XML document"
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{reference}/iso20022 [get]
func (h *TransactionHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	doc, err := h.receipts.Receipt(r.Context(), userID, chi.URLParam(r, "reference"), r.URL.Query().Get("message"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

// idempotencyKey prefers the header; a body field that disagrees with it
// is rejected.
func idempotencyKey(r *http.Request, bodyKey string) (string, error) {
	headerKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	bodyKey = strings.TrimSpace(bodyKey)

	key := headerKey
	if key == "" {
		key = bodyKey
	} else if bodyKey != "" && bodyKey != headerKey {
		return "", services.ErrInvalidRequest.WithMessage("Idempotency-Key header and idempotency_key field differ")
	}
	if len(key) > maxIdempotencyKeyLength {
		return "", services.ErrInvalidRequest.WithMessage("Idempotency key must be at most %d characters", maxIdempotencyKeyLength)
	}
	return key, nil
}

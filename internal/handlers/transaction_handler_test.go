package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/peerpay/backend/internal/models"
	"github.com/peerpay/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func transactionRouter(h *TransactionHandler, userID int64) http.Handler {
	r := chi.NewRouter()
	r.Use(asUser(userID))
	r.Post("/transactions", h.CreateTransaction)
	r.Get("/transactions", h.ListTransactions)
	r.Get("/transactions/{reference}", h.GetTransaction)
	r.Get("/transactions/{reference}/iso20022", h.GetReceipt)
	return r
}

func TestTransactionHandler_CreateTransaction(t *testing.T) {
	t.Run("string amount and header idempotency key", func(t *testing.T) {
		transfers := &MockTransferrer{}
		h := NewTransactionHandler(transfers, &MockHistory{}, &MockReceipts{})

		transfers.On("Transfer", mock.Anything, mock.MatchedBy(func(req services.TransferRequest) bool {
			return req.SenderID == 1 && req.ReceiverID == 2 &&
				req.Amount.Equal(decimal.RequireFromString("25.5")) &&
				req.IdempotencyKey == "abc" && req.Instrument == nil
		})).Return(&models.TransactionRecord{Reference: "ref-1", Status: models.TransactionStatusCompleted}, nil)

		body := `{"receiver_id":2,"amount":"25.50","card_number":"","expiry":"","cvv":""}`
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "abc")
		w := httptest.NewRecorder()

		transactionRouter(h, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var rec models.TransactionRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, "ref-1", rec.Reference)
		transfers.AssertExpectations(t)
	})

	t.Run("conflicting idempotency keys", func(t *testing.T) {
		transfers := &MockTransferrer{}
		h := NewTransactionHandler(transfers, &MockHistory{}, &MockReceipts{})

		body := `{"receiver_id":2,"amount":"1","idempotency_key":"xyz"}`
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "abc")
		w := httptest.NewRecorder()

		transactionRouter(h, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		transfers.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})

	t.Run("service errors map to status codes", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
			kind   services.ErrorKind
		}{
			{services.ErrSelfTransfer, http.StatusBadRequest, services.KindValidation},
			{services.ErrReceiverNotFound, http.StatusNotFound, services.KindNotFound},
			{services.ErrInsufficientFunds, http.StatusUnprocessableEntity, services.KindInsufficientFunds},
			{services.ErrInstrumentRequired, http.StatusPaymentRequired, services.KindInstrument},
			{services.ErrIdempotencyConflict, http.StatusConflict, services.KindConflict},
		}
		for _, tc := range cases {
			transfers := &MockTransferrer{}
			transfers.On("Transfer", mock.Anything, mock.Anything).Return(nil, tc.err)
			h := NewTransactionHandler(transfers, &MockHistory{}, &MockReceipts{})

			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{"receiver_id":2,"amount":10}`))
			w := httptest.NewRecorder()
			transactionRouter(h, 1).ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code, string(tc.kind))
			var resp services.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.kind, resp.Kind)
		}
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		h := NewTransactionHandler(&MockTransferrer{}, &MockHistory{}, &MockReceipts{})

		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{"receiver_id":2,"amount":"1","memo":"hi"}`))
		w := httptest.NewRecorder()
		transactionRouter(h, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := NewTransactionHandler(&MockTransferrer{}, &MockHistory{}, &MockReceipts{})

		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		h.CreateTransaction(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTransactionHandler_History(t *testing.T) {
	t.Run("list passes cursor and limit", func(t *testing.T) {
		history := &MockHistory{}
		h := NewTransactionHandler(&MockTransferrer{}, history, &MockReceipts{})

		history.On("ListTransactions", mock.Anything, int64(1), services.Pagination{Cursor: "c1", Limit: 5}).
			Return(&models.TransactionPage{Transactions: []models.TransactionRecord{}, NextCursor: "c2"}, nil)

		req := httptest.NewRequest(http.MethodGet, "/transactions?cursor=c1&limit=5", nil)
		w := httptest.NewRecorder()
		transactionRouter(h, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"next_cursor":"c2"`)
		history.AssertExpectations(t)
	})

	t.Run("non-numeric limit", func(t *testing.T) {
		h := NewTransactionHandler(&MockTransferrer{}, &MockHistory{}, &MockReceipts{})

		req := httptest.NewRequest(http.MethodGet, "/transactions?limit=ten", nil)
		w := httptest.NewRecorder()
		transactionRouter(h, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get by reference", func(t *testing.T) {
		history := &MockHistory{}
		h := NewTransactionHandler(&MockTransferrer{}, history, &MockReceipts{})

		history.On("GetTransaction", mock.Anything, int64(1), "ref-9").
			Return(nil, services.ErrTxNotFound)

		req := httptest.NewRequest(http.MethodGet, "/transactions/ref-9", nil)
		w := httptest.NewRecorder()
		transactionRouter(h, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("receipt is xml", func(t *testing.T) {
		receipts := &MockReceipts{}
		h := NewTransactionHandler(&MockTransferrer{}, &MockHistory{}, receipts)

		receipts.On("Receipt", mock.Anything, int64(1), "ref-9", "pacs.002.001.08").
			Return("<?xml version=\"1.0\"?><Document/>", nil)

		req := httptest.NewRequest(http.MethodGet, "/transactions/ref-9/iso20022?message=pacs.002.001.08", nil)
		w := httptest.NewRecorder()
		transactionRouter(h, 1).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
		assert.Contains(t, w.Body.String(), "<Document/>")
	})
}

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/peerpay/backend/internal/models"
	"github.com/peerpay/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestFundingHandler(t *testing.T) {
	body := `{"card_number":"4242 4242 4242 4242","expiry":"12/30","cvv":"123","amount":"50.00"}`

	t.Run("simulated payment is test-only", func(t *testing.T) {
		funder := &MockFunder{}
		h := NewFundingHandler(funder)

		funder.On("Fund", mock.Anything, mock.MatchedBy(func(req services.FundingRequest) bool {
			return req.OwnerID == 4 && req.TestOnly && req.Instrument.CardNumber == "4242424242424242"
		})).Return(&models.TransactionRecord{Reference: "ref-f"}, nil)

		r := chi.NewRouter()
		r.Use(asUser(4))
		r.Post("/simulate-card-payment", h.SimulateCardPayment)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/simulate-card-payment", strings.NewReader(body)))

		assert.Equal(t, http.StatusCreated, w.Code)
		funder.AssertExpectations(t)
	})

	t.Run("funding route allows live accounts", func(t *testing.T) {
		funder := &MockFunder{}
		h := NewFundingHandler(funder)

		funder.On("Fund", mock.Anything, mock.MatchedBy(func(req services.FundingRequest) bool {
			return !req.TestOnly
		})).Return(nil, services.ErrProcessorDeclined)

		r := chi.NewRouter()
		r.Use(asUser(4))
		r.Post("/fundings", h.CreateFunding)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/fundings", strings.NewReader(body)))

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
	})
}

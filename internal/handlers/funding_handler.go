package handlers

import (
	"net/http"

	"github.com/peerpay/backend/internal/models"
	"github.com/peerpay/backend/internal/services"
	"github.com/shopspring/decimal"
)

// FundingRequestBody is the body of both funding routes.
// @Description Card funding request structure
type FundingRequestBody struct {
	CardNumber     string          `json:"card_number" example:"4242424242424242"`
	Expiry         string          `json:"expiry" example:"12/30"`
	CVV            string          `json:"cvv" example:"123"`
	Amount         decimal.Decimal `json:"amount" swaggertype:"string" example:"50.00"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type FundingHandler struct {
	funding Funder
}

func NewFundingHandler(funding Funder) *FundingHandler {
	return &FundingHandler{funding: funding}
}

// SimulateCardPayment adds test funds
// @Summary Simulate card payment
// @Description Credit a test-mode account from a simulated card. Live accounts are rejected.
// @Tags funding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body FundingRequestBody true "Funding request"
// @Success 201 {object} models.TransactionRecord
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /simulate-card-payment [post]
func (h *FundingHandler) SimulateCardPayment(w http.ResponseWriter, r *http.Request) {
	h.fund(w, r, true)
}

// CreateFunding charges a card and credits the account
// @Summary Fund account
// @Description Credit the caller's account from a card. Live accounts are charged through the processor.
// @Tags funding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body FundingRequestBody true "Funding request"
// @Success 201 {object} models.TransactionRecord
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Failure 504 {object} services.ErrorResponse
// @Router /fundings [post]
func (h *FundingHandler) CreateFunding(w http.ResponseWriter, r *http.Request) {
	h.fund(w, r, false)
}

func (h *FundingHandler) fund(w http.ResponseWriter, r *http.Request, testOnly bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req FundingRequestBody
	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	key, err := idempotencyKey(r, req.IdempotencyKey)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	rec, err := h.funding.Fund(r.Context(), services.FundingRequest{
		OwnerID:        userID,
		Instrument:     models.NewFundingInstrument(req.CardNumber, req.Expiry, req.CVV),
		Amount:         req.Amount,
		IdempotencyKey: key,
		TestOnly:       testOnly,
	})
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusCreated, rec)
}

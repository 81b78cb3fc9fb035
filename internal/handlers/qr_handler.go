package handlers

import (
	"net/http"

	"github.com/peerpay/backend/internal/services"
	"github.com/shopspring/decimal"
)

type QRHandler struct {
	service   PaymentRequester
	validator *services.ValidationHelper
}

func NewQRHandler(service PaymentRequester) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR generates a QR code requesting an amount
// @Summary Generate QR Code
// @Description Generate a single-use QR code asking for the given amount, valid for five minutes
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=string} true "QR generation request"
// @Success 200 {object} services.GeneratedQR
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	qr, err := h.service.GenerateQRCode(r.Context(), userID, req.Amount)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, qr)
}

// ProcessQR resolves a scanned QR code
// @Summary Process QR Code
// @Description Redeem a scanned code; the result is submitted to POST /transactions
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{qrData=string} true "QR processing request"
// @Success 200 {object} services.PaymentRequest
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		QRData string `json:"qrData" validate:"required"`
	}
	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ProcessQRCode(r.Context(), userID, req.QRData)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, result)
}

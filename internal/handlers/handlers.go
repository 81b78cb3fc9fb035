package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/peerpay/backend/internal/middleware"
	"github.com/peerpay/backend/internal/models"
	"github.com/peerpay/backend/internal/services"
	"github.com/shopspring/decimal"
)

// Transferrer moves money between users.
type Transferrer interface {
	Transfer(ctx context.Context, req services.TransferRequest) (*models.TransactionRecord, error)
}

// Funder credits an account from a card.
type Funder interface {
	Fund(ctx context.Context, req services.FundingRequest) (*models.TransactionRecord, error)
}

// HistoryReader lists and loads transaction records.
type HistoryReader interface {
	ListTransactions(ctx context.Context, userID int64, page services.Pagination) (*models.TransactionPage, error)
	GetTransaction(ctx context.Context, userID int64, reference string) (*models.TransactionRecord, error)
}

// ReceiptBuilder renders ISO 20022 messages for a record.
type ReceiptBuilder interface {
	Receipt(ctx context.Context, userID int64, reference, messageType string) (string, error)
}

// DirectorySearcher finds receivers by username.
type DirectorySearcher interface {
	Search(ctx context.Context, requesterID int64, query string, limit int) ([]models.DirectoryEntry, error)
}

// Authenticator covers registration, login and profile lookups.
type Authenticator interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.Profile, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, userID int64) (*models.Profile, error)
}

// PaymentRequester issues and redeems QR payment requests.
type PaymentRequester interface {
	GenerateQRCode(ctx context.Context, userID int64, amount decimal.Decimal) (*services.GeneratedQR, error)
	ProcessQRCode(ctx context.Context, payerID int64, code string) (*services.PaymentRequest, error)
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Logout successful"`
}

// currentUser returns the authenticated user id or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok || session.UserID <= 0 {
		services.SendAppError(w, services.ErrUnauthorized)
		return 0, false
	}
	return session.UserID, true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, services.ErrInvalidRequest.WithMessage("Query parameter %q must be an integer", name).Wrap(err)
	}
	return n, nil
}

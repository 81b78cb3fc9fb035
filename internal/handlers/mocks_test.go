package handlers

import (
	"context"
	"net/http"

	"github.com/peerpay/backend/internal/middleware"
	"github.com/peerpay/backend/internal/models"
	"github.com/peerpay/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockTransferrer struct {
	mock.Mock
}

func (m *MockTransferrer) Transfer(ctx context.Context, req services.TransferRequest) (*models.TransactionRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionRecord), args.Error(1)
}

type MockFunder struct {
	mock.Mock
}

func (m *MockFunder) Fund(ctx context.Context, req services.FundingRequest) (*models.TransactionRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionRecord), args.Error(1)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) ListTransactions(ctx context.Context, userID int64, page services.Pagination) (*models.TransactionPage, error) {
	args := m.Called(ctx, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionPage), args.Error(1)
}

func (m *MockHistory) GetTransaction(ctx context.Context, userID int64, reference string) (*models.TransactionRecord, error) {
	args := m.Called(ctx, userID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionRecord), args.Error(1)
}

type MockReceipts struct {
	mock.Mock
}

func (m *MockReceipts) Receipt(ctx context.Context, userID int64, reference, messageType string) (string, error) {
	args := m.Called(ctx, userID, reference, messageType)
	return args.String(0), args.Error(1)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Search(ctx context.Context, requesterID int64, query string, limit int) ([]models.DirectoryEntry, error) {
	args := m.Called(ctx, requesterID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DirectoryEntry), args.Error(1)
}

type MockAuth struct {
	mock.Mock
}

func (m *MockAuth) Register(ctx context.Context, req services.RegisterRequest) (*models.Profile, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockAuth) Login(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResponse), args.Error(1)
}

func (m *MockAuth) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockAuth) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

type MockPaymentRequester struct {
	mock.Mock
}

func (m *MockPaymentRequester) GenerateQRCode(ctx context.Context, userID int64, amount decimal.Decimal) (*services.GeneratedQR, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.GeneratedQR), args.Error(1)
}

func (m *MockPaymentRequester) ProcessQRCode(ctx context.Context, payerID int64, code string) (*services.PaymentRequest, error) {
	args := m.Called(ctx, payerID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PaymentRequest), args.Error(1)
}

// asUser stands in for the auth middleware.
func asUser(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithSession(r.Context(), &middleware.Session{UserID: userID, Token: "test-token"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

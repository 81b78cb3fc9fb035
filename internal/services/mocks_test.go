package services

import (
	"context"
	"time"

	"github.com/peerpay/backend/internal/config"
	"github.com/peerpay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogTransfer(reference string, fromAccount, toAccount int64, amount decimal.Decimal, status string) {
	m.Called(reference, fromAccount, toAccount, amount, status)
}

func (m *MockAuditLogger) LogFunding(reference string, accountID int64, amount decimal.Decimal, cardLast4, status string) {
	m.Called(reference, accountID, amount, cardLast4, status)
}

func (m *MockAuditLogger) LogError(reference string, accountID int64, err error) {
	m.Called(reference, accountID, err)
}

// newAuditMock accepts any audit call; tests assert on specific calls
// with AssertCalled where it matters.
func newAuditMock() *MockAuditLogger {
	m := &MockAuditLogger{}
	m.On("LogTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("LogFunding", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("LogError", mock.Anything, mock.Anything, mock.Anything).Maybe()
	return m
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Verify(ctx context.Context, req ChargeRequest) (*ProcessorResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProcessorResult), args.Error(1)
}

func (m *MockProcessor) Charge(ctx context.Context, req ChargeRequest) (*ProcessorResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProcessorResult), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, rec *models.TransactionRecord) {
	m.Called(ctx, rec)
}

func testLedgerConfig() *config.LedgerConfig {
	return &config.LedgerConfig{
		Currency:              "USD",
		OperationTimeout:      5 * time.Second,
		DirectoryDefaultLimit: 10,
		DirectoryMaxLimit:     50,
		HistoryDefaultLimit:   20,
		HistoryMaxLimit:       100,
		QRRequestTTL:          5 * time.Minute,
		EventsQueue:           "transaction_events",
		VerifyMaxRetries:      3,
	}
}

var accountCols = []string{"id", "owner_id", "balance", "currency", "mode", "status", "version", "created_at", "updated_at"}

var recordCols = []string{"id", "reference", "type", "amount", "currency", "sender_account_id", "receiver_account_id",
	"status", "failure_reason", "idempotency_key", "initiator_account_id", "card_last4",
	"processor_reference", "created_at", "completed_at"}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func stringPtr(s string) *string {
	return &s
}

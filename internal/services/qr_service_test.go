package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRService_GenerateQRCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	cfg := testLedgerConfig()
	auth := NewAuthService(db, redisClient, NewLedgerService(db), cfg)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service := NewQRService(redisClient, auth, cfg)
	service.now = func() time.Time { return now }
	service.newCode = func() (string, error) { return "code-1", nil }

	mock.ExpectQuery("SELECT u.id, u.username (.+) FROM users u JOIN accounts a").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "name", "address", "user_type", "created_at",
			"account_id", "balance", "currency", "mode"}).
			AddRow(int64(2), "bob", "bob@example.com", "Bob", "", "user", now, int64(20), "0", "USD", "test"))

	payload, err := json.Marshal(PaymentRequest{
		ReceiverID: 2,
		Username:   "bob",
		Amount:     mustDecimal("12.50"),
		Currency:   "USD",
		ExpiresAt:  now.Add(cfg.QRRequestTTL),
	})
	require.NoError(t, err)
	redisMock.ExpectSet("qr:code-1", string(payload), cfg.QRRequestTTL).SetVal("OK")

	qr, err := service.GenerateQRCode(context.Background(), 2, mustDecimal("12.50"))
	require.NoError(t, err)
	assert.Equal(t, "code-1", qr.QRCode)
	assert.NotEmpty(t, qr.QRImage)
	assert.Equal(t, now.Add(cfg.QRRequestTTL), qr.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestQRService_ProcessQRCode(t *testing.T) {
	ctx := context.Background()
	payload := `{"receiver_id":2,"username":"bob","amount":"12.50","currency":"USD","expires_at":"2025-03-01T12:05:00Z"}`

	t.Run("first scan consumes the code", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewQRService(redisClient, nil, testLedgerConfig())

		redisMock.ExpectGet("qr:code-1").SetVal(payload)
		redisMock.ExpectDel("qr:code-1").SetVal(1)

		req, err := service.ProcessQRCode(ctx, 1, "code-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), req.ReceiverID)
		assert.True(t, req.Amount.Equal(mustDecimal("12.5")))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("concurrent scan loses the delete", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewQRService(redisClient, nil, testLedgerConfig())

		redisMock.ExpectGet("qr:code-1").SetVal(payload)
		redisMock.ExpectDel("qr:code-1").SetVal(0)

		_, err := service.ProcessQRCode(ctx, 1, "code-1")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("expired code", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewQRService(redisClient, nil, testLedgerConfig())

		redisMock.ExpectGet("qr:gone").RedisNil()

		_, err := service.ProcessQRCode(ctx, 1, "gone")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("own code is not consumed", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewQRService(redisClient, nil, testLedgerConfig())

		redisMock.ExpectGet("qr:code-1").SetVal(payload)

		_, err := service.ProcessQRCode(ctx, 2, "code-1")
		assert.ErrorIs(t, err, ErrSelfTransfer)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("redis down", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewQRService(redisClient, nil, testLedgerConfig())

		redisMock.ExpectGet("qr:code-1").SetErr(errors.New("connection refused"))

		_, err := service.ProcessQRCode(ctx, 1, "code-1")
		assert.Equal(t, KindUnavailable, ErrorKindOf(err))
	})
}

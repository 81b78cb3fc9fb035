package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/peerpay/backend/internal/config"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// PaymentRequest is what a scanned code resolves to. The payer submits it
// as an ordinary transfer.
type PaymentRequest struct {
	ReceiverID int64           `json:"receiver_id" example:"2"`
	Username   string          `json:"username" example:"bob"`
	Amount     decimal.Decimal `json:"amount" swaggertype:"string" example:"12.50"`
	Currency   string          `json:"currency" example:"USD"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// GeneratedQR carries the code and a PNG rendering of it.
type GeneratedQR struct {
	QRCode    string    `json:"qrCode"`
	QRImage   string    `json:"qrImage"` // base64 PNG
	ExpiresAt time.Time `json:"expires_at"`
}

// QRService issues single-use "request money" codes backed by Redis.
type QRService struct {
	redis     *redis.Client
	auth      *AuthService
	validator *ValidationHelper
	cfg       *config.LedgerConfig
	now       func() time.Time
	newCode   func() (string, error)
}

func NewQRService(redis *redis.Client, auth *AuthService, cfg *config.LedgerConfig) *QRService {
	return &QRService{
		redis:     redis,
		auth:      auth,
		validator: NewValidationHelper(),
		cfg:       cfg,
		now:       time.Now,
		newCode:   generateNonce,
	}
}

func (s *QRService) GenerateQRCode(ctx context.Context, userID int64, amount decimal.Decimal) (*GeneratedQR, error) {
	if s.redis == nil {
		return nil, ErrUnavailable.WithMessage("Payment requests are unavailable")
	}
	if err := s.validator.ValidateAmount(amount); err != nil {
		return nil, err
	}

	profile, err := s.auth.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	req := PaymentRequest{
		ReceiverID: userID,
		Username:   profile.Username,
		Amount:     amount,
		Currency:   profile.Currency,
		ExpiresAt:  s.now().Add(s.cfg.QRRequestTTL),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	code, err := s.newCode()
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, qrKey(code), string(data), s.cfg.QRRequestTTL).Err(); err != nil {
		return nil, ErrUnavailable.Wrap(err)
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, err
	}

	log.Printf("[QR] Payment request for %s %s issued by user %d", amount.StringFixed(2), req.Currency, userID)
	return &GeneratedQR{
		QRCode:    code,
		QRImage:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		ExpiresAt: req.ExpiresAt,
	}, nil
}

// ProcessQRCode resolves and consumes a code. Only the first caller to
// delete the key gets the request.
func (s *QRService) ProcessQRCode(ctx context.Context, payerID int64, code string) (*PaymentRequest, error) {
	if s.redis == nil {
		return nil, ErrUnavailable.WithMessage("Payment requests are unavailable")
	}
	key := qrKey(code)

	data, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrInvalidRequest.WithMessage("Invalid or expired QR code")
	}
	if err != nil {
		return nil, ErrUnavailable.Wrap(err)
	}

	var req PaymentRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("decode payment request: %w", err)
	}
	if req.ReceiverID == payerID {
		return nil, ErrSelfTransfer
	}

	deleted, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return nil, ErrUnavailable.Wrap(err)
	}
	if deleted == 0 {
		return nil, ErrInvalidRequest.WithMessage("Invalid or expired QR code")
	}
	return &req, nil
}

func qrKey(code string) string {
	return "qr:" + code
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

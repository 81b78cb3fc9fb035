package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/peerpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

// ChargeRequest is what the processor sees of a funding or transfer. The
// reference doubles as the processor-side idempotency key.
type ChargeRequest struct {
	Reference  string
	Amount     decimal.Decimal
	Currency   string
	Instrument *models.FundingInstrument
}

// ProcessorResult is the processor's verdict. A decline is a result, not an error.
type ProcessorResult struct {
	Approved      bool   `json:"approved"`
	Reference     string `json:"reference"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

// PaymentProcessor verifies and charges cards for live-mode accounts.
type PaymentProcessor interface {
	// Verify is idempotent and may be retried.
	Verify(ctx context.Context, req ChargeRequest) (*ProcessorResult, error)
	// Charge moves money and must not be retried blindly.
	Charge(ctx context.Context, req ChargeRequest) (*ProcessorResult, error)
}

// HTTPProcessor talks to the live processor over JSON/HTTP.
type HTTPProcessor struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	maxRetries    uint64
	retryInterval time.Duration
}

func NewHTTPProcessor(baseURL, apiKey string, timeout time.Duration, maxRetries int) *HTTPProcessor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPProcessor{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:    uint64(maxRetries),
		retryInterval: 200 * time.Millisecond,
	}
}

type processorPayload struct {
	Reference  string `json:"reference"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

// statusError is a non-2xx answer that is not a decline.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("processor returned status %d: %s", e.StatusCode, e.Body)
}

func (p *HTTPProcessor) Verify(ctx context.Context, req ChargeRequest) (*ProcessorResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, p.maxRetries), ctx)

	attempt := 0
	return backoff.RetryWithData(func() (*ProcessorResult, error) {
		attempt++
		res, err := p.post(ctx, "/v1/verify", req)
		if err == nil {
			return res, nil
		}
		var se *statusError
		if errors.As(err, &se) && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		log.Printf("[PROCESSOR] Verify attempt %d for %s failed: %v", attempt, req.Reference, err)
		return nil, err
	}, policy)
}

func (p *HTTPProcessor) Charge(ctx context.Context, req ChargeRequest) (*ProcessorResult, error) {
	return p.post(ctx, "/v1/charges", req)
}

func (p *HTTPProcessor) post(ctx context.Context, path string, req ChargeRequest) (*ProcessorResult, error) {
	payload := processorPayload{
		Reference: req.Reference,
		Amount:    req.Amount.StringFixed(2),
		Currency:  req.Currency,
	}
	if req.Instrument != nil {
		payload.CardNumber = req.Instrument.CardNumber
		payload.Expiry = req.Instrument.Expiry
		payload.CVV = req.Instrument.CVV
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.Reference)
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach processor: %w", err)
	}
	defer resp.Body.Close()

	// 402 carries a decline body like a 200 does.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPaymentRequired {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &statusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var result ProcessorResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode processor response: %w", err)
	}
	if !result.Approved && result.DeclineReason == "" {
		result.DeclineReason = "declined"
	}
	return &result, nil
}

// SandboxProcessor approves everything except cards ending in 0002, the
// conventional "always declines" test number. Used when no processor URL
// is configured.
type SandboxProcessor struct{}

func NewSandboxProcessor() *SandboxProcessor {
	return &SandboxProcessor{}
}

func (s *SandboxProcessor) Verify(ctx context.Context, req ChargeRequest) (*ProcessorResult, error) {
	return s.decide(ctx, req)
}

func (s *SandboxProcessor) Charge(ctx context.Context, req ChargeRequest) (*ProcessorResult, error) {
	return s.decide(ctx, req)
}

func (s *SandboxProcessor) decide(ctx context.Context, req ChargeRequest) (*ProcessorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Instrument != nil && strings.HasSuffix(req.Instrument.CardNumber, "0002") {
		return &ProcessorResult{Approved: false, DeclineReason: "card_declined"}, nil
	}
	return &ProcessorResult{Approved: true, Reference: "sbx_" + uuid.NewString()}, nil
}

// processorFailure maps a transport failure to TIMEOUT or UNAVAILABLE.
func processorFailure(err error) *AppError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ErrTimeout.WithMessage("Payment processor timed out").Wrap(err)
	}
	return ErrUnavailable.WithMessage("Payment processor unavailable").Wrap(err)
}

func declineError(res *ProcessorResult) *AppError {
	return ErrProcessorDeclined.WithMessage("Card was declined: %s", res.DeclineReason)
}

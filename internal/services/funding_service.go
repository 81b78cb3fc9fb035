package services

import (
	"context"
	"database/sql"
	"log"

	"github.com/peerpay/backend/internal/config"
	"github.com/peerpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

// FundingRequest tops up the owner's account from a card. TestOnly is set by
// the simulate-card-payment route, which refuses live accounts.
type FundingRequest struct {
	OwnerID        int64
	Instrument     *models.FundingInstrument
	Amount         decimal.Decimal
	IdempotencyKey string
	TestOnly       bool
}

// FundingService credits accounts from external cards. Test-mode accounts
// are credited directly; live-mode accounts are charged through the
// processor first.
type FundingService struct {
	ledger    *LedgerService
	records   *RecordStore
	processor PaymentProcessor
	validator *ValidationHelper
	audit     Auditor
	events    EventPublisher
	cfg       *config.LedgerConfig
}

func NewFundingService(ledger *LedgerService, records *RecordStore, processor PaymentProcessor, auditor Auditor, events EventPublisher, cfg *config.LedgerConfig) *FundingService {
	if events == nil {
		events = noopPublisher{}
	}
	return &FundingService{
		ledger:    ledger,
		records:   records,
		processor: processor,
		validator: NewValidationHelper(),
		audit:     auditor,
		events:    events,
		cfg:       cfg,
	}
}

func (s *FundingService) Fund(ctx context.Context, req FundingRequest) (*models.TransactionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	if err := s.validator.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	account, err := s.ledger.GetAccountByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if req.TestOnly && !account.IsTestMode() {
		return nil, ErrTestModeOnly
	}

	if err := s.validator.ValidateInstrument(req.Instrument, account.Mode); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.records.FindByIdempotencyKey(ctx, nil, account.ID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return replayRecord(existing, models.TransactionTypeFunding, account.ID, req.Amount)
		}
	}

	last4 := req.Instrument.Last4()
	rec := &models.TransactionRecord{
		Type:               models.TransactionTypeFunding,
		Amount:             req.Amount,
		Currency:           account.Currency,
		ReceiverAccountID:  account.ID,
		InitiatorAccountID: account.ID,
		IdempotencyKey:     optionalString(req.IdempotencyKey),
		CardLast4:          &last4,
	}

	if account.IsTestMode() {
		err = s.fundTest(ctx, account, rec)
	} else {
		err = s.fundLive(ctx, account, req.Instrument, rec)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return s.replayAfterRace(ctx, account.ID, req)
		}
		return nil, err
	}

	log.Printf("[FUNDING] Account %d funded with %s %s (%s)", account.ID, rec.Amount.StringFixed(2), rec.Currency, rec.Reference)
	s.audit.LogFunding(rec.Reference, account.ID, rec.Amount, last4, string(rec.Status))
	s.events.Publish(ctx, rec)
	return rec, nil
}

func (s *FundingService) fundTest(ctx context.Context, account *models.Account, rec *models.TransactionRecord) error {
	rec.Status = models.TransactionStatusCompleted
	return s.ledger.WithTx(ctx, func(tx *sql.Tx) error {
		return s.credit(ctx, tx, account.ID, rec, func() error {
			return s.records.Insert(ctx, tx, rec)
		})
	})
}

// fundLive commits a pending record before charging so an interrupted charge
// leaves a trace. Charge is never retried here; a retry with the same
// idempotency key gets the stored outcome instead of a second charge.
func (s *FundingService) fundLive(ctx context.Context, account *models.Account, inst *models.FundingInstrument, rec *models.TransactionRecord) error {
	rec.Status = models.TransactionStatusPending
	if err := s.records.Insert(ctx, nil, rec); err != nil {
		return err
	}

	res, err := s.processor.Charge(ctx, ChargeRequest{
		Reference:  rec.Reference,
		Amount:     rec.Amount,
		Currency:   rec.Currency,
		Instrument: inst,
	})
	if err != nil {
		log.Printf("[FUNDING] Charge for %s did not complete, record left pending: %v", rec.Reference, err)
		s.audit.LogError(rec.Reference, account.ID, err)
		return processorFailure(err)
	}

	if !res.Approved {
		if err := s.records.MarkFailed(ctx, nil, rec, res.DeclineReason); err != nil {
			log.Printf("[FUNDING] Failed to mark %s as failed: %v", rec.Reference, err)
		}
		s.audit.LogFunding(rec.Reference, account.ID, rec.Amount, *rec.CardLast4, string(models.TransactionStatusFailed))
		return declineError(res)
	}

	rec.ProcessorReference = optionalString(res.Reference)
	return s.ledger.WithTx(ctx, func(tx *sql.Tx) error {
		return s.credit(ctx, tx, account.ID, rec, func() error {
			return s.records.MarkCompleted(ctx, tx, rec)
		})
	})
}

// credit locks the account, applies the amount, persists the record through
// save and posts the CREDIT entry, all inside tx.
func (s *FundingService) credit(ctx context.Context, tx *sql.Tx, accountID int64, rec *models.TransactionRecord, save func() error) error {
	if _, err := s.ledger.LockAccounts(ctx, tx, accountID); err != nil {
		return err
	}
	newBalance, err := s.ledger.ApplyDelta(ctx, tx, accountID, rec.Amount, decimal.Zero)
	if err != nil {
		return err
	}
	if err := save(); err != nil {
		return err
	}
	return s.ledger.PostEntry(ctx, tx, &models.LedgerEntry{
		TransactionID: rec.ID,
		AccountID:     accountID,
		Amount:        rec.Amount,
		EntryType:     models.EntryTypeCredit,
		Balance:       newBalance,
	})
}

func (s *FundingService) replayAfterRace(ctx context.Context, accountID int64, req FundingRequest) (*models.TransactionRecord, error) {
	existing, err := s.records.FindByIdempotencyKey(ctx, nil, accountID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrInternal.WithMessage("Idempotency key collision could not be resolved")
	}
	return replayRecord(existing, models.TransactionTypeFunding, accountID, req.Amount)
}

// replayRecord returns the record stored under an idempotency key when the
// new request matches it, and a conflict otherwise. Only completed records
// replay as success: a failed one repeats its failure and a pending one
// reports that the outcome is still unknown.
func replayRecord(existing *models.TransactionRecord, typ models.TransactionType, receiverAccountID int64, amount decimal.Decimal) (*models.TransactionRecord, error) {
	if existing.Type != typ || existing.ReceiverAccountID != receiverAccountID || !existing.Amount.Equal(amount) {
		return nil, ErrIdempotencyConflict
	}
	log.Printf("[IDEMPOTENCY] Replaying %s %s (%s)", existing.Type, existing.Reference, existing.Status)

	switch existing.Status {
	case models.TransactionStatusCompleted:
		return existing, nil
	case models.TransactionStatusFailed:
		return nil, replayedFailure(existing)
	default:
		return nil, ErrTimeout.WithMessage("Transaction %s is still pending; retry later with the same idempotency key", existing.Reference)
	}
}

func replayedFailure(rec *models.TransactionRecord) *AppError {
	reason := "unknown"
	if rec.FailureReason != nil && *rec.FailureReason != "" {
		reason = *rec.FailureReason
	}
	if reason == "insufficient_funds" {
		return ErrInsufficientFunds
	}
	return declineError(&ProcessorResult{DeclineReason: reason})
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

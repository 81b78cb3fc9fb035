package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/peerpay/backend/internal/config"
	"github.com/peerpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

// TransferRequest moves money between two users. Sender and receiver are
// user ids; each user owns exactly one account.
type TransferRequest struct {
	SenderID       int64
	ReceiverID     int64
	Amount         decimal.Decimal
	Instrument     *models.FundingInstrument
	IdempotencyKey string
}

// TransferService debits the sender and credits the receiver in one
// database transaction and writes the transfer record alongside.
type TransferService struct {
	ledger    *LedgerService
	records   *RecordStore
	processor PaymentProcessor
	validator *ValidationHelper
	audit     Auditor
	events    EventPublisher
	cfg       *config.LedgerConfig
}

func NewTransferService(ledger *LedgerService, records *RecordStore, processor PaymentProcessor, auditor Auditor, events EventPublisher, cfg *config.LedgerConfig) *TransferService {
	if events == nil {
		events = noopPublisher{}
	}
	return &TransferService{
		ledger:    ledger,
		records:   records,
		processor: processor,
		validator: NewValidationHelper(),
		audit:     auditor,
		events:    events,
		cfg:       cfg,
	}
}

// Transfer validates in a fixed order so the first failing rule decides the
// error: self transfer, amount, receiver, idempotency replay, mode,
// instrument, balance.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*models.TransactionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	if req.SenderID == req.ReceiverID {
		return nil, ErrSelfTransfer
	}
	if err := s.validator.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	receiver, err := s.ledger.GetAccountByOwner(ctx, req.ReceiverID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrReceiverNotFound
	}
	if err != nil {
		return nil, err
	}

	sender, err := s.ledger.GetAccountByOwner(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.records.FindByIdempotencyKey(ctx, nil, sender.ID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return replayRecord(existing, models.TransactionTypeTransfer, receiver.ID, req.Amount)
		}
	}

	// Test balances may flow into live accounts; live money never flows into
	// a test account.
	if !sender.IsTestMode() && receiver.IsTestMode() {
		return nil, ErrModeMismatch
	}

	senderID := sender.ID
	rec := &models.TransactionRecord{
		Reference:          uuid.NewString(),
		Type:               models.TransactionTypeTransfer,
		Amount:             req.Amount,
		Currency:           sender.Currency,
		SenderAccountID:    &senderID,
		ReceiverAccountID:  receiver.ID,
		InitiatorAccountID: sender.ID,
	}

	if !sender.IsTestMode() {
		if err := s.verifyInstrument(ctx, sender, req.Instrument, rec); err != nil {
			return nil, err
		}
	}

	rec.Status = models.TransactionStatusCompleted
	rec.IdempotencyKey = optionalString(req.IdempotencyKey)
	err = s.ledger.WithTx(ctx, func(tx *sql.Tx) error {
		return s.execute(ctx, tx, sender.ID, receiver.ID, rec)
	})
	if err != nil {
		switch {
		case isUniqueViolation(err):
			existing, findErr := s.records.FindByIdempotencyKey(ctx, nil, sender.ID, req.IdempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			if existing == nil {
				return nil, ErrInternal.Wrap(err)
			}
			return replayRecord(existing, models.TransactionTypeTransfer, receiver.ID, req.Amount)
		case errors.Is(err, ErrInsufficientFunds):
			s.recordFailure(ctx, rec, "insufficient_funds", err)
		}
		return nil, err
	}

	log.Printf("[TRANSFER] %s moved %s %s from account %d to %d",
		rec.Reference, rec.Amount.StringFixed(2), rec.Currency, sender.ID, receiver.ID)
	s.audit.LogTransfer(rec.Reference, sender.ID, receiver.ID, rec.Amount, string(rec.Status))
	s.events.Publish(ctx, rec)
	return rec, nil
}

// verifyInstrument runs the live-mode card checks. A processor decline is
// recorded as a failed transfer.
func (s *TransferService) verifyInstrument(ctx context.Context, sender *models.Account, inst *models.FundingInstrument, rec *models.TransactionRecord) error {
	if inst.IsEmpty() {
		return ErrInstrumentRequired
	}
	if err := s.validator.ValidateInstrument(inst, sender.Mode); err != nil {
		return err
	}

	last4 := inst.Last4()
	rec.CardLast4 = &last4

	res, err := s.processor.Verify(ctx, ChargeRequest{
		Reference:  rec.Reference,
		Amount:     rec.Amount,
		Currency:   rec.Currency,
		Instrument: inst,
	})
	if err != nil {
		log.Printf("[TRANSFER] Instrument verification for %s failed: %v", rec.Reference, err)
		return processorFailure(err)
	}
	if !res.Approved {
		declined := declineError(res)
		s.recordFailure(ctx, rec, res.DeclineReason, declined)
		return declined
	}
	rec.ProcessorReference = optionalString(res.Reference)
	return nil
}

// execute locks both accounts in ascending id order, moves the money,
// writes the record and posts both ledger entries.
func (s *TransferService) execute(ctx context.Context, tx *sql.Tx, senderID, receiverID int64, rec *models.TransactionRecord) error {
	locked, err := s.ledger.LockAccounts(ctx, tx, senderID, receiverID)
	if err != nil {
		return err
	}
	if locked[senderID].Balance.LessThan(rec.Amount) {
		return ErrInsufficientFunds
	}

	senderBalance, err := s.ledger.ApplyDelta(ctx, tx, senderID, rec.Amount.Neg(), decimal.Zero)
	if err != nil {
		return err
	}
	receiverBalance, err := s.ledger.ApplyDelta(ctx, tx, receiverID, rec.Amount, decimal.Zero)
	if err != nil {
		return err
	}

	if err := s.records.Insert(ctx, tx, rec); err != nil {
		return err
	}

	if err := s.ledger.PostEntry(ctx, tx, &models.LedgerEntry{
		TransactionID: rec.ID,
		AccountID:     senderID,
		Amount:        rec.Amount.Neg(),
		EntryType:     models.EntryTypeDebit,
		Balance:       senderBalance,
	}); err != nil {
		return err
	}
	return s.ledger.PostEntry(ctx, tx, &models.LedgerEntry{
		TransactionID: rec.ID,
		AccountID:     receiverID,
		Amount:        rec.Amount,
		EntryType:     models.EntryTypeCredit,
		Balance:       receiverBalance,
	})
}

// recordFailure writes a failed record after the ledger transaction has
// rolled back. It runs on a detached context so a request that is being
// torn down still leaves its trace.
func (s *TransferService) recordFailure(ctx context.Context, rec *models.TransactionRecord, reason string, cause error) {
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	failed := *rec
	failed.ID = 0
	if err := s.records.InsertFailed(failCtx, &failed, reason); err != nil {
		log.Printf("[TRANSFER] Failed to record failed transfer %s: %v", rec.Reference, err)
		return
	}
	s.audit.LogTransfer(failed.Reference, *failed.SenderAccountID, failed.ReceiverAccountID, failed.Amount, string(failed.Status))
	s.audit.LogError(failed.Reference, *failed.SenderAccountID, cause)
	s.events.Publish(failCtx, &failed)
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/peerpay/backend/internal/models"
)

const pqUniqueViolation = "23505"

const recordColumns = `t.id, t.reference, t.type, t.amount, t.currency, t.sender_account_id, t.receiver_account_id,
	t.status, t.failure_reason, t.idempotency_key, t.initiator_account_id, t.card_last4,
	t.processor_reference, t.created_at, t.completed_at`

// RecordStore persists transaction records. Terminal records are never
// updated; the status guards below mirror the database trigger.
type RecordStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{
		db:  db,
		now: time.Now,
	}
}

// Insert writes rec and fills in its id, reference and created_at.
func (s *RecordStore) Insert(ctx context.Context, q dbtx, rec *models.TransactionRecord) error {
	if q == nil {
		q = s.db
	}
	if rec.Reference == "" {
		rec.Reference = uuid.NewString()
	}
	if rec.Status == models.TransactionStatusCompleted && rec.CompletedAt == nil {
		now := s.now()
		rec.CompletedAt = &now
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO transactions (reference, type, amount, currency, sender_account_id, receiver_account_id,
			status, failure_reason, idempotency_key, initiator_account_id, card_last4, processor_reference, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		rec.Reference, rec.Type, rec.Amount, rec.Currency, rec.SenderAccountID, rec.ReceiverAccountID,
		rec.Status, rec.FailureReason, rec.IdempotencyKey, rec.InitiatorAccountID, rec.CardLast4,
		rec.ProcessorReference, rec.CompletedAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction record: %w", err)
	}
	return nil
}

// InsertFailed records an attempt that never reached commit. Failed records
// carry no idempotency key so a retry with the same key can still succeed.
func (s *RecordStore) InsertFailed(ctx context.Context, rec *models.TransactionRecord, reason string) error {
	rec.Status = models.TransactionStatusFailed
	rec.FailureReason = &reason
	rec.IdempotencyKey = nil
	rec.CompletedAt = nil
	return s.Insert(ctx, s.db, rec)
}

// FindByIdempotencyKey returns nil, nil when the key has not been used by
// the initiating account.
func (s *RecordStore) FindByIdempotencyKey(ctx context.Context, q dbtx, initiatorAccountID int64, key string) (*models.TransactionRecord, error) {
	if q == nil {
		q = s.db
	}
	row := q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM transactions t
		WHERE t.initiator_account_id = $1 AND t.idempotency_key = $2`,
		initiatorAccountID, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by idempotency key: %w", err)
	}
	return rec, nil
}

// MarkCompleted moves a pending record to completed.
func (s *RecordStore) MarkCompleted(ctx context.Context, q dbtx, rec *models.TransactionRecord) error {
	now := s.now()
	res, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, completed_at = $2, processor_reference = $3
		WHERE id = $4 AND status = $5`,
		models.TransactionStatusCompleted, now, rec.ProcessorReference, rec.ID, models.TransactionStatusPending)
	if err := checkTransition(res, err, rec.ID); err != nil {
		return err
	}
	rec.Status = models.TransactionStatusCompleted
	rec.CompletedAt = &now
	return nil
}

// MarkFailed moves a pending record to failed with a reason.
func (s *RecordStore) MarkFailed(ctx context.Context, q dbtx, rec *models.TransactionRecord, reason string) error {
	if q == nil {
		q = s.db
	}
	res, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, failure_reason = $2
		WHERE id = $3 AND status = $4`,
		models.TransactionStatusFailed, reason, rec.ID, models.TransactionStatusPending)
	if err := checkTransition(res, err, rec.ID); err != nil {
		return err
	}
	rec.Status = models.TransactionStatusFailed
	rec.FailureReason = &reason
	return nil
}

// GetByReference loads a record with the usernames of both parties.
func (s *RecordStore) GetByReference(ctx context.Context, reference string) (*models.TransactionRecord, error) {
	if _, err := uuid.Parse(reference); err != nil {
		return nil, ErrTxNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`, COALESCE(su.username, ''), COALESCE(ru.username, '')
		FROM transactions t
		LEFT JOIN accounts sa ON sa.id = t.sender_account_id
		LEFT JOIN users su ON su.id = sa.owner_id
		JOIN accounts ra ON ra.id = t.receiver_account_id
		JOIN users ru ON ru.id = ra.owner_id
		WHERE t.reference = $1`, reference)
	rec, err := scanRecord(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", reference, err)
	}
	return rec, nil
}

func checkTransition(res sql.Result, err error, id int64) error {
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	if n == 0 {
		return ErrIdempotencyConflict.WithMessage("Transaction %d is no longer pending", id)
	}
	return nil
}

func scanRecord(row rowScanner, withUsernames ...bool) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	dest := []any{
		&rec.ID, &rec.Reference, &rec.Type, &rec.Amount, &rec.Currency, &rec.SenderAccountID,
		&rec.ReceiverAccountID, &rec.Status, &rec.FailureReason, &rec.IdempotencyKey,
		&rec.InitiatorAccountID, &rec.CardLast4, &rec.ProcessorReference, &rec.CreatedAt, &rec.CompletedAt,
	}
	if len(withUsernames) > 0 && withUsernames[0] {
		dest = append(dest, &rec.SenderUsername, &rec.ReceiverUsername)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeFunding  TransactionType = "funding"
	TransactionTypeTransfer TransactionType = "transfer"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether a record in this status can no longer change.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// TransactionRecord is the immutable log entry for one funding or transfer attempt.
type TransactionRecord struct {
	ID                 int64             `json:"id" db:"id"`
	Reference          string            `json:"reference" db:"reference"`
	Type               TransactionType   `json:"type" db:"type"`
	Amount             decimal.Decimal   `json:"amount" db:"amount"`
	Currency           string            `json:"currency" db:"currency"`
	SenderAccountID    *int64            `json:"sender_account_id" db:"sender_account_id"`
	ReceiverAccountID  int64             `json:"receiver_account_id" db:"receiver_account_id"`
	SenderUsername     string            `json:"sender_username,omitempty"`
	ReceiverUsername   string            `json:"receiver_username,omitempty"`
	Status             TransactionStatus `json:"status" db:"status"`
	FailureReason      *string           `json:"failure_reason" db:"failure_reason"`
	IdempotencyKey     *string           `json:"-" db:"idempotency_key"`
	InitiatorAccountID int64             `json:"-" db:"initiator_account_id"`
	CardLast4          *string           `json:"card_last4,omitempty" db:"card_last4"`
	ProcessorReference *string           `json:"processor_reference,omitempty" db:"processor_reference"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

// TransactionPage is one page of history plus the cursor for the next one.
type TransactionPage struct {
	Transactions []TransactionRecord `json:"transactions"`
	NextCursor   string              `json:"next_cursor,omitempty"`
}

// TransactionEvent is published after a record is committed.
type TransactionEvent struct {
	Event             string            `json:"event"`
	Reference         string            `json:"reference"`
	Type              TransactionType   `json:"type"`
	Status            TransactionStatus `json:"status"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	SenderAccountID   *int64            `json:"sender_account_id,omitempty"`
	ReceiverAccountID int64             `json:"receiver_account_id"`
	OccurredAt        time.Time         `json:"occurred_at"`
}

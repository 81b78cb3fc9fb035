package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountMode string

const (
	AccountModeTest AccountMode = "test"
	AccountModeLive AccountMode = "live"
)

const (
	AccountStatusActive = "active"
	AccountStatusClosed = "closed"
)

const (
	EntryTypeDebit  = "DEBIT"
	EntryTypeCredit = "CREDIT"
)

// ModeFromTestFlag maps the registration test_mode flag to an account mode.
func ModeFromTestFlag(testMode bool) AccountMode {
	if testMode {
		return AccountModeTest
	}
	return AccountModeLive
}

type Account struct {
	ID        int64           `json:"id" db:"id"`
	OwnerID   int64           `json:"owner_id" db:"owner_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	Mode      AccountMode     `json:"mode" db:"mode"`
	Status    string          `json:"status" db:"status"`
	Version   int             `json:"version" db:"version"` // bumped on every balance change
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

func (a *Account) IsTestMode() bool {
	return a.Mode == AccountModeTest
}

type LedgerEntry struct {
	ID            int64           `json:"id" db:"id"`
	TransactionID int64           `json:"transaction_id" db:"transaction_id"`
	AccountID     int64           `json:"account_id" db:"account_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`         // signed: negative for DEBIT
	EntryType     string          `json:"entry_type" db:"entry_type"` // DEBIT or CREDIT
	Balance       decimal.Decimal `json:"balance" db:"balance"`       // account balance after the entry
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

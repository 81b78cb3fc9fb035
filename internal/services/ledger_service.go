package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/peerpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const accountColumns = `id, owner_id, balance, currency, mode, status, version, created_at, updated_at`

// LedgerService owns account balances and ledger entries. It never writes
// transaction records; callers combine it with RecordStore inside WithTx.
type LedgerService struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:  db,
		now: time.Now,
	}
}

// WithTx runs fn in a transaction. Any error or panic rolls back; the
// transaction is committed only when fn returns nil.
func (s *LedgerService) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Printf("[LEDGER] Rollback failed: %v", rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *LedgerService) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetAccountByOwner resolves the single account owned by a user.
func (s *LedgerService) GetAccountByOwner(ctx context.Context, ownerID int64) (*models.Account, error) {
	return s.getAccountByOwner(ctx, s.db, ownerID)
}

func (s *LedgerService) getAccountByOwner(ctx context.Context, q dbtx, ownerID int64) (*models.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1`, ownerID)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account for owner %d: %w", ownerID, err)
	}
	return account, nil
}

// CreateAccount opens the owner's account with a zero balance.
func (s *LedgerService) CreateAccount(ctx context.Context, tx *sql.Tx, ownerID int64, currency string, mode models.AccountMode) (*models.Account, error) {
	now := s.now()
	account := &models.Account{
		OwnerID:   ownerID,
		Balance:   decimal.Zero,
		Currency:  currency,
		Mode:      mode,
		Status:    models.AccountStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO accounts (owner_id, balance, currency, mode, status, version, created_at, updated_at)
		VALUES ($1, 0, $2, $3, $4, 1, $5, $5)
		RETURNING id`,
		ownerID, currency, mode, models.AccountStatusActive, now).Scan(&account.ID)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// LockAccounts takes row locks one account at a time in ascending id order,
// so two transfers touching the same pair always lock in the same sequence.
func (s *LedgerService) LockAccounts(ctx context.Context, tx *sql.Tx, ids ...int64) (map[int64]*models.Account, error) {
	ordered := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	locked := make(map[int64]*models.Account, len(ordered))
	for _, id := range ordered {
		account, err := s.lockAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}

func (s *LedgerService) lockAccount(ctx context.Context, tx *sql.Tx, accountID int64) (*models.Account, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account %d: %w", accountID, err)
	}
	return account, nil
}

// ApplyDelta adds delta to the balance in a single statement that also
// enforces balance+delta >= minBalance. No matching row means the check
// failed.
func (s *LedgerService) ApplyDelta(ctx context.Context, tx *sql.Tx, accountID int64, delta, minBalance decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND balance + $1 >= $4
		RETURNING balance`,
		delta, s.now(), accountID, minBalance).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("apply delta to account %d: %w", accountID, err)
	}
	return newBalance, nil
}

// PostEntry writes one side of a double-entry movement.
func (s *LedgerService) PostEntry(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (transaction_id, account_id, amount, entry_type, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.TransactionID, entry.AccountID, entry.Amount, entry.EntryType, entry.Balance, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("post %s entry: %w", entry.EntryType, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.Balance, &a.Currency, &a.Mode, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

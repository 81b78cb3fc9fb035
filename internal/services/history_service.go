package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/peerpay/backend/internal/config"
	"github.com/peerpay/backend/internal/models"
)

// Pagination is a keyset page request. Cursor is the opaque value returned
// as next_cursor by the previous page.
type Pagination struct {
	Cursor string
	Limit  int
}

type historyCursor struct {
	CreatedAt time.Time
	ID        int64
}

const historySelect = `
	SELECT ` + recordColumns + `, COALESCE(su.username, ''), COALESCE(ru.username, '')
	FROM transactions t
	LEFT JOIN accounts sa ON sa.id = t.sender_account_id
	LEFT JOIN users su ON su.id = sa.owner_id
	JOIN accounts ra ON ra.id = t.receiver_account_id
	JOIN users ru ON ru.id = ra.owner_id
	WHERE (t.sender_account_id = $1 OR t.receiver_account_id = $1)`

// HistoryService lists the records a user is party to, newest first.
type HistoryService struct {
	db      *sql.DB
	ledger  *LedgerService
	records *RecordStore
	cfg     *config.LedgerConfig
}

func NewHistoryService(db *sql.DB, ledger *LedgerService, records *RecordStore, cfg *config.LedgerConfig) *HistoryService {
	return &HistoryService{
		db:      db,
		ledger:  ledger,
		records: records,
		cfg:     cfg,
	}
}

// ListTransactions pages by (created_at, id) so records committed while a
// client is paging never shift or duplicate entries on later pages.
func (s *HistoryService) ListTransactions(ctx context.Context, userID int64, page Pagination) (*models.TransactionPage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	limit := clampLimit(page.Limit, s.cfg.HistoryDefaultLimit, s.cfg.HistoryMaxLimit)

	var cursor *historyCursor
	if page.Cursor != "" {
		c, err := decodeCursor(page.Cursor)
		if err != nil {
			return nil, ErrInvalidCursor.Wrap(err)
		}
		cursor = c
	}

	account, err := s.ledger.GetAccountByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if cursor == nil {
		rows, err = s.db.QueryContext(ctx, historySelect+`
			ORDER BY t.created_at DESC, t.id DESC
			LIMIT $2`,
			account.ID, limit+1)
	} else {
		rows, err = s.db.QueryContext(ctx, historySelect+`
			AND (t.created_at, t.id) < ($3, $4)
			ORDER BY t.created_at DESC, t.id DESC
			LIMIT $2`,
			account.ID, limit+1, cursor.CreatedAt, cursor.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	records := make([]models.TransactionRecord, 0, limit+1)
	for rows.Next() {
		rec, err := scanRecord(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	result := &models.TransactionPage{Transactions: records}
	if len(records) > limit {
		result.Transactions = records[:limit]
		last := result.Transactions[limit-1]
		result.NextCursor = encodeCursor(historyCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// GetTransaction returns a single record the user is sender or receiver of.
func (s *HistoryService) GetTransaction(ctx context.Context, userID int64, reference string) (*models.TransactionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	account, err := s.ledger.GetAccountByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	isSender := rec.SenderAccountID != nil && *rec.SenderAccountID == account.ID
	if !isSender && rec.ReceiverAccountID != account.ID {
		return nil, ErrTxNotFound
	}
	return rec, nil
}

func encodeCursor(c historyCursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*historyCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("malformed cursor")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("malformed cursor id")
	}
	return &historyCursor{CreatedAt: createdAt, ID: n}, nil
}

package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/peerpay/backend/internal/config"
	"github.com/peerpay/backend/internal/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// DirectoryService finds other users to send money to. It only ever
// exposes id, username and account type.
type DirectoryService struct {
	db  *sql.DB
	cfg *config.LedgerConfig
}

func NewDirectoryService(db *sql.DB, cfg *config.LedgerConfig) *DirectoryService {
	return &DirectoryService{db: db, cfg: cfg}
}

// Search matches usernames containing query, case-insensitively, excluding
// the requester. Results are ordered by username.
func (s *DirectoryService) Search(ctx context.Context, requesterID int64, query string, limit int) ([]models.DirectoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < 1 {
		return nil, ErrInvalidRequest.WithMessage("Search query must not be empty")
	}
	limit = clampLimit(limit, s.cfg.DirectoryDefaultLimit, s.cfg.DirectoryMaxLimit)

	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, user_type
		FROM users
		WHERE LOWER(username) LIKE $1 ESCAPE '\' AND id <> $2
		ORDER BY username
		LIMIT $3`,
		pattern, requesterID, limit)
	if err != nil {
		return nil, fmt.Errorf("search directory: %w", err)
	}
	defer rows.Close()

	entries := make([]models.DirectoryEntry, 0, limit)
	for rows.Next() {
		var e models.DirectoryEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.AccountType); err != nil {
			return nil, fmt.Errorf("scan directory entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search directory: %w", err)
	}
	return entries, nil
}

// clampLimit applies the default for non-positive limits and caps at max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

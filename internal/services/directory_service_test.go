package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directoryQuery = "SELECT id, username, user_type FROM users WHERE LOWER\\(username\\) LIKE \\$1"

func TestDirectoryService_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("case-insensitive substring excluding requester", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(directoryQuery).
			WithArgs("%ali%", int64(1), 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "user_type"}).
				AddRow(int64(2), "alice", "personal").
				AddRow(int64(3), "Natalia", "business"))

		service := NewDirectoryService(db, testLedgerConfig())
		entries, err := service.Search(ctx, 1, "  ALI ", 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "alice", entries[0].Username)
		assert.Equal(t, "business", entries[1].AccountType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wildcards are matched literally", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(directoryQuery).
			WithArgs(`%50\%\_off%`, int64(1), 50).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "user_type"}))

		service := NewDirectoryService(db, testLedgerConfig())
		entries, err := service.Search(ctx, 1, "50%_off", 500)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty query", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewDirectoryService(db, testLedgerConfig())
		_, err = service.Search(ctx, 1, "   ", 5)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 50))
	assert.Equal(t, 10, clampLimit(-3, 10, 50))
	assert.Equal(t, 7, clampLimit(7, 10, 50))
	assert.Equal(t, 50, clampLimit(51, 10, 50))
}

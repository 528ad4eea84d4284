package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestUserRepository_DemoteSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "users" SET .+ WHERE username = \$\d+ AND \(is_premium = \$\d+ OR premium_expiry_date IS NOT NULL\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Demote(context.Background(), "bob"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NothingToDemote", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "users" SET .+ WHERE username = `).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Demote(context.Background(), "bob"), ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "users" SET .+ WHERE username = `).
			WillReturnError(errors.New("connection reset"))

		err := repo.Demote(context.Background(), "bob")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_UpgradePermanentSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE "users" SET .+ WHERE id = \$\d+ AND NOT \(is_premium = \$\d+ AND premium_expiry_date IS NULL\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.UpgradePermanent(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_DeleteByUsernameSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`DELETE FROM "users" WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteByUsername(context.Background(), "ghost"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
